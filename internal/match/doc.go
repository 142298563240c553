// Package match chooses one remote game for a fingerprint.
//
// Candidates returned by the lookup resolver are ranked by exact fingerprint
// match first, then a weighted composite of system agreement, remote
// confidence and asset coverage. Anything short of a strict winner is
// recorded as ambiguous; the disambiguator never guesses. The chosen
// candidate's media is reduced to one descriptor per kind using the
// configured region preference.
package match
