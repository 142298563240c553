// Package lookup resolves fingerprints into candidate games.
//
// The Resolver asks ScreenScraper for an exact hash match first and falls
// back to a title search built from the ROM's file name. Every remote call
// holds a rate limiter permit and feeds the reported quota back into the
// limiter. Results are converted into match.Candidate values at this
// boundary so nothing downstream sees the remote's loosely typed payloads.
package lookup
