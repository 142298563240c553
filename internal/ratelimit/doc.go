// Package ratelimit paces ScreenScraper requests.
//
// A Limiter combines a token bucket (golang.org/x/time/rate, burst 1) with a
// concurrent request cap and a daily quota that is reconciled against the
// counters the API reports. Clock and sleep are injectable.
package ratelimit
