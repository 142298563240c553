package preflight

import (
	"context"

	"rommedia/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg. account may be nil to skip
// the network check.
func RunAll(ctx context.Context, cfg *config.Config, account AccountChecker) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir)}

	// Media lands in the bucket when one is configured.
	if cfg.Media.BlobURL != "" {
		results = append(results, CheckBucket(ctx, cfg.Media.BlobURL))
	} else {
		results = append(results, CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir))
	}

	if account != nil {
		results = append(results, CheckScreenScraper(ctx, account))
	}
	return results
}

// Failed returns the failing results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
