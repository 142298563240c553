package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rommedia/internal/cache"
	"rommedia/internal/config"
	"rommedia/internal/fingerprint"
	"rommedia/internal/lookup"
	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/ratelimit"
	"rommedia/internal/rom"
	"rommedia/internal/screenscraper"
	"rommedia/internal/transport"
)

// Stack is an orchestrator wired from configuration together with the
// long-lived resources behind it.
type Stack struct {
	Orchestrator *Orchestrator
	Client       *screenscraper.Client
	Limiter      *ratelimit.Limiter
	Cache        *cache.Store
	Systems      *rom.Systems

	closers []func() error
}

// StackOptions customise Assemble.
type StackOptions struct {
	Logger   *slog.Logger
	Reporter Reporter
	Rescrape bool
	// HTTPClient replaces the retrying transport for both API and media.
	HTTPClient *http.Client
	// Transport sits under the assembled clients when HTTPClient is nil.
	Transport http.RoundTripper
}

// Assemble opens the cache and media sink and builds every collaborator from
// cfg. The returned Stack must be closed.
func Assemble(ctx context.Context, cfg *config.Config, opts StackOptions) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config required")
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	kinds, err := parseKinds(cfg.Media.Kinds)
	if err != nil {
		return nil, err
	}

	stack := &Stack{Systems: rom.NewSystems(cfg.Systems)}
	fail := func(err error) (*Stack, error) {
		_ = stack.Close()
		return nil, err
	}

	store, err := cache.Open(cfg)
	if err != nil {
		return fail(fmt.Errorf("open cache: %w", err))
	}
	stack.Cache = store
	stack.closers = append(stack.closers, store.Close)

	var sink media.Sink
	if cfg.Media.BlobURL != "" {
		blobSink, err := media.OpenBlobSink(ctx, cfg.Media.BlobURL)
		if err != nil {
			return fail(err)
		}
		stack.closers = append(stack.closers, blobSink.Close)
		sink = blobSink
	} else {
		sink = media.NewLocalSink(cfg.Paths.MediaDir)
	}

	apiHTTP, mediaHTTP := opts.HTTPClient, opts.HTTPClient
	if apiHTTP == nil {
		userAgent := cfg.ScreenScraper.Software
		// API resends must go back through the limiter, so the retry
		// policy owns them rather than the transport.
		apiHTTP = transport.New(transport.Options{
			Timeout:      time.Duration(cfg.ScreenScraper.TimeoutSeconds) * time.Second,
			DisableRetry: true,
			UserAgent:    userAgent,
			Logger:       opts.Logger,
			Transport:    opts.Transport,
		})
		mediaHTTP = transport.New(transport.Options{
			StallTimeout: time.Duration(cfg.Media.StallTimeoutSeconds) * time.Second,
			UserAgent:    userAgent,
			Logger:       opts.Logger,
			Transport:    opts.Transport,
		})
	}

	client, err := screenscraper.New(cfg.ScreenScraper.BaseURL, screenscraper.Credentials{
		DevID:       cfg.ScreenScraper.DevID,
		DevPassword: cfg.ScreenScraper.DevPassword,
		Software:    cfg.ScreenScraper.Software,
		Username:    cfg.ScreenScraper.Username,
		Password:    cfg.ScreenScraper.Password,
	}, screenscraper.WithHTTPClient(apiHTTP), screenscraper.WithLogger(opts.Logger))
	if err != nil {
		return fail(err)
	}
	stack.Client = client

	stack.Limiter = ratelimit.New(ratelimit.Options{
		RatePerSecond: cfg.Scrape.RateLimitPerSecond,
		DailyQuota:    cfg.Scrape.DailyQuota,
		Logger:        opts.Logger,
	})

	selector := match.NewDisambiguator(
		match.WithWeights(match.Weights{
			System:     cfg.Match.SystemWeight,
			Confidence: cfg.Match.ConfidenceWeight,
			Asset:      cfg.Match.AssetWeight,
		}),
		match.WithMinConfidence(cfg.Scrape.MinConfidence),
		match.WithKinds(kinds),
		match.WithRegions(cfg.Media.Regions),
		match.WithLogger(opts.Logger),
	)

	orchestrator, err := New(Deps{
		Fingerprinter: fingerprint.New(stack.Systems),
		Resolver:      lookup.NewResolver(client, stack.Limiter, opts.Logger),
		Selector:      selector,
		Fetcher:       media.NewDownloader(mediaHTTP, sink, media.WithResume(cfg.Media.Resume), media.WithLogger(opts.Logger)),
		Cache:         store,
		Systems:       stack.Systems,
	}, Options{
		MaxConcurrency:    cfg.Scrape.MaxConcurrency,
		Rescrape:          opts.Rescrape,
		TrustCachedAssets: cfg.Media.BlobURL != "",
		Retry: RetryPolicy{
			MaxAttempts: cfg.Scrape.RetryLimit,
			BaseDelay:   time.Duration(cfg.Scrape.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Scrape.RetryMaxDelayMS) * time.Millisecond,
		},
		Reporter: opts.Reporter,
		Logger:   opts.Logger,
	})
	if err != nil {
		return fail(err)
	}
	stack.Orchestrator = orchestrator
	return stack, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func parseKinds(values []string) ([]media.Kind, error) {
	if len(values) == 0 {
		return nil, nil
	}
	kinds := make([]media.Kind, 0, len(values))
	for _, v := range values {
		kind, ok := media.ParseKind(v)
		if !ok {
			return nil, fmt.Errorf("unknown media kind %q", v)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
