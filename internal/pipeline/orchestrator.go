package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rommedia/internal/cache"
	"rommedia/internal/logging"
	"rommedia/internal/lookup"
	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/rom"
	"rommedia/internal/services"
)

// Fingerprinter computes ROM identities.
type Fingerprinter interface {
	Compute(ctx context.Context, file rom.File) (rom.Fingerprint, error)
}

// Resolver looks fingerprints up remotely.
type Resolver interface {
	Resolve(ctx context.Context, fp rom.Fingerprint, hints lookup.Hints) ([]match.Candidate, error)
}

// Selector picks one candidate.
type Selector interface {
	Select(candidates []match.Candidate, hints match.Hints) match.Record
}

// Fetcher downloads assets.
type Fetcher interface {
	Fetch(ctx context.Context, ref media.AssetRef) (media.Result, error)
}

// Cache persists resolutions and asset outcomes.
type Cache interface {
	Get(ctx context.Context, fp rom.Fingerprint) (*cache.Entry, error)
	Put(ctx context.Context, fp rom.Fingerprint, romPath string, record match.Record) (*cache.Entry, error)
	RecordAsset(ctx context.Context, fp rom.Fingerprint, ref media.AssetRef) error
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Fingerprinter Fingerprinter
	Resolver      Resolver
	Selector      Selector
	Fetcher       Fetcher
	Cache         Cache
	Systems       *rom.Systems
}

// Options tune a run.
type Options struct {
	MaxConcurrency int
	// Rescrape ignores cached records and looks every ROM up again.
	Rescrape bool
	// TrustCachedAssets skips the sink check for assets the cache already
	// records complete at the same location and URL. Remote sinks set it so
	// a cached re-run makes no bucket calls; objects removed behind the
	// cache's back come back only with Rescrape.
	TrustCachedAssets bool
	Retry             RetryPolicy
	Reporter          Reporter
	Logger            *slog.Logger
	Now               func() time.Time
	NewRunID          func() string
}

// Orchestrator runs batches. It is safe to call Run sequentially; concurrent
// runs must not share a cache.
type Orchestrator struct {
	deps     Deps
	opts     Options
	logger   *slog.Logger
	reporter Reporter
	reportMu sync.Mutex
}

// New validates deps and returns an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Fingerprinter == nil:
		return nil, errors.New("pipeline: fingerprinter required")
	case deps.Resolver == nil:
		return nil, errors.New("pipeline: resolver required")
	case deps.Selector == nil:
		return nil, errors.New("pipeline: selector required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher required")
	case deps.Cache == nil:
		return nil, errors.New("pipeline: cache required")
	}
	if deps.Systems == nil {
		deps.Systems = rom.DefaultSystems()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		reporter: reporter,
	}, nil
}

// run carries per-run shared state.
type run struct {
	id        string
	haltOnce  sync.Once
	haltErr   atomic.Pointer[error]
	canceled  atomic.Bool
	assetDone atomic.Int64
	assetSkip atomic.Int64
	assetFail atomic.Int64
}

func (r *run) halted() error {
	if p := r.haltErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Run processes files and always returns a summary; individual failures are
// reported per ROM, never as a run error.
func (o *Orchestrator) Run(ctx context.Context, files []rom.File) Summary {
	state := &run{id: o.opts.NewRunID()}
	ctx = services.WithRunID(ctx, state.id)
	summary := Summary{RunID: state.id, Started: o.opts.Now(), Total: len(files)}

	o.logger.Info("scrape run starting",
		logging.String(logging.FieldRunID, state.id),
		logging.Int("roms", len(files)),
		logging.Int("max_concurrency", o.opts.MaxConcurrency),
		logging.Bool("rescrape", o.opts.Rescrape),
	)
	o.emit(Event{Type: EventRunStarted, RunID: state.id, Total: len(files)})

	outcomes := make([]Outcome, len(files))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)
	for i, file := range files {
		outcomes[i] = Outcome{Rom: file, State: StatePending}
		if err := ctx.Err(); err != nil {
			state.canceled.Store(true)
			outcomes[i] = o.deferUnstarted(ctx, outcomes[i], err)
			continue
		}
		if err := state.halted(); err != nil {
			outcomes[i] = o.deferUnstarted(ctx, outcomes[i], err)
			continue
		}
		i, file := i, file
		g.Go(func() error {
			outcomes[i] = o.process(ctx, state, file)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		summary.count(out)
	}
	summary.Outcomes = outcomes
	summary.AssetsDownloaded = int(state.assetDone.Load())
	summary.AssetsSkipped = int(state.assetSkip.Load())
	summary.AssetsFailed = int(state.assetFail.Load())
	if err := state.halted(); err != nil {
		summary.Halted = true
		summary.HaltReason = services.Kind(err)
	}
	summary.Canceled = state.canceled.Load() || ctx.Err() != nil
	summary.Finished = o.opts.Now()

	o.logger.Info("scrape run finished",
		logging.String(logging.FieldRunID, state.id),
		logging.Int("resolved", summary.Resolved),
		logging.Int("unresolved", summary.Unresolved),
		logging.Int("deferred", summary.Deferred),
		logging.Int("failed", summary.Failed),
		logging.Int("assets_downloaded", summary.AssetsDownloaded),
		logging.Int("assets_failed", summary.AssetsFailed),
		logging.Duration("duration", summary.Duration()),
	)
	o.emit(Event{Type: EventRunFinished, RunID: state.id, Total: len(files)})
	return summary
}

func (o *Orchestrator) deferUnstarted(ctx context.Context, out Outcome, cause error) Outcome {
	out.State = StateDeferred
	out.Err = cause
	out.ErrorKind = services.Kind(cause)
	if errors.Is(cause, services.ErrQuotaExhausted) {
		out.Record = match.Unresolved(match.ReasonQuotaExhausted)
	}
	o.transition(services.WithRomPath(ctx, out.Rom.Path), &out, StateDeferred)
	return out
}

func (o *Orchestrator) process(ctx context.Context, state *run, file rom.File) Outcome {
	ctx = services.WithRomPath(ctx, file.Path)
	out := Outcome{Rom: file, State: StatePending}

	fp, err := o.deps.Fingerprinter.Compute(services.WithStage(ctx, "fingerprint"), file)
	if err != nil {
		return o.fail(ctx, state, out, err)
	}
	out.Fingerprint = fp
	ctx = services.WithFingerprint(ctx, fp.Key())
	o.transition(ctx, &out, StateFingerprinted)

	record, entry, err := o.resolve(services.WithStage(ctx, "resolve"), state, file, fp, &out)
	if err != nil {
		return o.fail(ctx, state, out, err)
	}
	out.Record = record
	if !record.Resolved {
		o.transition(ctx, &out, StateUnresolved)
		return out
	}
	o.transition(ctx, &out, StateResolved)

	o.download(services.WithStage(ctx, "download"), state, file, fp, entry, &out)
	return out
}

func (o *Orchestrator) resolve(ctx context.Context, state *run, file rom.File, fp rom.Fingerprint, out *Outcome) (match.Record, *cache.Entry, error) {
	entry, err := o.deps.Cache.Get(ctx, fp)
	if err != nil {
		return match.Record{}, nil, err
	}
	if entry != nil && entry.Record.Final() && !o.opts.Rescrape {
		out.CacheHit = true
		logging.WithContext(ctx, o.logger).Debug("cache hit", logging.Bool("resolved", entry.Record.Resolved))
		return entry.Record, entry, nil
	}
	if err := state.halted(); err != nil {
		return match.Record{}, nil, err
	}

	system, _ := o.deps.Systems.Lookup(file.System)
	hints := lookup.Hints{SystemID: system.ID, SystemName: system.Name, RomName: file.Name()}
	if hints.SystemName == "" {
		hints.SystemName = file.System
	}

	var candidates []match.Candidate
	_, err = o.retryPolicy(ctx, "resolve").Do(ctx, func(ctx context.Context, _ int) (AttemptResult, error) {
		if err := state.halted(); err != nil {
			return Fatal, err
		}
		found, err := o.deps.Resolver.Resolve(ctx, fp, hints)
		if err != nil {
			return Classify(err), err
		}
		candidates = found
		return Success, nil
	})

	var record match.Record
	switch {
	case err == nil:
		record = o.deps.Selector.Select(candidates, match.Hints{SystemID: hints.SystemID, SystemName: hints.SystemName})
	case errors.Is(err, services.ErrNotFound):
		record = match.Unresolved(match.ReasonNotFound)
	default:
		return match.Record{}, nil, err
	}

	// Persist even if the run is being canceled; the lookup already spent quota.
	entry, err = o.deps.Cache.Put(context.WithoutCancel(ctx), fp, file.Path, record)
	if err != nil {
		return match.Record{}, nil, err
	}
	return record, entry, nil
}

func (o *Orchestrator) download(ctx context.Context, state *run, file rom.File, fp rom.Fingerprint, entry *cache.Entry, out *Outcome) {
	logger := logging.WithContext(ctx, o.logger)
	system := file.System
	if system == "" {
		system = out.Record.SystemName
	}
	storeCtx := context.WithoutCancel(ctx)

	complete := 0
	interrupted := false
	for _, d := range out.Record.Assets {
		ref := media.NewAssetRef(d, assetLocation(entry, system, file, fp, d))
		if ctx.Err() != nil {
			interrupted = true
			out.Assets = append(out.Assets, ref)
			continue
		}
		if cached, ok := o.trusted(entry, ref); ok {
			complete++
			state.assetSkip.Add(1)
			o.emitAsset(ctx, EventAssetSkipped, out, cached, nil)
			out.Assets = append(out.Assets, cached)
			continue
		}

		var result media.Result
		attempts, err := o.retryPolicy(ctx, "download").Do(ctx, func(ctx context.Context, _ int) (AttemptResult, error) {
			r, err := o.deps.Fetcher.Fetch(ctx, ref)
			if err != nil {
				return Classify(err), err
			}
			result = r
			return Success, nil
		})
		ref.Attempts = attempts

		switch {
		case err == nil:
			ref.Status = media.StatusComplete
			ref.LastError = ""
			if ref.Size == 0 {
				ref.Size = result.Size
			}
			if ref.Checksums.IsZero() && !result.Checksums.IsZero() {
				ref.Checksums = media.Checksums{SHA1: result.Checksums.SHA1}
			}
			complete++
			if result.Satisfied {
				state.assetSkip.Add(1)
				o.emitAsset(ctx, EventAssetSkipped, out, ref, nil)
			} else {
				state.assetDone.Add(1)
				o.emitAsset(ctx, EventAssetDone, out, ref, nil)
			}
		case ctx.Err() != nil:
			interrupted = true
			out.Assets = append(out.Assets, ref)
			continue
		default:
			ref.Status = media.StatusFailed
			ref.LastError = err.Error()
			state.assetFail.Add(1)
			o.emitAsset(ctx, EventAssetFailed, out, ref, err)
		}

		out.Assets = append(out.Assets, ref)
		if cached, ok := cachedAsset(entry, d.Kind); ok && sameAsset(cached, ref) {
			continue
		}
		if err := o.deps.Cache.RecordAsset(storeCtx, fp, ref); err != nil {
			logging.WarnWithContext(logger, "asset outcome not recorded", "cache_write_failed",
				logging.String("asset", string(ref.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the asset is re-checked on the next run"),
			)
		}
	}

	switch {
	case interrupted:
		out.Err = ctx.Err()
		out.ErrorKind = services.Kind(out.Err)
		state.canceled.Store(true)
		o.transition(ctx, out, StateDeferred)
	case complete == len(out.Record.Assets):
		o.transition(ctx, out, StateAssetsComplete)
	default:
		o.transition(ctx, out, StateAssetsPartial)
	}
}

// fail settles a ROM that could not reach a resolution. Cancellation and
// halting errors defer it; anything else fails only this ROM.
func (o *Orchestrator) fail(ctx context.Context, state *run, out Outcome, err error) Outcome {
	out.Err = err
	out.ErrorKind = services.Kind(err)
	logger := logging.WithContext(ctx, o.logger)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		state.canceled.Store(true)
		o.transition(ctx, &out, StateDeferred)
	case services.Halting(err):
		if errors.Is(err, services.ErrQuotaExhausted) {
			out.Record = match.Unresolved(match.ReasonQuotaExhausted)
		}
		o.halt(ctx, state, err)
		o.transition(ctx, &out, StateDeferred)
	default:
		logging.WarnWithContext(logger, "rom failed", "rom_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, out.ErrorKind),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		o.transition(ctx, &out, StateFailed)
	}
	return out
}

func (o *Orchestrator) halt(ctx context.Context, state *run, err error) {
	state.haltOnce.Do(func() {
		state.haltErr.Store(&err)
		impact := "remaining roms deferred to a later run"
		logging.WarnWithContext(o.logger, "halting lookups", "run_halted",
			logging.String(logging.FieldRunID, state.id),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.String(logging.FieldImpact, impact),
		)
		o.emit(Event{Type: EventRunHalted, RunID: state.id, Err: err, ErrorKind: services.Kind(err)})
	})
}

func (o *Orchestrator) retryPolicy(ctx context.Context, operation string) RetryPolicy {
	policy := o.opts.Retry
	logger := logging.WithContext(ctx, o.logger)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Info(fmt.Sprintf("%s attempt failed, retrying", operation),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	}
	return policy
}

func (o *Orchestrator) transition(ctx context.Context, out *Outcome, next State) {
	out.State = next
	event := Event{
		Type:      EventStateChanged,
		RomPath:   out.Rom.Path,
		State:     next,
		Err:       out.Err,
		ErrorKind: out.ErrorKind,
	}
	if !out.Fingerprint.IsZero() {
		event.Fingerprint = out.Fingerprint.Key()
	}
	event.RunID, _ = services.RunIDFromContext(ctx)
	o.emit(event)
}

func (o *Orchestrator) emitAsset(ctx context.Context, kind EventType, out *Outcome, ref media.AssetRef, err error) {
	event := Event{
		Type:        kind,
		RomPath:     out.Rom.Path,
		Fingerprint: out.Fingerprint.Key(),
		State:       out.State,
		Asset:       ref.Kind,
		Location:    ref.Location,
		Attempts:    ref.Attempts,
		Err:         err,
		ErrorKind:   services.Kind(err),
	}
	event.RunID, _ = services.RunIDFromContext(ctx)
	o.emit(event)
}

func (o *Orchestrator) emit(event Event) {
	event.Time = o.opts.Now()
	o.reportMu.Lock()
	defer o.reportMu.Unlock()
	o.reporter.Report(event)
}

func cachedAsset(entry *cache.Entry, kind media.Kind) (media.AssetRef, bool) {
	if entry == nil {
		return media.AssetRef{}, false
	}
	return entry.Asset(kind)
}

// assetLocation names where an asset is published. The fingerprint tag keeps
// same-stem ROMs apart; a completed cached location for the same URL is kept
// so duplicate copies of one ROM under other names settle on one file.
func assetLocation(entry *cache.Entry, system string, file rom.File, fp rom.Fingerprint, d media.Descriptor) string {
	if cached, ok := cachedAsset(entry, d.Kind); ok && cached.Status == media.StatusComplete && cached.URL == d.URL && cached.Location != "" {
		return cached.Location
	}
	return media.Location(system, file.Name(), fp.Short(), d.Kind, d.Format)
}

func (o *Orchestrator) trusted(entry *cache.Entry, ref media.AssetRef) (media.AssetRef, bool) {
	if !o.opts.TrustCachedAssets || o.opts.Rescrape {
		return media.AssetRef{}, false
	}
	cached, ok := cachedAsset(entry, ref.Kind)
	if !ok || cached.Status != media.StatusComplete || cached.Location != ref.Location || cached.URL != ref.URL {
		return media.AssetRef{}, false
	}
	return cached, true
}

func sameAsset(a, b media.AssetRef) bool {
	return a.Status == media.StatusComplete && b.Status == media.StatusComplete &&
		a.Location == b.Location && a.URL == b.URL
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrQuotaExhausted):
		return "daily ScreenScraper quota reached; rerun after it resets"
	case errors.Is(err, services.ErrUnauthorized):
		return "check screenscraper credentials and dev_id"
	case errors.Is(err, services.ErrUnreadableFile):
		return "check the rom file is readable and not truncated"
	case errors.Is(err, services.ErrAmbiguousContainer):
		return "archive holds several roms; extract the one to scrape"
	case errors.Is(err, services.ErrMalformedResponse):
		return "screenscraper returned an unexpected payload; retry later"
	default:
		return "check logs for details"
	}
}
