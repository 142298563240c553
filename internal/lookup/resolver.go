package lookup

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"rommedia/internal/logging"
	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/ratelimit"
	"rommedia/internal/rom"
	"rommedia/internal/screenscraper"
	"rommedia/internal/services"
)

// GameAPI is the remote surface the resolver needs.
type GameAPI interface {
	GameInfo(ctx context.Context, q screenscraper.GameQuery) (*screenscraper.GameResult, error)
	SearchGames(ctx context.Context, query string, systemID int) (*screenscraper.SearchResult, error)
}

// Limiter gates remote calls.
type Limiter interface {
	Acquire(ctx context.Context) (*ratelimit.Permit, error)
	RecordResponse(q ratelimit.Quota)
	MarkExhausted()
}

// Hints carries what the library knows about a ROM besides its content.
type Hints struct {
	SystemID   int
	SystemName string
	// RomName is the file name used for the title fallback.
	RomName string
}

// Resolver turns fingerprints into candidates.
type Resolver struct {
	api     GameAPI
	limiter Limiter
	logger  *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(api GameAPI, limiter Limiter, logger *slog.Logger) *Resolver {
	return &Resolver{
		api:     api,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "lookup"),
	}
}

// Resolve returns every candidate the remote offers for fp. Exact hash hits
// short-circuit the title search. An empty result is reported as
// ErrNotFound, never as an empty slice with a nil error.
func (r *Resolver) Resolve(ctx context.Context, fp rom.Fingerprint, hints Hints) ([]match.Candidate, error) {
	romName := strings.TrimSpace(hints.RomName)
	if romName == "" {
		romName = fp.Entry
	}
	logger := r.logger.With(logging.String(logging.FieldFingerprint, fp.Key()))

	var info *screenscraper.GameResult
	err := r.call(ctx, func(ctx context.Context) (ratelimit.Quota, error) {
		var err error
		info, err = r.api.GameInfo(ctx, screenscraper.GameQuery{
			CRC:      fp.CRC32,
			MD5:      fp.MD5,
			SHA1:     fp.SHA1,
			Size:     fp.Size,
			SystemID: hints.SystemID,
			RomName:  romName,
		})
		if err != nil {
			return ratelimit.Quota{}, err
		}
		return info.Quota, nil
	})
	switch {
	case err == nil:
		candidate := toCandidate(info.Game, fp)
		logger.Debug("hash lookup hit",
			logging.Int64("game_id", candidate.GameID),
			logging.String("title", candidate.Title),
			logging.Bool("exact", candidate.Exact))
		return []match.Candidate{candidate}, nil
	case !errors.Is(err, services.ErrNotFound):
		return nil, err
	}

	title := SearchTitle(romName)
	if title == "" {
		return nil, services.Wrap(services.ErrNotFound, "lookup", "search", "no title to search for", nil)
	}
	logger.Debug("hash lookup missed, searching by title", logging.String("query", title))

	var search *screenscraper.SearchResult
	err = r.call(ctx, func(ctx context.Context) (ratelimit.Quota, error) {
		var err error
		search, err = r.api.SearchGames(ctx, title, hints.SystemID)
		if err != nil {
			return ratelimit.Quota{}, err
		}
		return search.Quota, nil
	})
	if err != nil {
		return nil, err
	}
	if len(search.Games) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "lookup", "search", "no games for "+title, nil)
	}
	candidates := make([]match.Candidate, 0, len(search.Games))
	for _, game := range search.Games {
		candidates = append(candidates, toCandidate(game, fp))
	}
	logger.Debug("title search results", logging.Int("candidates", len(candidates)))
	return candidates, nil
}

// call wraps one remote request in a permit and reconciles quota afterwards.
func (r *Resolver) call(ctx context.Context, fn func(context.Context) (ratelimit.Quota, error)) error {
	permit, err := r.limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	defer permit.Release()

	quota, err := fn(ctx)
	if err != nil {
		if errors.Is(err, services.ErrQuotaExhausted) {
			r.limiter.MarkExhausted()
		}
		return err
	}
	r.limiter.RecordResponse(quota)
	return nil
}

func toCandidate(game screenscraper.Game, fp rom.Fingerprint) match.Candidate {
	c := match.Candidate{
		GameID:     int64(game.ID),
		Title:      game.Name,
		SystemID:   game.SystemID,
		SystemName: game.SystemName,
		Exact:      romMatches(game.Rom, fp),
		Confidence: confidence(game.Rating),
	}
	for _, r := range game.Roms {
		if c.Exact {
			break
		}
		c.Exact = romMatches(r, fp)
	}
	for _, m := range game.Medias {
		kind, ok := media.KindFromScreenScraper(m.Type)
		if !ok {
			continue
		}
		c.Assets = append(c.Assets, media.Descriptor{
			Kind:   kind,
			Region: m.Region,
			URL:    m.URL,
			Format: m.Format,
			Size:   m.Size,
			Checksums: media.Checksums{
				SHA1:  strings.ToLower(m.SHA1),
				MD5:   strings.ToLower(m.MD5),
				CRC32: strings.ToLower(m.CRC),
			},
		})
	}
	return c
}

// romMatches compares the strongest hash both sides know. Sizes must agree
// when the remote reports one.
func romMatches(r screenscraper.Rom, fp rom.Fingerprint) bool {
	if r.Size > 0 && fp.Size > 0 && r.Size != fp.Size {
		return false
	}
	switch {
	case r.SHA1 != "" && fp.SHA1 != "":
		return strings.EqualFold(r.SHA1, fp.SHA1)
	case r.MD5 != "" && fp.MD5 != "":
		return strings.EqualFold(r.MD5, fp.MD5)
	case r.CRC != "" && fp.CRC32 != "":
		return strings.EqualFold(r.CRC, fp.CRC32)
	default:
		return false
	}
}

// ScreenScraper rates games out of 20.
func confidence(rating float64) float64 {
	if rating < 0 {
		return 0
	}
	return math.Min(rating/20, 1)
}
