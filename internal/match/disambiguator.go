package match

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"rommedia/internal/logging"
	"rommedia/internal/media"
)

const scoreEpsilon = 1e-9

// Weights scales each ranking signal in the composite score.
type Weights struct {
	System     float64
	Confidence float64
	Asset      float64
}

// DefaultWeights makes system agreement dominate confidence and leaves asset
// coverage to the tie-break.
func DefaultWeights() Weights {
	return Weights{System: 10, Confidence: 1, Asset: 0}
}

// Option configures a Disambiguator.
type Option func(*Disambiguator)

// WithWeights overrides the composite score weights.
func WithWeights(w Weights) Option {
	return func(d *Disambiguator) { d.weights = w }
}

// WithMinConfidence sets the floor for non-exact winners.
func WithMinConfidence(v float64) Option {
	return func(d *Disambiguator) { d.minConfidence = v }
}

// WithKinds restricts which asset kinds are kept, in priority order.
func WithKinds(kinds []media.Kind) Option {
	return func(d *Disambiguator) {
		if len(kinds) > 0 {
			d.kinds = append([]media.Kind(nil), kinds...)
		}
	}
}

// WithRegions sets the region preference for asset selection.
func WithRegions(regions []string) Option {
	return func(d *Disambiguator) {
		d.regions = make([]string, 0, len(regions))
		for _, region := range regions {
			if region = strings.ToLower(strings.TrimSpace(region)); region != "" {
				d.regions = append(d.regions, region)
			}
		}
	}
}

// WithLogger attaches a logger for ranking diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Disambiguator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Disambiguator ranks candidates. It holds no mutable state after
// construction and is safe for concurrent use.
type Disambiguator struct {
	weights       Weights
	minConfidence float64
	kinds         []media.Kind
	regions       []string
	logger        *slog.Logger
}

// NewDisambiguator builds a Disambiguator with default weights, every asset
// kind and no region preference.
func NewDisambiguator(opts ...Option) *Disambiguator {
	d := &Disambiguator{
		weights: DefaultWeights(),
		kinds:   append([]media.Kind(nil), media.Kinds...),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

type scored struct {
	candidate Candidate
	score     float64
	kinds     int
}

// Select picks the single best candidate or explains why none was chosen.
func (d *Disambiguator) Select(candidates []Candidate, hints Hints) Record {
	pool := dedupe(candidates)
	if len(pool) == 0 {
		return Unresolved(ReasonNotFound)
	}

	var exact []Candidate
	for _, c := range pool {
		if c.Exact {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		d.logger.Debug("exact fingerprint match",
			logging.Int64("game_id", exact[0].GameID),
			logging.String("title", exact[0].Title))
		return Resolve(exact[0], d.SelectAssets(exact[0].Assets))
	}
	if len(exact) > 1 {
		pool = exact
	}

	ranked := make([]scored, 0, len(pool))
	for _, c := range pool {
		entry := scored{candidate: c, kinds: c.AssetKinds()}
		entry.score = d.score(c, entry.kinds, hints)
		ranked = append(ranked, entry)
		d.logger.Debug("candidate scored",
			logging.Int64("game_id", c.GameID),
			logging.String("title", c.Title),
			logging.Int("system_id", c.SystemID),
			logging.Float64("confidence", c.Confidence),
			logging.Int("asset_kinds", entry.kinds),
			logging.Float64("score", entry.score),
			logging.Bool("exact", c.Exact))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if !sameScore(ranked[i].score, ranked[j].score) {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].kinds != ranked[j].kinds {
			return ranked[i].kinds > ranked[j].kinds
		}
		return ranked[i].candidate.GameID < ranked[j].candidate.GameID
	})

	top := ranked[0]
	tied := []int64{top.candidate.GameID}
	for _, entry := range ranked[1:] {
		if sameScore(entry.score, top.score) && entry.kinds == top.kinds {
			tied = append(tied, entry.candidate.GameID)
		}
	}
	if len(tied) > 1 {
		d.logger.Info("candidates tied after all tie-breaks",
			logging.Int("tied", len(tied)),
			logging.Float64("score", top.score))
		return Unresolved(ReasonAmbiguous, tied...)
	}
	if !top.candidate.Exact && top.candidate.Confidence < d.minConfidence {
		d.logger.Info("best candidate below confidence floor",
			logging.Int64("game_id", top.candidate.GameID),
			logging.Float64("confidence", top.candidate.Confidence),
			logging.Float64("min_confidence", d.minConfidence))
		return Unresolved(ReasonAmbiguous, top.candidate.GameID)
	}
	return Resolve(top.candidate, d.SelectAssets(top.candidate.Assets))
}

func (d *Disambiguator) score(c Candidate, kinds int, hints Hints) float64 {
	system := 0.0
	if systemMatches(c, hints) {
		system = 1
	}
	return d.weights.System*system + d.weights.Confidence*c.Confidence + d.weights.Asset*float64(kinds)
}

// SelectAssets keeps one descriptor per configured kind, preferring regions
// earlier in the preference list. Descriptors in unlisted regions rank last
// and keep their remote order.
func (d *Disambiguator) SelectAssets(assets []media.Descriptor) []media.Descriptor {
	if len(assets) == 0 {
		return nil
	}
	rank := make(map[string]int, len(d.regions))
	for i, region := range d.regions {
		if _, ok := rank[region]; !ok {
			rank[region] = i
		}
	}
	regionRank := func(region string) int {
		if r, ok := rank[strings.ToLower(region)]; ok {
			return r
		}
		return len(d.regions)
	}

	var out []media.Descriptor
	for _, kind := range d.kinds {
		best := -1
		for i, asset := range assets {
			if asset.Kind != kind || asset.URL == "" {
				continue
			}
			if best < 0 || regionRank(asset.Region) < regionRank(assets[best].Region) {
				best = i
			}
		}
		if best >= 0 {
			out = append(out, assets[best])
		}
	}
	return out
}

func systemMatches(c Candidate, hints Hints) bool {
	if hints.SystemID > 0 && c.SystemID > 0 {
		return hints.SystemID == c.SystemID
	}
	if hints.SystemName == "" || c.SystemName == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(hints.SystemName)) == fold.String(strings.TrimSpace(c.SystemName))
}

// dedupe merges repeated game IDs, keeping the first entry and any exact flag.
func dedupe(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	index := make(map[int64]int, len(candidates))
	for _, c := range candidates {
		if c.GameID <= 0 {
			continue
		}
		if i, ok := index[c.GameID]; ok {
			out[i].Exact = out[i].Exact || c.Exact
			continue
		}
		index[c.GameID] = len(out)
		out = append(out, c)
	}
	return out
}

func sameScore(a, b float64) bool {
	return math.Abs(a-b) < scoreEpsilon
}
