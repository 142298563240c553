package match

import (
	"reflect"
	"testing"

	"rommedia/internal/media"
)

func asset(kind media.Kind, region string) media.Descriptor {
	return media.Descriptor{Kind: kind, Region: region, URL: "https://media.example/" + string(kind) + "/" + region}
}

func TestSelectEmptyIsNotFound(t *testing.T) {
	rec := NewDisambiguator().Select(nil, Hints{})
	if rec.Resolved || rec.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %+v", rec)
	}
}

func TestSelectExactMatchWinsOutright(t *testing.T) {
	d := NewDisambiguator(WithMinConfidence(0.9))
	candidates := []Candidate{
		{GameID: 1, Title: "Popular", SystemID: 1, Confidence: 1.0},
		{GameID: 2, Title: "Exact", SystemID: 4, Exact: true, Confidence: 0.1},
	}
	rec := d.Select(candidates, Hints{SystemID: 1})
	if !rec.Resolved || rec.GameID != 2 || !rec.Exact {
		t.Fatalf("expected exact candidate 2, got %+v", rec)
	}
}

func TestSelectSeveralExactMatchesRestrictPool(t *testing.T) {
	d := NewDisambiguator()
	candidates := []Candidate{
		{GameID: 1, SystemID: 1, Exact: true, Confidence: 0.5},
		{GameID: 2, SystemID: 2, Exact: true, Confidence: 0.5},
		{GameID: 3, SystemID: 1, Confidence: 1.0},
	}
	rec := d.Select(candidates, Hints{SystemID: 1})
	if !rec.Resolved || rec.GameID != 1 {
		t.Fatalf("expected exact candidate on hinted system, got %+v", rec)
	}
}

func TestSelectRanking(t *testing.T) {
	cases := []struct {
		name       string
		candidates []Candidate
		hints      Hints
		opts       []Option
		resolved   bool
		gameID     int64
		reason     Reason
		tied       []int64
	}{
		{
			name: "system match beats confidence",
			candidates: []Candidate{
				{GameID: 10, SystemID: 3, Confidence: 0.95},
				{GameID: 11, SystemID: 1, Confidence: 0.40},
			},
			hints:    Hints{SystemID: 1},
			resolved: true,
			gameID:   11,
		},
		{
			name: "system names fold",
			candidates: []Candidate{
				{GameID: 10, SystemName: "Mega Drive", Confidence: 0.5},
				{GameID: 11, SystemName: "NES", Confidence: 0.6},
			},
			hints:    Hints{SystemName: "MEGA DRIVE"},
			resolved: true,
			gameID:   10,
		},
		{
			name: "confidence breaks system tie",
			candidates: []Candidate{
				{GameID: 20, SystemID: 1, Confidence: 0.70},
				{GameID: 21, SystemID: 1, Confidence: 0.85},
			},
			hints:    Hints{SystemID: 1},
			resolved: true,
			gameID:   21,
		},
		{
			name: "asset kinds break score tie",
			candidates: []Candidate{
				{GameID: 30, SystemID: 1, Confidence: 0.8, Assets: []media.Descriptor{asset(media.KindBoxArt, "us")}},
				{GameID: 31, SystemID: 1, Confidence: 0.8, Assets: []media.Descriptor{asset(media.KindBoxArt, "us"), asset(media.KindScreenshot, "us")}},
			},
			hints:    Hints{SystemID: 1},
			resolved: true,
			gameID:   31,
		},
		{
			name: "full tie is ambiguous",
			candidates: []Candidate{
				{GameID: 41, SystemID: 1, Confidence: 0.8, Assets: []media.Descriptor{asset(media.KindBoxArt, "us")}},
				{GameID: 40, SystemID: 1, Confidence: 0.8, Assets: []media.Descriptor{asset(media.KindWheel, "eu")}},
				{GameID: 42, SystemID: 2, Confidence: 0.9},
			},
			hints:  Hints{SystemID: 1},
			reason: ReasonAmbiguous,
			tied:   []int64{40, 41},
		},
		{
			name: "below confidence floor is ambiguous",
			candidates: []Candidate{
				{GameID: 50, SystemID: 1, Confidence: 0.3},
			},
			hints:  Hints{SystemID: 1},
			opts:   []Option{WithMinConfidence(0.5)},
			reason: ReasonAmbiguous,
			tied:   []int64{50},
		},
		{
			name: "duplicate ids are one candidate",
			candidates: []Candidate{
				{GameID: 60, SystemID: 1, Confidence: 0.5},
				{GameID: 60, SystemID: 1, Confidence: 0.5},
			},
			resolved: true,
			gameID:   60,
		},
		{
			name: "asset weight enters the score",
			candidates: []Candidate{
				{GameID: 70, Confidence: 0.9},
				{GameID: 71, Confidence: 0.2, Assets: []media.Descriptor{asset(media.KindBoxArt, "us"), asset(media.KindWheel, "us")}},
			},
			opts:     []Option{WithWeights(Weights{System: 10, Confidence: 1, Asset: 1})},
			resolved: true,
			gameID:   71,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewDisambiguator(tc.opts...).Select(tc.candidates, tc.hints)
			if rec.Resolved != tc.resolved {
				t.Fatalf("resolved = %v, want %v (%+v)", rec.Resolved, tc.resolved, rec)
			}
			if tc.resolved && rec.GameID != tc.gameID {
				t.Fatalf("game = %d, want %d", rec.GameID, tc.gameID)
			}
			if !tc.resolved {
				if rec.Reason != tc.reason {
					t.Fatalf("reason = %q, want %q", rec.Reason, tc.reason)
				}
				if !reflect.DeepEqual(rec.Candidates, tc.tied) {
					t.Fatalf("candidates = %v, want %v", rec.Candidates, tc.tied)
				}
			}
		})
	}
}

func TestSelectIsOrderIndependent(t *testing.T) {
	a := Candidate{GameID: 1, SystemID: 1, Confidence: 0.6}
	b := Candidate{GameID: 2, SystemID: 1, Confidence: 0.6}
	d := NewDisambiguator()
	first := d.Select([]Candidate{a, b}, Hints{SystemID: 1})
	second := d.Select([]Candidate{b, a}, Hints{SystemID: 1})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("order changed the outcome: %+v vs %+v", first, second)
	}
	if first.Resolved {
		t.Fatal("tied candidates must not resolve")
	}
}

func TestSelectAssetsPrefersRegions(t *testing.T) {
	d := NewDisambiguator(
		WithKinds([]media.Kind{media.KindBoxArt, media.KindScreenshot, media.KindVideo}),
		WithRegions([]string{"US", "eu"}),
	)
	assets := []media.Descriptor{
		asset(media.KindBoxArt, "jp"),
		asset(media.KindBoxArt, "eu"),
		asset(media.KindBoxArt, "us"),
		asset(media.KindScreenshot, "wor"),
		asset(media.KindScreenshot, "jp"),
		asset(media.KindWheel, "us"),
		{Kind: media.KindVideo, Region: "us"},
	}
	got := d.SelectAssets(assets)
	want := []media.Descriptor{
		asset(media.KindBoxArt, "us"),
		asset(media.KindScreenshot, "wor"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectAssets = %+v, want %+v", got, want)
	}
}

func TestRecordFinal(t *testing.T) {
	cases := map[string]struct {
		rec  Record
		want bool
	}{
		"resolved":  {Record{Resolved: true, GameID: 1}, true},
		"not found": {Unresolved(ReasonNotFound), true},
		"ambiguous": {Unresolved(ReasonAmbiguous, 1, 2), true},
		"quota":     {Unresolved(ReasonQuotaExhausted), false},
	}
	for name, tc := range cases {
		if got := tc.rec.Final(); got != tc.want {
			t.Errorf("%s: Final() = %v, want %v", name, got, tc.want)
		}
	}
}
