package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"rommedia/internal/media"
	"rommedia/internal/ratelimit"
	"rommedia/internal/rom"
	"rommedia/internal/screenscraper"
	"rommedia/internal/services"
)

type fakeAPI struct {
	info      *screenscraper.GameResult
	infoErr   error
	search    *screenscraper.SearchResult
	searchErr error

	infoCalls   int
	searchCalls int
	lastQuery   screenscraper.GameQuery
	lastSearch  string
	lastSystem  int
}

func (f *fakeAPI) GameInfo(_ context.Context, q screenscraper.GameQuery) (*screenscraper.GameResult, error) {
	f.infoCalls++
	f.lastQuery = q
	return f.info, f.infoErr
}

func (f *fakeAPI) SearchGames(_ context.Context, query string, systemID int) (*screenscraper.SearchResult, error) {
	f.searchCalls++
	f.lastSearch = query
	f.lastSystem = systemID
	return f.search, f.searchErr
}

func newLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Options{
		RatePerSecond: 100,
		DailyQuota:    1000,
		Sleep:         func(context.Context, time.Duration) error { return nil },
	})
}

var sonicFP = rom.Fingerprint{
	CRC32: "24ab4c3a",
	MD5:   "9feeb724052c39982d432a7851c98d3e",
	SHA1:  "7b905383e4df3d5f5e4e4a1b4d0b1a8b0e6e6e6e",
	Size:  1048576,
	Entry: "Sonic The Hedgehog 2 (World).md",
}

func TestResolveExactHashHit(t *testing.T) {
	api := &fakeAPI{info: &screenscraper.GameResult{
		Game: screenscraper.Game{
			ID:         3,
			Name:       "Sonic The Hedgehog 2",
			SystemID:   1,
			SystemName: "Megadrive",
			Rating:     18,
			Rom:        screenscraper.Rom{SHA1: sonicFP.SHA1, Size: sonicFP.Size},
			Medias: []screenscraper.Media{
				{Type: "box-2D", URL: "https://media.example/box.png", Region: "us", Format: "png", SHA1: "AAAA"},
				{Type: "ss", URL: "https://media.example/ss.png", Region: "wor", Format: "png"},
				{Type: "mixrbv2", URL: "https://media.example/mix.png"},
			},
		},
		Quota: ratelimit.Quota{RequestsToday: 40, MaxRequestsPerDay: 20000, MaxThreads: 2},
	}}
	limiter := newLimiter()
	resolver := NewResolver(api, limiter, nil)

	candidates, err := resolver.Resolve(context.Background(), sonicFP, Hints{SystemID: 1, RomName: "Sonic 2.zip"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.GameID != 3 || !c.Exact || c.Confidence != 0.9 {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if len(c.Assets) != 2 || c.Assets[0].Kind != media.KindBoxArt || c.Assets[0].Checksums.SHA1 != "aaaa" {
		t.Fatalf("unexpected assets %+v", c.Assets)
	}
	if api.lastQuery.RomName != "Sonic 2.zip" || api.lastQuery.SystemID != 1 || api.lastQuery.SHA1 != sonicFP.SHA1 {
		t.Fatalf("unexpected query %+v", api.lastQuery)
	}
	if api.searchCalls != 0 {
		t.Fatal("hash hit must not fall back to search")
	}
	status := limiter.Status()
	if status.Used != 40 || status.Threads != 2 || status.Active != 0 {
		t.Fatalf("limiter not reconciled: %+v", status)
	}
}

func TestResolveFallsBackToTitleSearch(t *testing.T) {
	api := &fakeAPI{
		infoErr: services.Wrap(services.ErrNotFound, "screenscraper", "jeuInfos.php", "rom not found", nil),
		search: &screenscraper.SearchResult{Games: []screenscraper.Game{
			{ID: 10, Name: "Pokemon Red", SystemID: 9, Rating: -1},
			{ID: 11, Name: "Pokemon Blue", SystemID: 9, Rating: 16},
		}},
	}
	limiter := newLimiter()
	resolver := NewResolver(api, limiter, nil)

	candidates, err := resolver.Resolve(context.Background(), rom.Fingerprint{SHA1: "ff", Size: 10, Entry: "Pokémon - Red Version (USA, Europe) [!].gb"}, Hints{SystemID: 9})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if api.lastSearch != "Pokemon - Red Version" || api.lastSystem != 9 {
		t.Fatalf("unexpected search %q system %d", api.lastSearch, api.lastSystem)
	}
	if len(candidates) != 2 || candidates[0].Exact || candidates[0].Confidence != 0 || candidates[1].Confidence != 0.8 {
		t.Fatalf("unexpected candidates %+v", candidates)
	}
	if used := limiter.Status().Used; used != 2 {
		t.Fatalf("expected two permits, got %d", used)
	}
}

func TestResolveErrors(t *testing.T) {
	notFound := services.Wrap(services.ErrNotFound, "screenscraper", "jeuInfos.php", "rom not found", nil)
	cases := []struct {
		name string
		api  *fakeAPI
		want error
	}{
		{"empty search", &fakeAPI{infoErr: notFound, search: &screenscraper.SearchResult{}}, services.ErrNotFound},
		{"search not found", &fakeAPI{infoErr: notFound, searchErr: notFound}, services.ErrNotFound},
		{"transient", &fakeAPI{infoErr: services.Wrap(services.ErrTransientLookup, "screenscraper", "jeuInfos.php", "503", nil)}, services.ErrTransientLookup},
		{"malformed", &fakeAPI{infoErr: services.Wrap(services.ErrMalformedResponse, "screenscraper", "jeuInfos.php", "bad json", nil)}, services.ErrMalformedResponse},
		{"unauthorized", &fakeAPI{infoErr: services.Wrap(services.ErrUnauthorized, "screenscraper", "jeuInfos.php", "403", nil)}, services.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(tc.api, newLimiter(), nil)
			_, err := resolver.Resolve(context.Background(), sonicFP, Hints{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveQuotaExhaustionLatches(t *testing.T) {
	api := &fakeAPI{infoErr: services.Wrap(services.ErrQuotaExhausted, "screenscraper", "jeuInfos.php", "430", nil)}
	limiter := newLimiter()
	resolver := NewResolver(api, limiter, nil)

	if _, err := resolver.Resolve(context.Background(), sonicFP, Hints{}); !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if !limiter.Status().Exhausted {
		t.Fatal("limiter should latch exhaustion")
	}
	if _, err := resolver.Resolve(context.Background(), sonicFP, Hints{}); !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if api.infoCalls != 1 {
		t.Fatalf("no call may be dispatched after exhaustion, got %d", api.infoCalls)
	}
}

func TestRomMatches(t *testing.T) {
	cases := []struct {
		name string
		rom  screenscraper.Rom
		want bool
	}{
		{"sha1", screenscraper.Rom{SHA1: sonicFP.SHA1}, true},
		{"sha1 differs", screenscraper.Rom{SHA1: "00", MD5: sonicFP.MD5}, false},
		{"md5 only", screenscraper.Rom{MD5: sonicFP.MD5}, true},
		{"crc only", screenscraper.Rom{CRC: "24AB4C3A"}, true},
		{"size differs", screenscraper.Rom{SHA1: sonicFP.SHA1, Size: 5}, false},
		{"nothing known", screenscraper.Rom{}, false},
	}
	for _, tc := range cases {
		if got := romMatches(tc.rom, sonicFP); got != tc.want {
			t.Errorf("%s: romMatches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSearchTitle(t *testing.T) {
	cases := map[string]string{
		"Sonic The Hedgehog 2 (World).zip":        "Sonic The Hedgehog 2",
		"/roms/snes/Chrono Trigger (USA) [!].sfc": "Chrono Trigger",
		"Pokémon - Édition Rouge (France).gb":     "Pokemon - Edition Rouge",
		"Legend_of_Zelda,_The_(Rev_1).nes":        "The Legend of Zelda",
		"Super Mario Bros. 3 (USA) (Rev A).nes":   "Super Mario Bros 3",
		"(Beta).nes":                              "",
	}
	for in, want := range cases {
		if got := SearchTitle(in); got != want {
			t.Errorf("SearchTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
