package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"rommedia/internal/rom"
)

// FakeMedia is one asset served by FakeScreenScraper.
type FakeMedia struct {
	Type   string
	Region string
	Format string
	Body   []byte
	// AdvertisedSHA1 overrides the checksum in the game payload.
	AdvertisedSHA1 string
}

// FakeGame is a game registered under a ROM fingerprint.
type FakeGame struct {
	ID         int
	Name       string
	SystemID   int
	SystemName string
	Rating     float64
	ROM        rom.Fingerprint
	Media      []FakeMedia
}

// FakeScreenScraper serves the subset of api2 the resolver uses plus the
// media files the games advertise.
type FakeScreenScraper struct {
	Server *httptest.Server

	mu        sync.Mutex
	games     []FakeGame
	exhausted map[string]bool

	apiCalls   atomic.Int64
	mediaCalls atomic.Int64
}

// NewFakeScreenScraper starts a server that is closed with the test.
func NewFakeScreenScraper(t testing.TB) *FakeScreenScraper {
	t.Helper()
	f := &FakeScreenScraper{exhausted: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api2/jeuInfos.php", f.handleGameInfo)
	mux.HandleFunc("/api2/jeuRecherche.php", f.handleSearch)
	mux.HandleFunc("/api2/ssuserInfos.php", f.handleUser)
	mux.HandleFunc("/media/", f.handleMedia)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the api2 root to configure the client with.
func (f *FakeScreenScraper) BaseURL() string {
	return f.Server.URL + "/api2"
}

// AddGame registers a game.
func (f *FakeScreenScraper) AddGame(g FakeGame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games = append(f.games, g)
}

// ExhaustQuotaFor answers lookups for sha1 with HTTP 430.
func (f *FakeScreenScraper) ExhaustQuotaFor(sha1 string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exhausted[strings.ToLower(sha1)] = true
}

// APICalls counts api2 requests.
func (f *FakeScreenScraper) APICalls() int64 {
	return f.apiCalls.Load()
}

// MediaCalls counts media downloads.
func (f *FakeScreenScraper) MediaCalls() int64 {
	return f.mediaCalls.Load()
}

func (f *FakeScreenScraper) handleGameInfo(w http.ResponseWriter, r *http.Request) {
	calls := f.apiCalls.Add(1)
	sha1 := strings.ToLower(r.URL.Query().Get("sha1"))

	f.mu.Lock()
	exhausted := f.exhausted[sha1]
	var game *FakeGame
	for i := range f.games {
		if f.games[i].ROM.SHA1 == sha1 {
			game = &f.games[i]
			break
		}
	}
	f.mu.Unlock()

	switch {
	case exhausted:
		http.Error(w, "Le quota de scrape est dépassé", 430)
	case game == nil:
		http.Error(w, "Erreur : Rom/Iso/Dossier non trouvée !  ", http.StatusNotFound)
	default:
		f.writeJSON(w, map[string]any{
			"ssuser": f.user(calls),
			"jeu":    f.gamePayload(*game),
		})
	}
}

func (f *FakeScreenScraper) handleSearch(w http.ResponseWriter, r *http.Request) {
	calls := f.apiCalls.Add(1)
	query := strings.ToLower(r.URL.Query().Get("recherche"))

	f.mu.Lock()
	jeux := []any{}
	for _, game := range f.games {
		if query != "" && strings.Contains(strings.ToLower(game.Name), query) {
			jeux = append(jeux, f.gamePayload(game))
		}
	}
	f.mu.Unlock()

	f.writeJSON(w, map[string]any{"ssuser": f.user(calls), "jeux": jeux})
}

func (f *FakeScreenScraper) handleUser(w http.ResponseWriter, _ *http.Request) {
	calls := f.apiCalls.Add(1)
	f.writeJSON(w, map[string]any{"ssuser": f.user(calls)})
}

func (f *FakeScreenScraper) handleMedia(w http.ResponseWriter, r *http.Request) {
	f.mediaCalls.Add(1)
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/media/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	gameID, _ := strconv.Atoi(parts[0])
	index, _ := strconv.Atoi(parts[1])

	f.mu.Lock()
	var body []byte
	found := false
	for _, game := range f.games {
		if game.ID == gameID && index >= 0 && index < len(game.Media) {
			body = game.Media[index].Body
			found = true
			break
		}
	}
	f.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func (f *FakeScreenScraper) user(calls int64) map[string]any {
	return map[string]any{
		"id":                "tester",
		"niveau":            "1",
		"requeststoday":     strconv.FormatInt(calls, 10),
		"maxrequestsperday": "20000",
		"maxrequestspermin": "6000",
		"maxthreads":        "4",
	}
}

func (f *FakeScreenScraper) gamePayload(g FakeGame) map[string]any {
	medias := make([]any, 0, len(g.Media))
	for i, m := range g.Media {
		sum := m.AdvertisedSHA1
		if sum == "" {
			sum = SHA1Hex(m.Body)
		}
		medias = append(medias, map[string]any{
			"type":   m.Type,
			"url":    fmt.Sprintf("%s/media/%d/%d", f.Server.URL, g.ID, i),
			"region": m.Region,
			"format": m.Format,
			"size":   strconv.Itoa(len(m.Body)),
			"sha1":   sum,
		})
	}
	return map[string]any{
		"id":      strconv.Itoa(g.ID),
		"noms":    []any{map[string]any{"region": "wor", "text": g.Name}},
		"systeme": map[string]any{"id": strconv.Itoa(g.SystemID), "text": g.SystemName},
		"note":    map[string]any{"text": strconv.FormatFloat(g.Rating, 'f', -1, 64)},
		"rom": map[string]any{
			"romsize": strconv.FormatInt(g.ROM.Size, 10),
			"romcrc":  strings.ToUpper(g.ROM.CRC32),
			"rommd5":  strings.ToUpper(g.ROM.MD5),
			"romsha1": strings.ToUpper(g.ROM.SHA1),
		},
		"medias": medias,
	}
}

func (f *FakeScreenScraper) writeJSON(w http.ResponseWriter, response map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"header":   map[string]any{"APIversion": "2.0", "success": "true"},
		"response": response,
	})
}
