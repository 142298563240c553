package screenscraper

import (
	"rommedia/internal/ratelimit"
)

// Game is one jeu entry from jeuInfos.php or jeuRecherche.php.
type Game struct {
	ID         int
	Name       string
	SystemID   int
	SystemName string
	// Rating is the note out of 20, or -1 when the API reported none.
	Rating float64
	// Rom is the ROM the API matched the request to; empty for searches.
	Rom    Rom
	Roms   []Rom
	Medias []Media
}

// Rom carries the hashes the API knows for a dump.
type Rom struct {
	ID       int
	FileName string
	Size     int64
	CRC      string
	MD5      string
	SHA1     string
}

// Media is one downloadable asset.
type Media struct {
	Type   string
	URL    string
	Region string
	Format string
	Size   int64
	CRC    string
	MD5    string
	SHA1   string
}

// GameQuery holds the jeuInfos.php identification parameters.
type GameQuery struct {
	CRC      string
	MD5      string
	SHA1     string
	Size     int64
	SystemID int
	RomName  string
}

// GameResult is a jeuInfos.php response.
type GameResult struct {
	Game  Game
	Quota ratelimit.Quota
}

// SearchResult is a jeuRecherche.php response.
type SearchResult struct {
	Games []Game
	Quota ratelimit.Quota
}

// UserInfo is a ssuserInfos.php response.
type UserInfo struct {
	ID    string          `json:"id"`
	Level int             `json:"level"`
	Quota ratelimit.Quota `json:"quota"`
	// RequestsKOToday counts not-found lookups, which have their own cap.
	RequestsKOToday     int `json:"requests_ko_today"`
	MaxRequestsKOPerDay int `json:"max_requests_ko_per_day"`
}
