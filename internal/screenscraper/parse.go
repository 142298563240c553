package screenscraper

import (
	"strings"

	"github.com/tidwall/gjson"

	"rommedia/internal/ratelimit"
)

var namePreference = []string{"ss", "wor", "us", "eu", "jp"}

// ScreenScraper encodes numbers as strings, so every numeric read goes through
// gjson's lenient conversions.
func parseQuota(user gjson.Result) ratelimit.Quota {
	return ratelimit.Quota{
		RequestsToday:     int(user.Get("requeststoday").Int()),
		MaxRequestsPerDay: int(user.Get("maxrequestsperday").Int()),
		MaxRequestsPerMin: int(user.Get("maxrequestspermin").Int()),
		MaxThreads:        int(user.Get("maxthreads").Int()),
	}
}

func parseGame(jeu gjson.Result) Game {
	game := Game{
		ID:         int(jeu.Get("id").Int()),
		Name:       preferredName(jeu.Get("noms")),
		SystemID:   int(jeu.Get("systeme.id").Int()),
		SystemName: strings.TrimSpace(jeu.Get("systeme.text").String()),
		Rating:     -1,
	}
	if game.Name == "" {
		game.Name = strings.TrimSpace(jeu.Get("nom").String())
	}
	if note := jeu.Get("note.text"); note.Exists() && strings.TrimSpace(note.String()) != "" {
		game.Rating = note.Float()
	}
	if romBlock := jeu.Get("rom"); romBlock.IsObject() {
		game.Rom = parseRom(romBlock)
	}
	for _, r := range jeu.Get("roms").Array() {
		game.Roms = append(game.Roms, parseRom(r))
	}
	for _, m := range jeu.Get("medias").Array() {
		media := Media{
			Type:   m.Get("type").String(),
			URL:    m.Get("url").String(),
			Region: strings.ToLower(m.Get("region").String()),
			Format: strings.ToLower(m.Get("format").String()),
			Size:   m.Get("size").Int(),
			CRC:    strings.ToLower(m.Get("crc").String()),
			MD5:    strings.ToLower(m.Get("md5").String()),
			SHA1:   strings.ToLower(m.Get("sha1").String()),
		}
		if media.Type == "" || media.URL == "" {
			continue
		}
		game.Medias = append(game.Medias, media)
	}
	return game
}

func parseRom(r gjson.Result) Rom {
	return Rom{
		ID:       int(r.Get("id").Int()),
		FileName: r.Get("romfilename").String(),
		Size:     r.Get("romsize").Int(),
		CRC:      strings.ToLower(r.Get("romcrc").String()),
		MD5:      strings.ToLower(r.Get("rommd5").String()),
		SHA1:     strings.ToLower(r.Get("romsha1").String()),
	}
}

func preferredName(noms gjson.Result) string {
	names := map[string]string{}
	var first string
	for _, n := range noms.Array() {
		text := strings.TrimSpace(n.Get("text").String())
		if text == "" {
			continue
		}
		if first == "" {
			first = text
		}
		region := strings.ToLower(n.Get("region").String())
		if _, ok := names[region]; !ok {
			names[region] = text
		}
	}
	for _, region := range namePreference {
		if name, ok := names[region]; ok {
			return name
		}
	}
	return first
}
