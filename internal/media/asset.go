package media

import (
	"path"
	"strings"
)

// Kind classifies an asset.
type Kind string

const (
	KindBoxArt      Kind = "boxart"
	KindBox3D       Kind = "box3d"
	KindScreenshot  Kind = "screenshot"
	KindTitleScreen Kind = "titlescreen"
	KindWheel       Kind = "wheel"
	KindFanart      Kind = "fanart"
	KindVideo       Kind = "video"
	KindManual      Kind = "manual"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindBoxArt, KindBox3D, KindScreenshot, KindTitleScreen, KindWheel, KindFanart, KindVideo, KindManual}

var screenScraperTypes = map[string]Kind{
	"box-2d":           KindBoxArt,
	"box-3d":           KindBox3D,
	"ss":               KindScreenshot,
	"sstitle":          KindTitleScreen,
	"wheel":            KindWheel,
	"wheel-hd":         KindWheel,
	"fanart":           KindFanart,
	"video":            KindVideo,
	"video-normalized": KindVideo,
	"manuel":           KindManual,
}

// KindFromScreenScraper maps a ScreenScraper media type onto a Kind.
func KindFromScreenScraper(mediaType string) (Kind, bool) {
	kind, ok := screenScraperTypes[strings.ToLower(strings.TrimSpace(mediaType))]
	return kind, ok
}

// ParseKind validates a configured kind name.
func ParseKind(value string) (Kind, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, kind := range Kinds {
		if string(kind) == value {
			return kind, true
		}
	}
	return "", false
}

// Checksums holds whatever digests the remote reported for an asset. Values
// are lowercase hex.
type Checksums struct {
	SHA1  string `json:"sha1,omitempty"`
	MD5   string `json:"md5,omitempty"`
	CRC32 string `json:"crc32,omitempty"`
}

// Preferred returns the strongest known digest: sha1, then md5, then crc32.
func (c Checksums) Preferred() (algorithm, value string) {
	switch {
	case c.SHA1 != "":
		return "sha1", c.SHA1
	case c.MD5 != "":
		return "md5", c.MD5
	case c.CRC32 != "":
		return "crc32", c.CRC32
	default:
		return "", ""
	}
}

// IsZero reports whether no digest is known.
func (c Checksums) IsZero() bool {
	algorithm, _ := c.Preferred()
	return algorithm == ""
}

// Matches compares the preferred digest of want against got.
func (c Checksums) Matches(got Checksums) bool {
	algorithm, want := c.Preferred()
	var have string
	switch algorithm {
	case "sha1":
		have = got.SHA1
	case "md5":
		have = got.MD5
	case "crc32":
		have = got.CRC32
	default:
		return true
	}
	return strings.EqualFold(want, have)
}

// Descriptor is an asset offered by a remote candidate.
type Descriptor struct {
	Kind      Kind      `json:"kind"`
	Region    string    `json:"region,omitempty"`
	URL       string    `json:"url"`
	Format    string    `json:"format,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Checksums Checksums `json:"checksums,omitempty"`
}

// Status tracks an asset's download lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// AssetRef is an asset scheduled for, or resulting from, a download.
type AssetRef struct {
	Kind      Kind      `json:"kind"`
	URL       string    `json:"url"`
	Location  string    `json:"location"`
	Status    Status    `json:"status"`
	Checksums Checksums `json:"checksums,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// NewAssetRef builds a pending reference for a descriptor published at location.
func NewAssetRef(d Descriptor, location string) AssetRef {
	return AssetRef{
		Kind:      d.Kind,
		URL:       d.URL,
		Location:  location,
		Status:    StatusPending,
		Checksums: d.Checksums,
		Size:      d.Size,
	}
}

// Location returns the sink-relative path for an asset:
// <system>/<kind>/<rom name without extension>.<tag>.<format>. tag tells
// apart ROMs that share a name stem; it is omitted when empty.
func Location(system, romName, tag string, kind Kind, format string) string {
	base := path.Base(strings.ReplaceAll(romName, "\\", "/"))
	base = sanitize(strings.TrimSuffix(base, path.Ext(base)))
	if base == "" {
		base = "unknown"
	}
	if tag = sanitize(strings.ToLower(tag)); tag != "" {
		base += "." + tag
	}
	system = sanitize(strings.ToLower(system))
	if system == "" {
		system = "unsorted"
	}
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" {
		format = defaultFormat(kind)
	}
	return path.Join(system, string(kind), base+"."+format)
}

func defaultFormat(kind Kind) string {
	switch kind {
	case KindVideo:
		return "mp4"
	case KindManual:
		return "pdf"
	default:
		return "png"
	}
}

func sanitize(value string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "." || value == ".." {
		return ""
	}
	return value
}
