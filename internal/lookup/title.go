package lookup

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Region, revision and dump tags: (USA), [!], (Rev 1), [b1].
	tagPattern    = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	spacePattern  = regexp.MustCompile(`\s+`)
	articleSuffix = regexp.MustCompile(`(?i),\s*(the|a|an)$`)
)

// SearchTitle turns a ROM file name into a search query: extension and
// bracketed tags removed, accents folded, separators collapsed.
func SearchTitle(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if ext := path.Ext(name); ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, " )]") {
		name = strings.TrimSuffix(name, ext)
	}
	name = tagPattern.ReplaceAllString(name, " ")
	name = strings.NewReplacer("_", " ", ".", " ").Replace(name)
	name = foldAccents(name)
	name = strings.TrimSpace(spacePattern.ReplaceAllString(name, " "))
	if m := articleSuffix.FindStringSubmatch(name); m != nil {
		name = m[1] + " " + strings.TrimSpace(strings.TrimSuffix(name, m[0]))
	}
	return name
}

func foldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
