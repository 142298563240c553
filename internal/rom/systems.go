package rom

import (
	"path/filepath"
	"sort"
	"strings"
)

// System describes a platform as ScreenScraper knows it.
type System struct {
	Name       string
	ID         int
	Extensions []string
}

// HasExtension reports whether name carries a native ROM extension for the system.
func (s System) HasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, candidate := range s.Extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

var builtinSystems = []System{
	{Name: "megadrive", ID: 1, Extensions: []string{".md", ".gen", ".smd", ".bin"}},
	{Name: "mastersystem", ID: 2, Extensions: []string{".sms"}},
	{Name: "nes", ID: 3, Extensions: []string{".nes", ".fds", ".unf"}},
	{Name: "snes", ID: 4, Extensions: []string{".sfc", ".smc", ".fig", ".swc"}},
	{Name: "gb", ID: 9, Extensions: []string{".gb"}},
	{Name: "gbc", ID: 10, Extensions: []string{".gbc"}},
	{Name: "gba", ID: 12, Extensions: []string{".gba"}},
	{Name: "n64", ID: 14, Extensions: []string{".n64", ".z64", ".v64"}},
	{Name: "nds", ID: 15, Extensions: []string{".nds"}},
	{Name: "gamegear", ID: 21, Extensions: []string{".gg"}},
	{Name: "atari2600", ID: 26, Extensions: []string{".a26", ".bin"}},
	{Name: "pcengine", ID: 31, Extensions: []string{".pce"}},
	{Name: "psx", ID: 57, Extensions: []string{".bin", ".iso", ".chd", ".pbp"}},
	{Name: "neogeo", ID: 142, Extensions: []string{".neo"}},
}

var builtinAliases = map[string]string{
	"genesis": "megadrive",
	"sms":     "mastersystem",
	"famicom": "nes",
	"sfc":     "snes",
	"tg16":    "pcengine",
	"ps1":     "psx",
}

// Systems maps ROM directory names to ScreenScraper systems.
type Systems struct {
	byName map[string]System
}

// DefaultSystems returns the builtin table.
func DefaultSystems() *Systems {
	return NewSystems(nil)
}

// NewSystems builds the builtin table and applies directory-name overrides.
// An override for an unknown name adds a system without extension hints.
func NewSystems(overrides map[string]int) *Systems {
	table := &Systems{byName: make(map[string]System, len(builtinSystems)+len(builtinAliases)+len(overrides))}
	for _, sys := range builtinSystems {
		table.byName[sys.Name] = sys
	}
	for alias, target := range builtinAliases {
		table.byName[alias] = table.byName[target]
	}
	for name, id := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || id <= 0 {
			continue
		}
		sys := table.byName[key]
		if sys.Name == "" {
			sys.Name = key
		}
		sys.ID = id
		table.byName[key] = sys
	}
	return table
}

// Lookup resolves a directory name or system hint.
func (s *Systems) Lookup(name string) (System, bool) {
	if s == nil {
		return System{}, false
	}
	sys, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return sys, ok
}

// ID returns the ScreenScraper system ID for a hint, or 0 when unknown.
func (s *Systems) ID(name string) int {
	sys, _ := s.Lookup(name)
	return sys.ID
}

// Names lists every directory name the table recognises.
func (s *Systems) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
