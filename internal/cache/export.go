package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export writes every entry to w as "json" or "yaml". Both formats use the
// stored document field names.
func (s *Store) Export(ctx context.Context, w io.Writer, format string) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*Entry{}
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml", "yml":
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal entries: %w", err)
		}
		var generic []any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("normalize entries: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q (want json or yaml)", format)
	}
}
