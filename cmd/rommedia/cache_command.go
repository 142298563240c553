package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rommedia/internal/cache"
	"rommedia/internal/fingerprint"
	"rommedia/internal/media"
	"rommedia/internal/rom"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the resolution cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheExportCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached ROM resolutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				complete := 0
				for _, entry := range entries {
					if entry.Complete() {
						complete++
					}
					rows = append(rows, []string{
						entry.Key(),
						entry.RomPath,
						entryStatus(entry),
						assetProgress(entry),
						entry.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{left("Key"), left("ROM").wrapped(pathWidth), left("Status"), right("Assets"), left("Updated")},
					rows,
					fmt.Sprintf("%d entries", len(entries)), "", fmt.Sprintf("%d complete", complete),
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key|rom-path>",
		Short: "Show one cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				entry, err := findEntry(cmd.Context(), ctx, store, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, entry)
			})
		},
	}
}

func newCacheExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every cache entry as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				var out io.Writer = cmd.OutOrStdout()
				if outputPath != "" {
					file, err := os.Create(outputPath)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer file.Close()
					out = file
				}
				return store.Export(cmd.Context(), out, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format (json or yaml)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key|rom-path>",
		Short: "Forget one ROM so the next scrape looks it up again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				entry, err := findEntry(cmd.Context(), ctx, store, args[0])
				if err != nil {
					return err
				}
				removed, err := store.Remove(cmd.Context(), entry.Key())
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", entry.Key(), entry.RomPath)
				}
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear the cache without --yes")
			}
			return ctx.withCache(func(store *cache.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm clearing the cache")
	return cmd
}

// findEntry accepts a fingerprint key or a ROM path. Paths are fingerprinted
// so renamed files still find their entry.
func findEntry(runCtx context.Context, ctx *commandContext, store *cache.Store, arg string) (*cache.Entry, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("cache key or rom path is required")
	}
	if strings.HasPrefix(arg, "sha1:") {
		entry, err := store.GetByKey(runCtx, arg)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, fmt.Errorf("no cache entry for %s", arg)
		}
		return entry, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	files, err := rom.Scan(runCtx, arg)
	if err != nil {
		return nil, err
	}
	if len(files) != 1 {
		return nil, fmt.Errorf("%s is not a single rom file", arg)
	}
	fp, err := fingerprint.New(rom.NewSystems(cfg.Systems)).Compute(runCtx, files[0])
	if err != nil {
		return nil, err
	}
	entry, err := store.Get(runCtx, fp)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no cache entry for %s (%s)", arg, fp.Key())
	}
	return entry, nil
}

func entryStatus(entry *cache.Entry) string {
	if entry.Record.Resolved {
		return fmt.Sprintf("%s (#%d)", entry.Record.Title, entry.Record.GameID)
	}
	return "unresolved: " + string(entry.Record.Reason)
}

func assetProgress(entry *cache.Entry) string {
	if !entry.Record.Resolved {
		return "-"
	}
	complete := 0
	for _, ref := range entry.Assets {
		if ref.Status == media.StatusComplete {
			complete++
		}
	}
	return fmt.Sprintf("%d/%d", complete, len(entry.Record.Assets))
}
