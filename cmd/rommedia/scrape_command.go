package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rommedia/internal/pipeline"
	"rommedia/internal/preflight"
	"rommedia/internal/rom"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var rescrape bool
	var concurrency int
	var skipPreflight bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scrape <library> [library...]",
		Short: "Identify ROMs and download their media",
		Long: "Scan each library (laid out as <root>/<system>/<rom>), identify every ROM on\n" +
			"ScreenScraper, and download the configured media kinds. Results are cached so\n" +
			"a second run only touches what is new or incomplete.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Scrape.MaxConcurrency = concurrency
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			var files []rom.File
			for _, root := range args {
				found, err := rom.Scan(runCtx, root)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No ROMs found")
				return nil
			}

			progress := newProgressReporter(cmd.ErrOrStderr(), len(files))
			stack, err := pipeline.Assemble(runCtx, cfg, pipeline.StackOptions{
				Logger:   logger,
				Reporter: progress,
				Rescrape: rescrape,
			})
			if err != nil {
				return explainCacheError(err, cfg.CacheDBPath())
			}
			defer stack.Close()

			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(runCtx, cfg, stack.Client)); len(failed) > 0 {
					status := newStatusPrinter(cmd.ErrOrStderr())
					for _, result := range failed {
						status.print(result.Name, statusError, result.Detail)
					}
					return errors.New("preflight checks failed")
				}
			}

			summary := stack.Orchestrator.Run(runCtx, files)
			if jsonOutput {
				if err := writeJSON(cmd, newSummaryView(summary)); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, renderSummary(summary))
			}
			return summaryError(summary)
		},
	}

	cmd.Flags().BoolVar(&rescrape, "rescrape", false, "Look every ROM up again, ignoring cached resolutions")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Override scrape.max_concurrency")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and account checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

// summaryError makes halted runs and per-ROM failures visible in the exit status.
func summaryError(s pipeline.Summary) error {
	switch {
	case s.Canceled:
		return nil
	case s.Halted:
		return fmt.Errorf("run halted (%s); %d rom(s) deferred to a later run", s.HaltReason, s.Deferred)
	case s.Failed > 0:
		return fmt.Errorf("%d rom(s) failed", s.Failed)
	default:
		return nil
	}
}

func renderSummary(s pipeline.Summary) string {
	rows := [][]string{
		{"ROMs", strconv.Itoa(s.Total)},
		{"Resolved", strconv.Itoa(s.Resolved)},
		{"Unresolved", strconv.Itoa(s.Unresolved)},
		{"Deferred", strconv.Itoa(s.Deferred)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Assets downloaded", strconv.Itoa(s.AssetsDownloaded)},
		{"Assets already present", strconv.Itoa(s.AssetsSkipped)},
		{"Assets failed", strconv.Itoa(s.AssetsFailed)},
		{"Duration", s.Duration().Round(time.Millisecond).String()},
	}
	if s.Halted {
		rows = append(rows, []string{"Halted", s.HaltReason})
	}
	if s.Canceled {
		rows = append(rows, []string{"Canceled", yesNo(true)})
	}
	return fmt.Sprintf("Run %s\n%s\n", s.RunID, renderTable([]column{left("Metric"), right("Value")}, rows))
}

type summaryView struct {
	RunID            string        `json:"run_id"`
	Total            int           `json:"total"`
	Resolved         int           `json:"resolved"`
	Unresolved       int           `json:"unresolved"`
	Deferred         int           `json:"deferred"`
	Failed           int           `json:"failed"`
	AssetsDownloaded int           `json:"assets_downloaded"`
	AssetsSkipped    int           `json:"assets_skipped"`
	AssetsFailed     int           `json:"assets_failed"`
	Halted           bool          `json:"halted"`
	HaltReason       string        `json:"halt_reason,omitempty"`
	Canceled         bool          `json:"canceled"`
	DurationMS       int64         `json:"duration_ms"`
	Roms             []outcomeView `json:"roms"`
}

type outcomeView struct {
	Path      string `json:"path"`
	State     string `json:"state"`
	GameID    int64  `json:"game_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Reason    string `json:"reason,omitempty"`
	CacheHit  bool   `json:"cache_hit"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func newSummaryView(s pipeline.Summary) summaryView {
	view := summaryView{
		RunID:            s.RunID,
		Total:            s.Total,
		Resolved:         s.Resolved,
		Unresolved:       s.Unresolved,
		Deferred:         s.Deferred,
		Failed:           s.Failed,
		AssetsDownloaded: s.AssetsDownloaded,
		AssetsSkipped:    s.AssetsSkipped,
		AssetsFailed:     s.AssetsFailed,
		Halted:           s.Halted,
		HaltReason:       s.HaltReason,
		Canceled:         s.Canceled,
		DurationMS:       s.Duration().Milliseconds(),
		Roms:             make([]outcomeView, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		row := outcomeView{
			Path:      o.Rom.Path,
			State:     string(o.State),
			GameID:    o.Record.GameID,
			Title:     o.Record.Title,
			Reason:    string(o.Record.Reason),
			CacheHit:  o.CacheHit,
			ErrorKind: o.ErrorKind,
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		view.Roms = append(view.Roms, row)
	}
	return view
}
