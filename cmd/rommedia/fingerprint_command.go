package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rommedia/internal/fingerprint"
	"rommedia/internal/rom"
)

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fingerprint <path> [path...]",
		Short: "Print the CRC32, MD5 and SHA1 of ROM payloads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			fingerprinter := fingerprint.New(rom.NewSystems(cfg.Systems))

			type row struct {
				Path        string          `json:"path"`
				Fingerprint rom.Fingerprint `json:"fingerprint"`
				Key         string          `json:"key"`
				Error       string          `json:"error,omitempty"`
			}
			var rows []row
			for _, arg := range args {
				files, err := rom.Scan(runCtx, arg)
				if err != nil {
					return err
				}
				for _, file := range files {
					fp, err := fingerprinter.Compute(runCtx, file)
					r := row{Path: file.Path}
					if err != nil {
						r.Error = err.Error()
					} else {
						r.Fingerprint = fp
						r.Key = fp.Key()
					}
					rows = append(rows, r)
				}
			}

			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			tableRows := make([][]string, 0, len(rows))
			for _, r := range rows {
				if r.Error != "" {
					tableRows = append(tableRows, []string{r.Path, "error: " + r.Error, "", "", "", ""})
					continue
				}
				tableRows = append(tableRows, []string{
					r.Path,
					r.Fingerprint.Entry,
					strconv.FormatInt(r.Fingerprint.Size, 10),
					r.Fingerprint.CRC32,
					r.Fingerprint.MD5,
					r.Fingerprint.SHA1,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{left("Path").wrapped(pathWidth), left("Entry"), right("Size"), left("CRC32"), left("MD5"), left("SHA1")},
				tableRows,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print fingerprints as JSON")
	return cmd
}
