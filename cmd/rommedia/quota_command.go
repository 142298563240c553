package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rommedia/internal/screenscraper"
	"rommedia/internal/transport"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show the ScreenScraper account quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client, err := screenscraper.New(cfg.ScreenScraper.BaseURL, screenscraper.Credentials{
				DevID:       cfg.ScreenScraper.DevID,
				DevPassword: cfg.ScreenScraper.DevPassword,
				Software:    cfg.ScreenScraper.Software,
				Username:    cfg.ScreenScraper.Username,
				Password:    cfg.ScreenScraper.Password,
			},
				screenscraper.WithHTTPClient(transport.New(transport.Options{UserAgent: cfg.ScreenScraper.Software, Logger: logger})),
				screenscraper.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			info, err := client.UserInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("query account: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, info)
			}
			q := info.Quota
			rows := [][]string{
				{"User", info.ID},
				{"Level", strconv.Itoa(info.Level)},
				{"Requests today", fmt.Sprintf("%d / %d", q.RequestsToday, q.MaxRequestsPerDay)},
				{"Not-found today", fmt.Sprintf("%d / %d", info.RequestsKOToday, info.MaxRequestsKOPerDay)},
				{"Requests per minute", strconv.Itoa(q.MaxRequestsPerMin)},
				{"Threads", strconv.Itoa(q.MaxThreads)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{left("Account"), right("Value")}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the account as JSON")
	return cmd
}
