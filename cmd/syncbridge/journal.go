package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/criticalpoint/syncbridge/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal RUN_ID",
	Short: "Print the stored summary of a journaled run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := xid.FromString(args[0])
		if err != nil {
			return fmt.Errorf("run id %q: %w", args[0], err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled() {
			return fmt.Errorf("journal is disabled in the config")
		}
		log, err := newLogger(cfg.Logging)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, err := journal.Open(ctx, cfg.Journal, log)
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := journal.New(db, 1, log).Summary(ctx, runID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run       %s\n", s.RunID)
		fmt.Fprintf(out, "scene     %s\n", s.Scene)
		fmt.Fprintf(out, "advanced  %d\n", s.Advanced)
		fmt.Fprintf(out, "ticks     %d\n", s.Ticks)
		fmt.Fprintf(out, "released  %d\n", s.Released)
		fmt.Fprintf(out, "finished  %t\n", s.Finished)
		return nil
	},
}
