package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/appstore/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently executed commands",
	Long: `Lists the most recent pip commands issued by the store, newest first.

Requires [history] enabled = true in the configuration.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "number of entries (default: history.limit)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return errors.New("operation history is disabled (set history.enabled = true)")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := historyLimit
	if limit <= 0 {
		limit = cfg.History.Limit
	}

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No operations recorded yet.")
		return nil
	}

	fmt.Printf("%-19s  %-9s  %-25s  %-7s  %8s  %s\n", "STARTED", "KIND", "PACKAGE", "RESULT", "DURATION", "COMMAND")
	for _, e := range entries {
		result := "ok"
		if !e.Succeeded() {
			result = fmt.Sprintf("rc=%d", e.ExitCode)
		}
		fmt.Printf("%-19s  %-9s  %-25s  %-7s  %8s  %s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Kind,
			e.Package,
			result,
			e.Duration().Round(time.Millisecond),
			e.Command,
		)
	}
	return nil
}
