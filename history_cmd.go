package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/filedrop/filedrop-go/internal/history"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfer outcomes",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "maximum entries to show")

	return cmd
}

// historyOutput is the JSON schema for `history --json`.
type historyOutput struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	FinishedAt string `json:"finished_at"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctrl := newController(nil)

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("reading --limit flag: %w", err)
	}

	ledger, err := history.Open(cmd.Context(), resolvedCfg.HistoryDBPath, buildLogger())
	if err != nil {
		return fmt.Errorf("opening transfer history: %w", err)
	}
	defer ledger.Close()

	entries, err := ledger.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]historyOutput, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyOutput{
				ID:         e.ID,
				Kind:       string(e.Kind),
				Name:       e.Name,
				SizeBytes:  e.SizeBytes,
				Status:     string(e.Status),
				ErrorKind:  e.ErrorKind,
				FinishedAt: e.FinishedAt.Format(time.RFC3339),
			})
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(entries) == 0 {
		statusf("No transfers recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := string(e.Status)
		if e.Status == transfer.StatusFailed && e.ErrorKind != "" {
			detail = fmt.Sprintf("%s (%s)", e.Status, e.ErrorKind)
		}

		rows = append(rows, []string{
			string(e.Kind), e.Name, formatSize(e.SizeBytes), detail, formatTime(e.FinishedAt),
		})
	}

	printTable(os.Stdout, []string{"KIND", "NAME", "SIZE", "RESULT", "FINISHED"}, rows)

	return nil
}
