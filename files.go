package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/filedrop/filedrop-go/internal/api"
	"github.com/filedrop/filedrop-go/internal/history"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

// downloadWorkers bounds the parallel download pool. Uploads stay
// sequential — the vault takes one upload per control at a time.
const downloadWorkers = 4

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE:  runLs,
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files to the vault",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <name>...",
		Short: "Download stored files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDownload,
	}

	cmd.Flags().String("dest", "", "destination directory (default: current directory)")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRm,
	}
}

// fileOutput is the JSON schema for `ls --json`.
type fileOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

func runLs(cmd *cobra.Command, _ []string) error {
	ctrl := newController(nil)

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	records, err := ctrl.RefreshFileList(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	if flagJSON {
		out := make([]fileOutput, 0, len(records))
		for _, r := range records {
			fo := fileOutput{ID: r.ID, Name: r.Name, SizeBytes: r.SizeBytes}
			if !r.UploadedAt.IsZero() {
				fo.UploadedAt = r.UploadedAt.Format(time.RFC3339)
			}

			out = append(out, fo)
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(records) == 0 {
		statusf("No files stored.\n")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Name, formatSize(r.SizeBytes), formatTime(r.UploadedAt)})
	}

	printTable(os.Stdout, []string{"NAME", "SIZE", "UPLOADED"}, rows)

	return nil
}

// openLedger opens the transfer history database. Failure degrades to a
// nil ledger — a broken history file must not block transfers.
func openLedger(ctx context.Context, logger *slog.Logger) *history.Ledger {
	ledger, err := history.Open(ctx, resolvedCfg.HistoryDBPath, logger)
	if err != nil {
		logger.Warn("transfer history unavailable",
			slog.String("error", err.Error()),
		)

		return nil
	}

	return ledger
}

// recordOutcome appends a terminal snapshot to the ledger, best effort.
func recordOutcome(ctx context.Context, ledger *history.Ledger, logger *slog.Logger, snap transfer.Snapshot) {
	if ledger == nil {
		return
	}

	if err := ledger.Record(ctx, snap); err != nil {
		logger.Warn("recording transfer history failed",
			slog.String("task_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctrl := newController(progressObserver(stderrIsTerminal()))

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	ctx := cmd.Context()

	ledger := openLedger(ctx, logger)
	if ledger != nil {
		defer ledger.Close()
	}

	var firstErr error

	for _, path := range args {
		task := ctrl.Upload(ctx, path)
		<-task.Done()

		snap := task.Snapshot()
		recordOutcome(ctx, ledger, logger, snap)

		if err := describeFailure(snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctrl := newController(progressObserver(stderrIsTerminal()))

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	destDir, err := cmd.Flags().GetString("dest")
	if err != nil {
		return fmt.Errorf("reading --dest flag: %w", err)
	}

	if destDir == "" {
		destDir = resolvedCfg.DownloadDir
	}

	ctx := cmd.Context()

	records, err := ctrl.RefreshFileList(ctx)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	byName := make(map[string]api.FileRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	ledger := openLedger(ctx, logger)
	if ledger != nil {
		defer ledger.Close()
	}

	for _, name := range args {
		if _, ok := byName[name]; !ok {
			return fmt.Errorf("no stored file named %q", name)
		}
	}

	// Each download is an independent task; the pool only bounds how many
	// run at once.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)

	results := make([]transfer.Snapshot, len(args))

	for i, name := range args {
		rec := byName[name]

		g.Go(func() error {
			task := ctrl.Download(gctx, rec, destDir)
			<-task.Done()

			results[i] = task.Snapshot()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var firstErr error

	for _, snap := range results {
		recordOutcome(ctx, ledger, logger, snap)

		if err := describeFailure(snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func runRm(cmd *cobra.Command, args []string) error {
	ctrl := newController(nil)

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	name := args[0]

	if err := ctrl.DeleteFile(cmd.Context(), name); err != nil {
		return fmt.Errorf("deleting %q: %w", name, err)
	}

	statusf("Deleted %s.\n", name)

	return nil
}
