package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// settleDelay is how long a newly created file must sit quiet before it is
// uploaded. Editors and copies write in bursts; uploading mid-write ships
// a truncated file.
const settleDelay = 2 * time.Second

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and upload files created in it",
		Long: `Watch a local directory and upload each newly created file once its
writes settle. Uploads run one at a time, in creation order. Stop with
Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctrl := newController(progressObserver(stderrIsTerminal()))

	if err := gateCommand(cmd, ctrl); err != nil {
		return err
	}

	dir := args[0]

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("watch target %q is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := openLedger(ctx, logger)
	if ledger != nil {
		defer ledger.Close()
	}

	statusf("Watching %s (press Ctrl-C to stop).\n", dir)

	// pending tracks files seen but not yet settled, keyed by path with
	// the time of their last write.
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			statusf("Stopped.\n")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}

			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				if isUploadCandidate(event.Name) {
					pending[event.Name] = time.Now()
				}
			}

			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				delete(pending, event.Name)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}

			logger.Warn("watcher error",
				slog.String("error", watchErr.Error()),
			)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}

				delete(pending, path)

				task := ctrl.Upload(ctx, path)
				<-task.Done()

				recordOutcome(ctx, ledger, logger, task.Snapshot())
			}
		}
	}
}

// isUploadCandidate filters out directories, dotfiles, and partial
// download artifacts.
func isUploadCandidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".partial") {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}
