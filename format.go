package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/filedrop/filedrop-go/internal/api"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// stderrIsTerminal reports whether progress lines can be redrawn in place.
func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// progressObserver renders transfer snapshots as a single redrawn progress
// line on a terminal, or terse one-shot lines otherwise. Snapshots for one
// task arrive in order, so no locking is needed per line.
func progressObserver(tty bool) transfer.Observer {
	return func(snap transfer.Snapshot) {
		if flagQuiet {
			return
		}

		switch snap.Status {
		case transfer.StatusInFlight:
			if tty && snap.TotalBytes > 0 {
				fmt.Fprintf(os.Stderr, "\r%s %s: %3d%% (%s / %s)",
					snap.Kind, snap.Name, snap.Progress,
					formatSize(snap.SentBytes), formatSize(snap.TotalBytes))
			}
		case transfer.StatusSucceeded:
			if tty {
				fmt.Fprint(os.Stderr, "\r")
			}

			fmt.Fprintf(os.Stderr, "%s %s: done (%s)\n",
				snap.Kind, snap.Name, formatSize(snap.SentBytes))
		case transfer.StatusFailed:
			if tty {
				fmt.Fprint(os.Stderr, "\r")
			}

			fmt.Fprintf(os.Stderr, "%s %s: failed (%s) at %d%%\n",
				snap.Kind, snap.Name, snap.ErrKind, snap.Progress)
		case transfer.StatusCancelled:
			if tty {
				fmt.Fprint(os.Stderr, "\r")
			}

			fmt.Fprintf(os.Stderr, "%s %s: cancelled at %d%%\n",
				snap.Kind, snap.Name, snap.Progress)
		}
	}
}

// describeFailure renders a terminal snapshot as a CLI error.
func describeFailure(snap transfer.Snapshot) error {
	switch snap.Status {
	case transfer.StatusCancelled:
		return fmt.Errorf("%s of %s cancelled", snap.Kind, snap.Name)
	case transfer.StatusFailed:
		if snap.ErrKind == api.KindUnauthorized {
			return fmt.Errorf("%s of %s rejected: session expired, run 'filedrop login' again", snap.Kind, snap.Name)
		}

		if snap.Err != nil {
			return fmt.Errorf("%s of %s failed: %w", snap.Kind, snap.Name, snap.Err)
		}

		return fmt.Errorf("%s of %s failed (%s)", snap.Kind, snap.Name, snap.ErrKind)
	default:
		return nil
	}
}
