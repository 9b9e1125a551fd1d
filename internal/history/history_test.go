package history

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/filedrop-go/internal/api"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "history.db")

	ledger, err := Open(context.Background(), path, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { ledger.Close() })

	return ledger
}

func TestRecordAndRecent(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	err := ledger.Record(ctx, transfer.Snapshot{
		ID:        "task-1",
		Kind:      transfer.KindUpload,
		Name:      "notes.txt",
		SentBytes: 42,
		Status:    transfer.StatusSucceeded,
	})
	require.NoError(t, err)

	err = ledger.Record(ctx, transfer.Snapshot{
		ID:        "task-2",
		Kind:      transfer.KindDownload,
		Name:      "report.pdf",
		SentBytes: 1000,
		Status:    transfer.StatusFailed,
		ErrKind:   api.KindNetwork,
		Err:       errors.New("connection refused"),
	})
	require.NoError(t, err)

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.ID] = e
	}

	up := byID["task-1"]
	assert.Equal(t, transfer.KindUpload, up.Kind)
	assert.Equal(t, "notes.txt", up.Name)
	assert.Equal(t, int64(42), up.SizeBytes)
	assert.Equal(t, transfer.StatusSucceeded, up.Status)
	assert.Empty(t, up.ErrorText)
	assert.False(t, up.FinishedAt.IsZero())

	down := byID["task-2"]
	assert.Equal(t, transfer.KindDownload, down.Kind)
	assert.Equal(t, transfer.StatusFailed, down.Status)
	assert.Equal(t, string(api.KindNetwork), down.ErrorKind)
	assert.Equal(t, "connection refused", down.ErrorText)
}

func TestRecordIgnoresNonTerminalSnapshots(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for _, status := range []transfer.Status{transfer.StatusPending, transfer.StatusInFlight} {
		err := ledger.Record(ctx, transfer.Snapshot{
			ID:     "task-live",
			Kind:   transfer.KindUpload,
			Name:   "notes.txt",
			Status: status,
		})
		require.NoError(t, err)
	}

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordReplacesSameTask(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	snap := transfer.Snapshot{
		ID:     "task-1",
		Kind:   transfer.KindUpload,
		Name:   "notes.txt",
		Status: transfer.StatusCancelled,
	}
	require.NoError(t, ledger.Record(ctx, snap))
	require.NoError(t, ledger.Record(ctx, snap))

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecentHonorsLimit(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, ledger.Record(ctx, transfer.Snapshot{
			ID:     id,
			Kind:   transfer.KindUpload,
			Name:   id + ".txt",
			Status: transfer.StatusSucceeded,
		}))
	}

	entries, err := ledger.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	logger := slog.New(slog.DiscardHandler)

	first, err := Open(context.Background(), path, logger)
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), transfer.Snapshot{
		ID:     "persisted",
		Kind:   transfer.KindDownload,
		Name:   "keep.txt",
		Status: transfer.StatusSucceeded,
	}))
	require.NoError(t, first.Close())

	// Reopening applies no new migrations and keeps existing rows.
	second, err := Open(context.Background(), path, logger)
	require.NoError(t, err)
	defer second.Close()

	entries, err := second.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "persisted", entries[0].ID)
}
