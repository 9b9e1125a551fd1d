package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, filesPath, r.URL.Path)
		_, _ = io.WriteString(w, `{"files": [
			{"id": "1", "name": "report.pdf", "size": 2048, "uploaded_at": "2026-03-01T10:00:00Z"},
			{"name": "notes.txt", "size": 10}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	records, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "report.pdf", records[0].Name)
	assert.Equal(t, int64(2048), records[0].SizeBytes)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), records[0].UploadedAt)
	assert.Equal(t, "report.pdf", records[0].DownloadRef)

	// Missing id falls back to name; missing timestamp yields zero time.
	assert.Equal(t, "notes.txt", records[1].ID)
	assert.True(t, records[1].UploadedAt.IsZero())
}

func TestListFilesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"files": []}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	records, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListFilesMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[[`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	_, err := c.ListFiles(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnknown, Classify(err))
}

func TestDeleteFile(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	require.NoError(t, c.DeleteFile(context.Background(), "old report.pdf"))
	assert.Equal(t, "/client/files/old%20report.pdf", gotPath)
}

func TestDeleteFileUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	err := c.DeleteFile(context.Background(), "report.pdf")
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, Classify(err))
}
