package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const filesPath = "/client/files"

// ListFiles fetches the authenticated user's file listing. The returned
// slice is a complete replacement for any previously fetched list — the
// server is authoritative, there is no incremental merge.
func (c *Client) ListFiles(ctx context.Context) ([]FileRecord, error) {
	c.logger.Debug("listing files")

	resp, err := c.do(ctx, http.MethodGet, filesPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var flr fileListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&flr); decErr != nil {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Kind:       KindUnknown,
			Message:    fmt.Sprintf("decoding file listing: %v", decErr),
			Err:        fmt.Errorf("%w: %w", ErrUnknown, decErr),
		}
	}

	records := make([]FileRecord, 0, len(flr.Files))
	for _, f := range flr.Files {
		records = append(records, f.toRecord())
	}

	c.logger.Debug("file listing fetched",
		slog.Int("count", len(records)),
	)

	return records, nil
}

// DeleteFile removes a stored file by its server-assigned name.
func (c *Client) DeleteFile(ctx context.Context, ref string) error {
	c.logger.Info("deleting file",
		slog.String("ref", ref),
	)

	path := filesPath + "/" + url.PathEscape(ref)

	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("api: draining delete response body: %w", drainErr)
	}

	return nil
}
