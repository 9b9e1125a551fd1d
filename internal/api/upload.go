package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

const uploadPath = "/client/upload"

// ProgressFunc receives the count of payload bytes handed to the transport
// so far. Calls are made with non-decreasing values; the final call may be
// short of the total when the request fails mid-body.
type ProgressFunc func(sent int64)

// uploadResponse is the JSON shape of a successful upload.
type uploadResponse struct {
	Filename string `json:"filename"`
}

// countingReader wraps a payload reader and reports cumulative bytes read.
// On upload it wraps the file content inside the multipart writer, so the
// count measures payload bytes only, never boundary or part-header framing;
// reads are pulled by the transport, so the count tracks what actually went
// on the wire.
type countingReader struct {
	r        io.Reader
	sent     int64
	progress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)

		if cr.progress != nil {
			cr.progress(cr.sent)
		}
	}

	return n, err
}

// Upload sends a single file as a multipart request. The multipart body is
// streamed through a pipe — the file content is never buffered whole in
// memory. progress may be nil. Returns the server-assigned filename.
//
// Upload is never retried: the body reader is consumed as the transport
// sends it, and replaying a partially consumed reader is not safe.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader, size int64, progress ProgressFunc) (string, error) {
	c.logger.Info("uploading file",
		slog.String("name", name),
		slog.Int64("size", size),
	)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Count the file content, not the multipart framing, so progress
	// against the file size can reach 100 only when the payload is fully
	// sent.
	counted := &countingReader{r: content, progress: progress}

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("creating form file: %w", err))
			return
		}

		if _, err := io.Copy(part, counted); err != nil {
			pw.CloseWithError(fmt.Errorf("copying file content: %w", err))
			return
		}

		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return "", fmt.Errorf("api: creating upload request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return "", fmt.Errorf("api: obtaining token for upload: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upload request failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)

		if ctx.Err() != nil {
			return "", newTransportError(fmt.Errorf("upload canceled: %w", ctx.Err()))
		}

		return "", newTransportError(fmt.Errorf("upload request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return "", statusErrorFromBody(resp.StatusCode, errBody)
	}

	var ur uploadResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&ur); decErr != nil {
		// The file landed; only the confirmation body was malformed. Fall
		// back to the name we sent rather than failing the transfer.
		c.logger.Warn("upload response undecodable, assuming sent name",
			slog.String("name", name),
			slog.String("error", decErr.Error()),
		)

		return name, nil
	}

	if ur.Filename == "" {
		ur.Filename = name
	}

	c.logger.Debug("upload complete",
		slog.String("name", name),
		slog.String("stored_as", ur.Filename),
	)

	return ur.Filename, nil
}
