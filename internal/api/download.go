package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const downloadPath = "/client/download/"

// SizeUnknown is the DownloadInfo.TotalBytes value when the server did not
// send a Content-Length. Percent progress cannot be computed in that case;
// it is a degraded mode, not an error.
const SizeUnknown = -1

// DownloadInfo describes the response of a started download.
type DownloadInfo struct {
	// TotalBytes is the Content-Length, or SizeUnknown when absent.
	TotalBytes int64
	// Filename is the server-suggested name from Content-Disposition,
	// sanitized; empty when the header is absent or unusable.
	Filename string
	// Body streams the file content. The caller must close it.
	Body io.ReadCloser
}

// Download starts streaming a stored file by its server-assigned ref.
// The caller owns the returned Body and drives the copy; progress and
// cancellation live with the caller, which is what lets a transfer task
// freeze its percent at the point of failure.
func (c *Client) Download(ctx context.Context, ref string) (*DownloadInfo, error) {
	c.logger.Info("downloading file",
		slog.String("ref", ref),
	)

	resp, err := c.do(ctx, http.MethodGet, downloadPath+url.PathEscape(ref), nil)
	if err != nil {
		return nil, err
	}

	info := &DownloadInfo{
		TotalBytes: SizeUnknown,
		Filename:   suggestedFilename(resp.Header.Get("Content-Disposition")),
		Body:       resp.Body,
	}

	if resp.ContentLength >= 0 {
		info.TotalBytes = resp.ContentLength
	}

	c.logger.Debug("download started",
		slog.String("ref", ref),
		slog.Int64("total_bytes", info.TotalBytes),
	)

	return info, nil
}

// suggestedFilename extracts and sanitizes the filename from a
// Content-Disposition header. Path components are stripped so a hostile
// header can never direct a save outside the destination directory, and
// the name is NFC-normalized for cross-platform consistency.
func suggestedFilename(disposition string) string {
	if disposition == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}

	name := params["filename"]
	if name == "" {
		return ""
	}

	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}

	return norm.NFC.String(name)
}

// CopyWithProgress copies src to dst, invoking progress with the cumulative
// byte count after each chunk. Used by download callers that want the same
// progress semantics as upload.
func CopyWithProgress(dst io.Writer, src io.Reader, progress ProgressFunc) (int64, error) {
	cr := &countingReader{r: src, progress: progress}

	n, err := io.Copy(dst, cr)
	if err != nil {
		return n, fmt.Errorf("api: streaming download content: %w", err)
	}

	return n, nil
}
