package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/filedrop/filedrop-go/internal/api"
	"github.com/filedrop/filedrop-go/internal/session"
)

// Sessions is the slice of session.Manager the transfer client depends on:
// the current-session accessor and the forced logout used when the server
// rejects the bearer mid-transfer.
type Sessions interface {
	Current() *session.Session
	Logout()
}

// Uploader and Downloader are the API surface the client drives.
type Uploader interface {
	Upload(ctx context.Context, name string, content io.Reader, size int64, progress api.ProgressFunc) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, ref string) (*api.DownloadInfo, error)
}

// Options configures a transfer client.
type Options struct {
	// MaxUploadSize rejects larger files before any network I/O.
	// Zero means no limit.
	MaxUploadSize int64
	// AllowedExtensions whitelists upload extensions (lowercase, without
	// dot). Empty means all extensions are allowed.
	AllowedExtensions []string
	// Observer receives ordered per-task snapshots. May be nil.
	Observer Observer
}

// Client performs uploads and downloads as tracked tasks. Two
// independently initiated transfers run as independent tasks with no
// ordering guarantee between them; within one task, snapshots are ordered.
type Client struct {
	uploads   Uploader
	downloads Downloader
	sessions  Sessions
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	tasks   []*Task
	cancels map[string]context.CancelFunc
	// uploadSlots maps upload name -> active task, so a new upload for the
	// same logical slot supersedes the in-flight one.
	uploadSlots map[string]*Task
}

// NewClient creates a transfer client.
func NewClient(ul Uploader, dl Downloader, sessions Sessions, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		uploads:     ul,
		downloads:   dl,
		sessions:    sessions,
		opts:        opts,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
		uploadSlots: make(map[string]*Task),
	}
}

// Tasks returns ordered snapshots of every task this client has created.
func (c *Client) Tasks() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Snapshot, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t.Snapshot())
	}

	return out
}

// Cancel requests cancellation of a task. The transport abort is
// cooperative; the task's transition to cancelled is the authoritative
// confirmation. Cancelling a terminal or unknown task is a no-op.
func (c *Client) Cancel(taskID string) {
	c.mu.Lock()
	cancel := c.cancels[taskID]

	var task *Task

	for _, t := range c.tasks {
		if t.id == taskID {
			task = t
			break
		}
	}
	c.mu.Unlock()

	if task == nil {
		return
	}

	task.markCancelled()

	if cancel != nil {
		cancel()
	}

	c.logger.Info("transfer cancelled",
		slog.String("task_id", taskID),
	)
}

// Upload dispatches a single-shot upload of the file at path. The returned
// task is already registered; wait on Task.Done() for the terminal state.
//
// Rejections that never reach the wire (missing session, oversize file,
// disallowed extension) still produce a task, failed with the matching
// error kind, so every initiated transfer has an observable outcome.
func (c *Client) Upload(ctx context.Context, path string) *Task {
	name := filepath.Base(path)

	info, statErr := os.Stat(path)

	var total int64
	if statErr == nil {
		total = info.Size()
	}

	task := newTask(KindUpload, name, total, c.opts.Observer)
	c.register(task)

	if statErr != nil {
		task.failImmediately(api.KindValidation, fmt.Errorf("transfer: reading %s: %w", path, statErr))
		return task
	}

	if err := c.validateUpload(name, info.Size()); err != nil {
		task.failImmediately(api.KindValidation, err)
		return task
	}

	if c.sessions.Current() == nil {
		task.failImmediately(api.KindUnauthorized, session.ErrNotLoggedIn)
		return task
	}

	c.supersede(name, task)

	runCtx, cancel := context.WithCancel(ctx)
	c.trackCancel(task.id, cancel)

	go c.runUpload(runCtx, task, path)

	return task
}

// runUpload executes the upload in its own goroutine.
func (c *Client) runUpload(ctx context.Context, task *Task, path string) {
	defer c.untrackCancel(task.id)

	f, err := os.Open(path)
	if err != nil {
		task.fail(api.KindValidation, fmt.Errorf("transfer: opening %s: %w", path, err))
		return
	}
	defer f.Close()

	task.start()

	_, err = c.uploads.Upload(ctx, task.name, f, task.Snapshot().TotalBytes, task.reportSent)
	if err != nil {
		c.finishWithError(task, err)
		return
	}

	task.succeed()
}

// Download dispatches a download of rec into destDir. The file is written
// to a .partial name and renamed into place only on success, so a failed
// or cancelled download never leaves a plausible-looking final file.
func (c *Client) Download(ctx context.Context, rec api.FileRecord, destDir string) *Task {
	task := newTask(KindDownload, rec.Name, api.SizeUnknown, c.opts.Observer)
	c.register(task)

	if c.sessions.Current() == nil {
		task.failImmediately(api.KindUnauthorized, session.ErrNotLoggedIn)
		return task
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.trackCancel(task.id, cancel)

	go c.runDownload(runCtx, task, rec, destDir)

	return task
}

// runDownload executes the download in its own goroutine.
func (c *Client) runDownload(ctx context.Context, task *Task, rec api.FileRecord, destDir string) {
	defer c.untrackCancel(task.id)

	task.start()

	dlInfo, err := c.downloads.Download(ctx, rec.DownloadRef)
	if err != nil {
		c.finishWithError(task, err)
		return
	}
	defer dlInfo.Body.Close()

	// Percent progress only when the transport reports a total. Otherwise
	// the task sits at 0 until completion, then jumps to 100 — degraded
	// progress, not an error.
	if dlInfo.TotalBytes != api.SizeUnknown {
		task.setTotal(dlInfo.TotalBytes)
	}

	name := dlInfo.Filename
	if name == "" {
		name = rec.Name
	}

	target := filepath.Join(destDir, name)
	partial := target + ".partial"

	out, err := os.Create(partial)
	if err != nil {
		c.finishWithError(task, fmt.Errorf("transfer: creating %s: %w", partial, err))
		return
	}

	_, copyErr := api.CopyWithProgress(out, dlInfo.Body, task.reportSent)

	closeErr := out.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)

		if copyErr == nil {
			copyErr = closeErr
		}

		c.finishWithError(task, copyErr)

		return
	}

	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		c.finishWithError(task, fmt.Errorf("transfer: renaming %s: %w", partial, err))

		return
	}

	c.logger.Info("download saved",
		slog.String("name", name),
		slog.String("path", target),
	)

	task.succeed()
}

// finishWithError resolves a transfer error to a terminal task state.
// Cancellation wins over classification: a cancelled context means the
// caller asked for the abort, not that the network failed. An unauthorized
// failure additionally clears the session — the stored token is no longer
// valid and must not be reused.
func (c *Client) finishWithError(task *Task, err error) {
	if errors.Is(err, context.Canceled) {
		task.markCancelled()
		return
	}

	kind := api.Classify(err)

	if kind == api.KindUnauthorized {
		c.logger.Warn("bearer rejected mid-transfer, clearing session",
			slog.String("task_id", task.id),
		)
		c.sessions.Logout()
	}

	task.fail(kind, err)
}

// validateUpload applies the pre-wire checks: size cap and extension
// whitelist. Violations classify as validation and never reach the
// network.
func (c *Client) validateUpload(name string, size int64) error {
	if c.opts.MaxUploadSize > 0 && size > c.opts.MaxUploadSize {
		return fmt.Errorf("transfer: %s is %d bytes, exceeds maximum %d", name, size, c.opts.MaxUploadSize)
	}

	if len(c.opts.AllowedExtensions) == 0 {
		return nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, allowed := range c.opts.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}

	return fmt.Errorf("transfer: extension %q not allowed", ext)
}

// supersede cancels any in-flight upload occupying the same logical slot
// (same name) before the new one takes it.
func (c *Client) supersede(name string, task *Task) {
	c.mu.Lock()
	prev := c.uploadSlots[name]
	c.uploadSlots[name] = task
	cancel := (context.CancelFunc)(nil)

	if prev != nil {
		cancel = c.cancels[prev.id]
	}
	c.mu.Unlock()

	if prev == nil {
		return
	}

	c.logger.Info("superseding in-flight upload",
		slog.String("name", name),
		slog.String("previous_task", prev.id),
	)

	prev.markCancelled()

	if cancel != nil {
		cancel()
	}
}

func (c *Client) register(task *Task) {
	c.mu.Lock()
	c.tasks = append(c.tasks, task)
	c.mu.Unlock()
}

func (c *Client) trackCancel(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancels[id] = cancel
	c.mu.Unlock()
}

// untrackCancel releases a finished task's context and drops its cancel
// handle. The task is already terminal by the time this runs.
func (c *Client) untrackCancel(id string) {
	c.mu.Lock()
	cancel := c.cancels[id]
	delete(c.cancels, id)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
