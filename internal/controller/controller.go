// Package controller assembles the session manager, transfer client, and
// API client behind the single surface the presentation layer talks to.
// All reads are non-blocking accessors; all mutations funnel through here
// so no view can hold its own copy of session or transfer state.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/filedrop/filedrop-go/internal/api"
	"github.com/filedrop/filedrop-go/internal/config"
	"github.com/filedrop/filedrop-go/internal/route"
	"github.com/filedrop/filedrop-go/internal/session"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

// Controller is the rendering layer's single entry point.
type Controller struct {
	sessions  *session.Manager
	transfers *transfer.Client
	client    *api.Client
	logger    *slog.Logger

	mu    sync.RWMutex
	files []api.FileRecord
}

// New wires a controller from resolved configuration. observer, when
// non-nil, receives ordered per-task transfer snapshots (the CLI uses it
// for progress display and the history ledger).
func New(cfg *config.Resolved, httpClient *http.Client, store session.Store, observer transfer.Observer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ConnectTimeout}
	}

	// The manager is both the session owner and the client's token source;
	// the client is in turn the manager's authenticator. Construct the
	// manager first with a nil authenticator slot filled after the client
	// exists — the client never calls Token() during construction.
	sessions := session.NewManager(store, nil, logger)
	client := api.NewClient(cfg.ServerURL, httpClient, sessions, logger)
	sessions.SetAuthenticator(client)

	transfers := transfer.NewClient(client, client, sessions, transfer.Options{
		MaxUploadSize:     cfg.MaxUploadSize,
		AllowedExtensions: cfg.AllowedExtensions,
		Observer:          observer,
	}, logger)

	return &Controller{
		sessions:  sessions,
		transfers: transfers,
		client:    client,
		logger:    logger,
	}
}

// Restore loads any persisted session. Call once at startup.
func (c *Controller) Restore() {
	c.sessions.Restore()
}

// CurrentSession returns the active session, or nil when anonymous.
func (c *Controller) CurrentSession() *session.Session {
	return c.sessions.Current()
}

// Decide evaluates the navigation guard for a route against the current
// session.
func (c *Controller) Decide(r route.Route) route.Decision {
	return route.Decide(r, c.sessions.Current())
}

// Login authenticates and persists the resulting session.
func (c *Controller) Login(ctx context.Context, identifier, secret string) (session.Session, error) {
	return c.sessions.Login(ctx, identifier, secret)
}

// Signup registers a new account without establishing a session.
func (c *Controller) Signup(ctx context.Context, identifier, secret string, role session.Role) error {
	return c.sessions.Signup(ctx, identifier, secret, role)
}

// Logout clears the session. Never calls the network.
func (c *Controller) Logout() {
	c.sessions.Logout()
}

// Upload dispatches an upload of the local file at path.
func (c *Controller) Upload(ctx context.Context, path string) *transfer.Task {
	return c.transfers.Upload(ctx, path)
}

// Download dispatches a download of rec into destDir.
func (c *Controller) Download(ctx context.Context, rec api.FileRecord, destDir string) *transfer.Task {
	return c.transfers.Download(ctx, rec, destDir)
}

// Cancel requests cancellation of a transfer task.
func (c *Controller) Cancel(taskID string) {
	c.transfers.Cancel(taskID)
}

// Tasks returns snapshots of all transfer tasks.
func (c *Controller) Tasks() []transfer.Snapshot {
	return c.transfers.Tasks()
}

// FileList returns the most recently fetched file listing.
func (c *Controller) FileList() []api.FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.files
}

// RefreshFileList fetches the listing from the server and replaces the
// cached list wholesale. An unauthorized response clears the session —
// the stored token is dead.
func (c *Controller) RefreshFileList(ctx context.Context) ([]api.FileRecord, error) {
	records, err := c.client.ListFiles(ctx)
	if err != nil {
		if api.Classify(err) == api.KindUnauthorized {
			c.logger.Warn("bearer rejected while listing files, clearing session")
			c.sessions.Logout()
		}

		return nil, err
	}

	c.mu.Lock()
	c.files = records
	c.mu.Unlock()

	return records, nil
}

// DeleteFile removes a stored file and drops it from the cached listing.
func (c *Controller) DeleteFile(ctx context.Context, ref string) error {
	if err := c.client.DeleteFile(ctx, ref); err != nil {
		if api.Classify(err) == api.KindUnauthorized {
			c.logger.Warn("bearer rejected while deleting file, clearing session")
			c.sessions.Logout()
		}

		return err
	}

	// Filter into a fresh slice: the old backing array may still be held
	// by a caller of FileList.
	c.mu.Lock()
	kept := make([]api.FileRecord, 0, len(c.files))

	for _, f := range c.files {
		if f.DownloadRef != ref {
			kept = append(kept, f)
		}
	}

	c.files = kept
	c.mu.Unlock()

	return nil
}
