// Package transfer drives uploads and downloads as cancellable,
// progress-reporting tasks with a uniform error taxonomy. Each task walks
// pending -> in-flight -> {succeeded | failed | cancelled}; terminal states
// are absorbing and progress never regresses within one task.
package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filedrop/filedrop-go/internal/api"
)

// Kind distinguishes the transfer direction.
type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Status is the task state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in-flight"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether a status is absorbing.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Snapshot is one observable state of a task. Snapshots for a given task
// are delivered in order: progress is non-decreasing and the terminal
// snapshot is always last. While a download's total size is unreported,
// Progress stays 0 and jumps straight to 100 on completion.
type Snapshot struct {
	ID         string
	Kind       Kind
	Name       string
	TotalBytes int64 // api.SizeUnknown when the transport cannot report it
	SentBytes  int64
	Progress   int // 0..100
	Status     Status
	ErrKind    api.Kind
	Err        error
	StartedAt  time.Time
}

// Observer receives task snapshots. Calls for one task never interleave.
type Observer func(Snapshot)

// Task tracks one transfer from dispatch to terminal outcome.
type Task struct {
	id   string
	kind Kind
	name string

	mu         sync.Mutex
	totalBytes int64
	sentBytes  int64
	progress   int
	status     Status
	errKind    api.Kind
	err        error
	startedAt  time.Time

	done     chan struct{}
	observer Observer
}

func newTask(kind Kind, name string, total int64, observer Observer) *Task {
	return &Task{
		id:         uuid.NewString(),
		kind:       kind,
		name:       name,
		totalBytes: total,
		status:     StatusPending,
		done:       make(chan struct{}),
		observer:   observer,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Done is closed when the task reaches a terminal status.
func (t *Task) Done() <-chan struct{} { return t.done }

// Snapshot returns the task's current observable state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         t.id,
		Kind:       t.kind,
		Name:       t.name,
		TotalBytes: t.totalBytes,
		SentBytes:  t.sentBytes,
		Progress:   t.progress,
		Status:     t.status,
		ErrKind:    t.errKind,
		Err:        t.err,
		StartedAt:  t.startedAt,
	}
}

// notifyLocked delivers a snapshot to the observer while still holding the
// task lock, which is what guarantees per-task ordering.
func (t *Task) notifyLocked() {
	if t.observer != nil {
		t.observer(t.snapshotLocked())
	}
}

// start moves pending -> in-flight. Happens exactly once, at dispatch.
func (t *Task) start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return
	}

	t.status = StatusInFlight
	t.startedAt = time.Now()
	t.notifyLocked()
}

// setTotal records a total size learned after dispatch (download
// Content-Length).
func (t *Task) setTotal(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.terminal() {
		return
	}

	t.totalBytes = total
}

// reportSent records transported bytes and recomputes percent progress.
// Progress is clamped monotone; events arriving after a terminal status
// are dropped.
func (t *Task) reportSent(sent int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.terminal() {
		return
	}

	if sent > t.sentBytes {
		t.sentBytes = sent
	}

	if t.totalBytes > 0 {
		pct := int(t.sentBytes * 100 / t.totalBytes)
		if pct > 100 {
			pct = 100
		}

		if pct > t.progress {
			t.progress = pct
			t.notifyLocked()
		}
	}
}

// succeed marks the task succeeded and forces progress to 100.
func (t *Task) succeed() {
	t.finish(StatusSucceeded, "", nil)
}

// fail marks the task failed with a classified error. Progress stays
// frozen at the last reported value so the display can show "stalled
// at N%".
func (t *Task) fail(kind api.Kind, err error) {
	t.finish(StatusFailed, kind, err)
}

// markCancelled transitions the task to cancelled. A no-op after any
// terminal status.
func (t *Task) markCancelled() {
	t.finish(StatusCancelled, "", nil)
}

func (t *Task) finish(status Status, kind api.Kind, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.terminal() {
		return
	}

	t.status = status
	t.errKind = kind
	t.err = err

	if status == StatusSucceeded {
		t.progress = 100

		if t.totalBytes > 0 {
			t.sentBytes = t.totalBytes
		}
	}

	t.notifyLocked()
	close(t.done)
}

// failImmediately resolves a task that was rejected before dispatch
// (validation or missing session). The task goes pending -> failed with
// no in-flight hop: in-flight means the transfer was dispatched, and
// these never were.
func (t *Task) failImmediately(kind api.Kind, err error) {
	t.fail(kind, err)
}
