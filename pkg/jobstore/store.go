// Package jobstore persists scan jobs, their progress and their
// results, and publishes status events for interested listeners. Two
// implementations share the Store interface: an in-memory store for
// tests and single-process deployments, and a Redis-backed store for
// deployments where the API and the workers run separately.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeclinic/codeclinic/pkg/job"
)

var (
	// ErrNotFound is returned when no job or result exists for an id.
	ErrNotFound = errors.New("jobstore: not found")

	// ErrBadTransition is returned when a status update would violate
	// the job state machine.
	ErrBadTransition = errors.New("jobstore: illegal status transition")
)

// Event is published on every status or progress change.
type Event struct {
	ScanID   string     `json:"scan_id"`
	Status   job.Status `json:"status"`
	Progress int        `json:"progress"`
	Phase    string     `json:"phase,omitempty"`
	At       time.Time  `json:"at"`
}

// Stats counts jobs per status.
type Stats struct {
	Total    int                `json:"total"`
	ByStatus map[job.Status]int `json:"by_status"`
}

// Store is the job persistence interface.
type Store interface {
	// Create stores a new job. The job id must be unique.
	Create(ctx context.Context, j *job.Job) error

	// Get returns the job for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*job.Job, error)

	// SetStatus transitions the job. StartedAt is stamped when the job
	// leaves pending for a running state, CompletedAt when it reaches a
	// terminal state. errMsg is recorded on the job for failed
	// transitions.
	SetStatus(ctx context.Context, id string, status job.Status, errMsg string) error

	// SetProgress updates the progress percentage and phase label.
	// Terminal jobs reject further progress with ErrBadTransition.
	SetProgress(ctx context.Context, id string, progress int, phase string) error

	// SetPages records the pages discovered by the crawl.
	SetPages(ctx context.Context, id string, pages []string) error

	// SaveResult stores the finished scan output.
	SaveResult(ctx context.Context, r *job.Result) error

	// GetResult returns the stored result, or ErrNotFound.
	GetResult(ctx context.Context, id string) (*job.Result, error)

	// Subscribe returns a channel of job events. The channel closes
	// when ctx is cancelled. Slow consumers may miss events.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Cleanup removes terminal jobs older than maxAge along with their
	// results and returns how many were removed.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)

	// Stats reports job counts per status.
	Stats(ctx context.Context) (Stats, error)

	// Close releases store resources.
	Close() error
}

// applyStatus validates and applies a status transition in place,
// stamping the lifecycle timestamps. Shared by both implementations so
// the state machine behaves identically.
func applyStatus(j *job.Job, status job.Status, errMsg string) error {
	if !j.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, j.Status, status)
	}
	now := time.Now().UTC()
	// A job cancelled or failed straight out of the queue never ran, so
	// only a move into a running state counts as starting.
	if j.Status == job.StatusPending && !status.IsTerminal() {
		j.StartedAt = &now
	}
	if status.IsTerminal() {
		j.CompletedAt = &now
	}
	j.Status = status
	j.Error = errMsg
	if status == job.StatusCompleted {
		j.Progress = job.ProgressDone
		j.Phase = job.PhaseDone
	}
	return nil
}

// applyProgress updates the progress fields in place. Terminal states
// are final; a worker that lost a cancellation race gets
// ErrBadTransition instead of silently moving a finished job.
func applyProgress(j *job.Job, progress int, phase string) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrBadTransition, j.Status)
	}
	j.Progress = progress
	j.Phase = phase
	return nil
}
