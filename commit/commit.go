// Package commit implements the staging protocol that makes a
// distributed write atomic: task output stays invisible until the
// job-level commit, and any failure aborts the whole job.
package commit

import (
	"context"
	"io"

	"github.com/woainirjy/tabular/pkg/storage"
)

// Message is the opaque per-task commit artifact aggregated by the
// job-level commit.  It carries no cross-task mutable state.
type Message struct {
	TaskID string
	Files  []string
	Count  int64
	Bytes  int64
}

// Protocol stages per-task output and exposes job-level commit and
// abort.  The engine's contract: no output becomes visible to readers
// until CommitJob returns successfully, and any task failure must
// trigger AbortJob for the whole job, never a partial commit.
type Protocol interface {
	// SetupJob is idempotent per job.
	SetupJob(ctx context.Context) error

	// DeleteWithJob removes the destination's pre-existing files as
	// part of the job, so an abort can still roll them back.  It
	// reports whether anything was removed.
	DeleteWithJob(ctx context.Context, u *storage.URI, recursive bool) (bool, error)

	// NewTaskFile opens a staged file for one task.  The file is not
	// visible at the destination until the job commits.
	NewTaskFile(ctx context.Context, taskID, name string) (io.WriteCloser, error)

	// CommitTask seals a task's staged output and returns its commit
	// message.
	CommitTask(ctx context.Context, taskID string) (Message, error)

	// CommitJob atomically publishes the staged output of every
	// committed task.
	CommitJob(ctx context.Context, messages []Message) error

	// AbortJob discards all staged output and restores anything
	// DeleteWithJob removed.
	AbortJob(ctx context.Context) error
}
