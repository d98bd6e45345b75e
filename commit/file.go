package commit

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tqe"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const trashDir = ".trash"

// FileCommitter stages task output under a hidden directory inside
// the target and promotes it with renames at job commit.  Files
// removed under Overwrite are parked in a trash subdirectory of the
// staging area so an abort can restore them.
type FileCommitter struct {
	engine storage.Engine
	target *storage.URI
	jobID  ksuid.KSUID
	logger *zap.Logger

	setupOnce sync.Once
	trashed   []string
}

var _ Protocol = (*FileCommitter)(nil)

func NewFileCommitter(engine storage.Engine, target *storage.URI, jobID ksuid.KSUID, logger *zap.Logger) *FileCommitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCommitter{
		engine: engine,
		target: target,
		jobID:  jobID,
		logger: logger.With(zap.Stringer("job", jobID), zap.Stringer("target", target)),
	}
}

func (c *FileCommitter) stagingURI(elem ...string) *storage.URI {
	return c.target.JoinPath(append([]string{".staging-" + c.jobID.String()}, elem...)...)
}

func (c *FileCommitter) SetupJob(context.Context) error {
	c.setupOnce.Do(func() {
		c.logger.Info("Job setup")
	})
	return nil
}

func (c *FileCommitter) DeleteWithJob(ctx context.Context, u *storage.URI, recursive bool) (bool, error) {
	infos, err := c.engine.List(ctx, u)
	if err != nil {
		if tqe.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	var deleted bool
	for _, info := range infos {
		if strings.HasPrefix(info.Name, ".staging-") {
			continue
		}
		src := u.JoinPath(info.Name)
		if err := storage.Move(ctx, c.engine, src, c.stagingURI(trashDir, info.Name)); err != nil {
			return deleted, err
		}
		c.trashed = append(c.trashed, info.Name)
		deleted = true
	}
	if deleted {
		c.logger.Info("Removed pre-existing destination files", zap.Int("count", len(c.trashed)))
	}
	return deleted, nil
}

func (c *FileCommitter) NewTaskFile(ctx context.Context, taskID, name string) (io.WriteCloser, error) {
	return c.engine.Put(ctx, c.stagingURI(taskID, name))
}

func (c *FileCommitter) CommitTask(ctx context.Context, taskID string) (Message, error) {
	infos, err := c.engine.List(ctx, c.stagingURI(taskID))
	if err != nil {
		if tqe.IsNotFound(err) {
			// A task that wrote nothing still commits cleanly.
			return Message{TaskID: taskID}, nil
		}
		return Message{}, err
	}
	msg := Message{TaskID: taskID}
	for _, info := range infos {
		msg.Files = append(msg.Files, info.Name)
		msg.Bytes += info.Size
	}
	return msg, nil
}

func (c *FileCommitter) CommitJob(ctx context.Context, messages []Message) error {
	for _, msg := range messages {
		for _, name := range msg.Files {
			src := c.stagingURI(msg.TaskID, name)
			if err := storage.Move(ctx, c.engine, src, c.target.JoinPath(name)); err != nil {
				return tqe.E(tqe.Conflict, "commit of task %s failed: %s", msg.TaskID, err)
			}
		}
	}
	if err := c.engine.DeleteByPrefix(ctx, c.stagingURI()); err != nil && !tqe.IsNotFound(err) {
		return err
	}
	c.logger.Info("Job committed", zap.Int("tasks", len(messages)))
	return nil
}

func (c *FileCommitter) AbortJob(ctx context.Context) error {
	var err error
	for _, name := range c.trashed {
		src := c.stagingURI(trashDir, name)
		if moveErr := storage.Move(ctx, c.engine, src, c.target.JoinPath(name)); moveErr != nil {
			err = multierr.Append(err, moveErr)
		}
	}
	c.trashed = nil
	if deleteErr := c.engine.DeleteByPrefix(ctx, c.stagingURI()); deleteErr != nil && !tqe.IsNotFound(deleteErr) {
		err = multierr.Append(err, deleteErr)
	}
	c.logger.Info("Job aborted", zap.Error(err))
	return err
}
