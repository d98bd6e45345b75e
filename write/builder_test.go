package write

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/commit"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/table"
	"go.uber.org/zap"
)

type setupFailCommitter struct {
	commit.Protocol
	aborted bool
}

func (c *setupFailCommitter) SetupJob(context.Context) error {
	return errors.New("staging unavailable")
}

func (c *setupFailCommitter) AbortJob(context.Context) error {
	c.aborted = true
	return nil
}

// A committer whose SetupJob fails must be aborted by Build, so that
// anything the job has already staged or trashed is rolled back.
func TestBuildAbortsWhenSetupFails(t *testing.T) {
	stub := &setupFailCommitter{}
	saved := newCommitter
	newCommitter = func(storage.Engine, *storage.URI, ksuid.KSUID, *zap.Logger) commit.Protocol {
		return stub
	}
	defer func() { newCommitter = saved }()

	engine := storage.NewLocalEngine()
	target := storage.MustParseURI(t.TempDir())
	schema := tabular.NewSchema(tabular.Column{Name: "id", Type: tabular.TypeInt64})
	_, err := NewBuilder(engine, target).
		Schema(schema).
		JobID(ksuid.New()).
		Mode(Append).
		Table(table.NewDescriptor("events", target, "rows")).
		Build(context.Background())
	require.Error(t, err)
	assert.True(t, stub.aborted)
}
