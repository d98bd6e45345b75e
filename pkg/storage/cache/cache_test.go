package cache_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/pkg/storage/cache"
)

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	local := storage.NewLocalEngine()
	engine, err := cache.New(local, 8, nil, nil)
	require.NoError(t, err)
	u := storage.MustParseURI(t.TempDir()).JoinPath("obj")
	require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("payload")))

	b, err := storage.Get(ctx, engine, u)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	// A cached object survives deletion of the backing file.
	require.NoError(t, local.Delete(ctx, u))
	b, err = storage.Get(ctx, engine, u)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	size, err := engine.Size(ctx, u)
	require.NoError(t, err)
	assert.EqualValues(t, 7, size)
}

func TestCacheableFilter(t *testing.T) {
	ctx := context.Background()
	local := storage.NewLocalEngine()
	never := func(*storage.URI) bool { return false }
	engine, err := cache.New(local, 8, never, nil)
	require.NoError(t, err)
	u := storage.MustParseURI(t.TempDir()).JoinPath("obj")
	require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("x")))

	_, err = storage.Get(ctx, engine, u)
	require.NoError(t, err)
	require.NoError(t, local.Delete(ctx, u))
	_, err = engine.Get(ctx, u)
	require.Error(t, err)
}

func TestDeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	engine, err := cache.New(storage.NewLocalEngine(), 8, nil, nil)
	require.NoError(t, err)
	u := storage.MustParseURI(t.TempDir()).JoinPath("obj")
	require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("x")))

	r, err := engine.Get(ctx, u)
	require.NoError(t, err)
	io.Copy(io.Discard, r)
	r.Close()
	require.NoError(t, engine.Delete(ctx, u))
	_, err = engine.Get(ctx, u)
	require.Error(t, err)
}
