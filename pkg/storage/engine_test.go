package storage_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tqe"
)

func TestParseURI(t *testing.T) {
	u, err := storage.ParseURI("/tmp/x/y")
	require.NoError(t, err)
	assert.Equal(t, storage.FileScheme, u.SchemeOf())

	u, err = storage.ParseURI("relative/path")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(u.Filepath()))

	u, err = storage.ParseURI("s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, storage.S3Scheme, u.SchemeOf())
}

func TestFileSystemPutGet(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("sub", "f1")

	require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("hello")))
	b, err := storage.Get(ctx, engine, u)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	size, err := engine.Size(ctx, u)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	ok, err := engine.Exists(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileSystemNotFound(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("nope")

	_, err := engine.Get(ctx, u)
	require.Error(t, err)
	assert.True(t, tqe.IsNotFound(err))

	ok, err := engine.Exists(ctx, u)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSystemList(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	dir := storage.MustParseURI(t.TempDir())
	require.NoError(t, storage.Put(ctx, engine, dir.JoinPath("a"), strings.NewReader("1")))
	require.NoError(t, storage.Put(ctx, engine, dir.JoinPath("b"), strings.NewReader("22")))

	infos, err := engine.List(ctx, dir)
	require.NoError(t, err)
	names := make(map[string]int64)
	for _, info := range infos {
		names[info.Name] = info.Size
	}
	assert.Equal(t, map[string]int64{"a": 1, "b": 2}, names)
}

func TestFileSystemRename(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	dir := storage.MustParseURI(t.TempDir())
	src, dst := dir.JoinPath("src"), dir.JoinPath("deep", "dst")
	require.NoError(t, storage.Put(ctx, engine, src, strings.NewReader("x")))
	require.NoError(t, engine.Rename(ctx, src, dst))

	ok, err := engine.Exists(ctx, src)
	require.NoError(t, err)
	assert.False(t, ok)
	b, err := storage.Get(ctx, engine, dst)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
}

func TestFileSystemDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	dir := storage.MustParseURI(t.TempDir())
	sub := dir.JoinPath("staged")
	require.NoError(t, storage.Put(ctx, engine, sub.JoinPath("a"), strings.NewReader("1")))
	require.NoError(t, storage.Put(ctx, engine, dir.JoinPath("keep"), strings.NewReader("2")))
	require.NoError(t, engine.DeleteByPrefix(ctx, sub))

	infos, err := engine.List(ctx, dir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "keep", infos[0].Name)
}

func TestSeeker(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("f")
	require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("0123456789")))

	r, err := engine.Get(ctx, u)
	require.NoError(t, err)
	defer r.Close()
	s, err := storage.NewSeeker(r)
	require.NoError(t, err)
	off, err := s.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 4, off)
	b := make([]byte, 3)
	_, err = io.ReadFull(s, b)
	require.NoError(t, err)
	assert.Equal(t, "456", string(b))
}
