package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSCreateReplacesContents(t *testing.T) {
	dir := t.TempDir()
	s := NewOS()
	p := filepath.Join(dir, "app.logs")

	require.NoError(t, s.Create(p, []byte("first")))
	require.NoError(t, s.Create(p, []byte("second!")))

	data, err := s.Contents(p)
	require.NoError(t, err)
	assert.Equal(t, "second!", string(data))

	info, err := s.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.False(t, info.Created.IsZero())

	// 临时文件不应残留
	names, err := s.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.logs"}, names)
}

func TestOSListSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	s := NewOS()
	require.NoError(t, s.MkdirAll(filepath.Join(dir, "nested")))
	require.NoError(t, s.Create(filepath.Join(dir, "b.logs"), nil))
	require.NoError(t, s.Create(filepath.Join(dir, "a.logs"), nil))

	names, err := s.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.logs", "b.logs"}, names)
}

func TestOSAppendAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewOS(WithFileMode(0o600))
	p := filepath.Join(dir, "app.logs")

	h, err := s.OpenAppend(p)
	require.NoError(t, err)
	_, err = h.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = h.Write([]byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
	assert.True(t, s.Exists(p))

	require.NoError(t, s.Remove(p))
	assert.False(t, s.Exists(p))
	assert.True(t, IsNotExist(s.Remove(p)))
	_, err = s.Stat(p)
	assert.True(t, IsNotExist(err))
}
