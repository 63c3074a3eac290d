package rotation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/logkit/storage"
)

const (
	dir  = "/logs"
	name = "app"
)

func newTestRotator(t *testing.T) (*Rotator, *storage.Memory) {
	t.Helper()
	fs := storage.NewMemory()
	require.NoError(t, fs.MkdirAll(dir))
	return NewRotator(fs), fs
}

func contents(t *testing.T, fs *storage.Memory, p string) string {
	t.Helper()
	data, err := fs.Contents(p)
	require.NoError(t, err)
	return string(data)
}

func TestPaths(t *testing.T) {
	r := NewRotator(storage.NewMemory(), WithExt(".log"))
	assert.Equal(t, "log", r.Ext())
	assert.Equal(t, "/logs/app.log", r.ActivePath(dir, name))
	assert.Equal(t, "/logs/app.log.3", r.BackupPath(dir, name, 3))
}

func TestRotateFirstBackup(t *testing.T) {
	r, fs := newTestRotator(t)
	active := r.ActivePath(dir, name)
	require.NoError(t, fs.Create(active, []byte("gen0\n")))

	created, err := r.Rotate(dir, name, Standard)
	require.NoError(t, err)
	assert.Equal(t, "/logs/app.logs.1", created)
	assert.Equal(t, "gen0\n", contents(t, fs, created))
	assert.Empty(t, contents(t, fs, active))
}

func TestRotateRespectsCountCap(t *testing.T) {
	r, fs := newTestRotator(t)
	active := r.ActivePath(dir, name)
	policy := Policy{MaxSize: 1024, MaxFiles: 2}

	for gen := 0; gen < 5; gen++ {
		require.NoError(t, fs.Create(active, []byte(fmt.Sprintf("gen%d\n", gen))))
		created, err := r.Rotate(dir, name, policy)
		require.NoError(t, err)
		if gen < 2 {
			assert.Equal(t, r.BackupPath(dir, name, gen+1), created)
		} else {
			assert.Empty(t, created, "full chain shifts in place")
		}

		chain, err := r.Chain(dir, name)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chain), policy.MaxFiles)
	}

	assert.Equal(t, []string{"/logs/app.logs", "/logs/app.logs.1", "/logs/app.logs.2"}, fs.Paths())
	assert.Equal(t, "gen4\n", contents(t, fs, "/logs/app.logs.1"))
	assert.Equal(t, "gen3\n", contents(t, fs, "/logs/app.logs.2"))
}

func TestRotateUnlimitedFilesCapsAtNine(t *testing.T) {
	r, fs := newTestRotator(t)
	active := r.ActivePath(dir, name)

	for gen := 0; gen < 12; gen++ {
		require.NoError(t, fs.Create(active, []byte(fmt.Sprintf("gen%d", gen))))
		_, err := r.Rotate(dir, name, Policy{MaxSize: 1})
		require.NoError(t, err)
	}

	chain, err := r.Chain(dir, name)
	require.NoError(t, err)
	require.Len(t, chain, MaxBackupFiles)
	for i, b := range chain {
		assert.Equal(t, i+1, b.Seq)
		assert.Equal(t, fmt.Sprintf("gen%d", 11-i), contents(t, fs, b.Path))
	}
}

func TestRotateNormalizesGaps(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("active")))
	require.NoError(t, fs.Create("/logs/app.logs.3", []byte("newer")))
	require.NoError(t, fs.Create("/logs/app.logs.5", []byte("older")))

	_, err := r.Rotate(dir, name, Policy{MaxSize: 1, MaxFiles: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"/logs/app.logs", "/logs/app.logs.1", "/logs/app.logs.2", "/logs/app.logs.3"}, fs.Paths())
	assert.Equal(t, "active", contents(t, fs, "/logs/app.logs.1"))
	assert.Equal(t, "newer", contents(t, fs, "/logs/app.logs.2"))
	assert.Equal(t, "older", contents(t, fs, "/logs/app.logs.3"))
}

func TestRotateShrinksOversizedChain(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("a")))
	for seq := 1; seq <= 4; seq++ {
		require.NoError(t, fs.Create(fmt.Sprintf("/logs/app.logs.%d", seq), []byte(fmt.Sprintf("b%d", seq))))
	}

	created, err := r.Rotate(dir, name, Policy{MaxSize: 1, MaxFiles: 1})
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, []string{"/logs/app.logs", "/logs/app.logs.1"}, fs.Paths())
	assert.Equal(t, "a", contents(t, fs, "/logs/app.logs.1"))
}

func TestChainIgnoresForeignFiles(t *testing.T) {
	r, fs := newTestRotator(t)
	for _, p := range []string{
		"/logs/app.logs", "/logs/app.logs.1", "/logs/app.logs.bak", "/logs/app.logs.10",
		"/logs/app.logs.0", "/logs/other.logs.1", "/logs/app.logs.2",
	} {
		require.NoError(t, fs.Create(p, nil))
	}

	chain, err := r.Chain(dir, name)
	require.NoError(t, err)
	assert.Equal(t, []Backup{
		{Path: "/logs/app.logs.1", Seq: 1},
		{Path: "/logs/app.logs.2", Seq: 2},
	}, chain)
}

func TestRotateMissingActiveIsNoop(t *testing.T) {
	r, fs := newTestRotator(t)
	created, err := r.Rotate(dir, name, Standard)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, fs.Paths())
}

func TestRotateInvalidPolicy(t *testing.T) {
	r, _ := newTestRotator(t)
	_, err := r.Rotate(dir, name, Policy{MaxFiles: 11})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRotateKeepsActiveWhenFrontSlotFails(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("precious")))
	boom := errors.New("disk full")
	fs.FailOn(storage.OpCreate, "/logs/app.logs.1", boom)

	created, err := r.Rotate(dir, name, Standard)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, created)
	assert.Equal(t, "precious", contents(t, fs, "/logs/app.logs"))
}

func TestRotateCollectsShiftFailures(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("new")))
	require.NoError(t, fs.Create("/logs/app.logs.1", []byte("old")))
	boom := errors.New("read error")
	fs.FailOn(storage.OpContents, "/logs/app.logs.1", boom)

	_, err := r.Rotate(dir, name, Standard)
	assert.ErrorIs(t, err, boom)

	// 活动文件仍然被移入槽位 1
	fs.FailOn(storage.OpContents, "/logs/app.logs.1", nil)
	assert.Equal(t, "new", contents(t, fs, "/logs/app.logs.1"))
	assert.Empty(t, contents(t, fs, "/logs/app.logs"))
}

func TestRotateClearsSlotOfUnreadableBackup(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("new")))
	require.NoError(t, fs.Create("/logs/app.logs.1", []byte("one")))
	require.NoError(t, fs.Create("/logs/app.logs.2", []byte("two")))
	boom := errors.New("read error")
	fs.FailOn(storage.OpContents, "/logs/app.logs.1", boom)

	_, err := r.Rotate(dir, name, Policy{MaxFiles: 3})
	assert.ErrorIs(t, err, boom)
	fs.FailOn(storage.OpContents, "/logs/app.logs.1", nil)

	assert.Equal(t, "new", contents(t, fs, "/logs/app.logs.1"))
	assert.False(t, fs.Exists("/logs/app.logs.2"))
	assert.Equal(t, "two", contents(t, fs, "/logs/app.logs.3"))
}

func TestRotateReadActiveFailure(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("x")))
	fs.FailOn(storage.OpContents, "/logs/app.logs", errors.New("io"))

	_, err := r.Rotate(dir, name, Standard)
	require.Error(t, err)
	assert.Equal(t, []string{"/logs/app.logs"}, fs.Paths())
}

func TestDeleteAll(t *testing.T) {
	r, fs := newTestRotator(t)
	for _, p := range []string{"/logs/app.logs", "/logs/app.logs.1", "/logs/app.logs.2", "/logs/app.logs.bak", "/logs/other.logs"} {
		require.NoError(t, fs.Create(p, []byte("x")))
	}

	assert.Empty(t, r.DeleteAll(dir, name))
	assert.Equal(t, []string{"/logs/other.logs"}, fs.Paths())

	// 幂等
	assert.Empty(t, r.DeleteAll(dir, name))
	assert.Equal(t, []string{"/logs/other.logs"}, fs.Paths())
}

func TestDeleteAllReportsFailures(t *testing.T) {
	r, fs := newTestRotator(t)
	require.NoError(t, fs.Create("/logs/app.logs", []byte("x")))
	require.NoError(t, fs.Create("/logs/app.logs.1", []byte("x")))
	fs.FailOn(storage.OpRemove, "/logs/app.logs.1", errors.New("busy"))

	assert.Equal(t, []string{"/logs/app.logs.1"}, r.DeleteAll(dir, name))
	assert.Equal(t, []string{"/logs/app.logs.1"}, fs.Paths())
}

func TestDeleteAllMissingDirectory(t *testing.T) {
	r := NewRotator(storage.NewMemory())
	assert.Empty(t, r.DeleteAll("/nowhere", name))
}

func TestDeleteAllListFailure(t *testing.T) {
	r, fs := newTestRotator(t)
	fs.FailOn(storage.OpList, dir, errors.New("denied"))
	assert.Equal(t, []string{dir}, r.DeleteAll(dir, name))
}
