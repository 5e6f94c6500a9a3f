package tracker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sflanaga/pullpush/internal/tracker"
	"github.com/sflanaga/pullpush/internal/vfs"
)

func statusAt(size uint64, mtime time.Time) vfs.FileStatus {
	return vfs.FileStatus{Type: vfs.FileTypeRegular, Size: size, MTime: mtime}
}

func TestXferredThenCommitThenReload(t *testing.T) {
	dir := t.TempDir()
	trackFile := filepath.Join(dir, "track.db")

	trk, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, trk.Xferred("/src/a.txt", statusAt(100, now)))
	require.NoError(t, trk.Xferred("/src/b.txt", statusAt(200, now)))

	assert.True(t, trk.PathExists("/src/a.txt"))
	assert.Equal(t, tracker.DeltaEqual, trk.Check("/src/a.txt", statusAt(100, now)))
	assert.Equal(t, tracker.DeltaSizeChanged, trk.Check("/src/a.txt", statusAt(101, now)))
	assert.Equal(t, tracker.DeltaLastModChanged, trk.Check("/src/a.txt", statusAt(100, now.Add(time.Hour))))
	assert.Equal(t, tracker.DeltaNone, trk.Check("/src/never-seen.txt", statusAt(1, now)))

	require.NoError(t, trk.Commit())

	// the wal should be gone and the snapshot should carry both records
	_, err = os.Stat(trackFile + ".wal")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, reloaded.PathExists("/src/a.txt"))
	assert.True(t, reloaded.PathExists("/src/b.txt"))
}

func TestCrashRecoveryReplaysLeftoverWAL(t *testing.T) {
	dir := t.TempDir()
	trackFile := filepath.Join(dir, "track.db")

	now := time.Now().Truncate(time.Second)

	trk, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, trk.Xferred("/src/a.txt", statusAt(100, now)))
	// simulate a crash: never call Commit, the WAL file stays on disk with
	// the one record written to it.

	recovered, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, recovered.PathExists("/src/a.txt"), "record from the leftover wal should have been replayed")

	require.NoError(t, recovered.Commit())
}

func TestMaxTrackAgePrunesOldRecords(t *testing.T) {
	dir := t.TempDir()
	trackFile := filepath.Join(dir, "track.db")

	old := time.Now().Add(-48 * time.Hour)
	trk, err := tracker.New(trackFile, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, trk.Xferred("/src/old.txt", statusAt(10, old)))
	require.NoError(t, trk.Commit())

	reloaded, err := tracker.New(trackFile, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, reloaded.PathExists("/src/old.txt"), "records older than max_track_age must be pruned on load")
	require.NoError(t, reloaded.Commit())
}

func TestNewRejectsSnapshotWhereEveryLineFailsToParse(t *testing.T) {
	dir := t.TempDir()
	trackFile := filepath.Join(dir, "track.db")
	require.NoError(t, os.WriteFile(trackFile, []byte("not a valid record\nalso not valid\n"), 0o644))

	_, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	assert.Error(t, err, "a snapshot where every line fails to parse must be reported as corrupt")
}
