package xfer

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/sema"
	"github.com/sflanaga/pullpush/internal/tracker"
	"github.com/sflanaga/pullpush/internal/vfs"
)

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestXferFileCopiesAndRenames(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "payload.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("hello pullpush"), 0o644))

	ctx := context.Background()
	src, err := vfs.New(ctx, mustParse(t, "file://"+srcDir), vfs.Options{})
	require.NoError(t, err)
	defer src.Close()

	dst, err := vfs.New(ctx, mustParse(t, "file://"+dstDir), vfs.Options{})
	require.NoError(t, err)
	defer dst.Close()

	cfg := &config.Config{CopyBufferSize: 16, ThreadedCopy: false}
	log := testLogger()

	st := vfs.FileStatus{Type: vfs.FileTypeRegular, Size: 14, MTime: time.Now()}
	count, size, err := xferFile(ctx, log, cfg, srcPath, st, src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.EqualValues(t, 14, size)

	data, err := os.ReadFile(filepath.Join(dstDir, "payload.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello pullpush", string(data))

	// the temp name must never survive a successful transfer
	_, err = os.Stat(filepath.Join(dstDir, ".tmppayload.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestXferFileSkipsWhenDisableOverwrite(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "payload.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("new content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dstDir, "payload.txt"), []byte("existing"), 0o644))

	ctx := context.Background()
	src, err := vfs.New(ctx, mustParse(t, "file://"+srcDir), vfs.Options{})
	require.NoError(t, err)
	defer src.Close()
	dst, err := vfs.New(ctx, mustParse(t, "file://"+dstDir), vfs.Options{})
	require.NoError(t, err)
	defer dst.Close()

	cfg := &config.Config{CopyBufferSize: 16, DisableOverwrite: true}
	st := vfs.FileStatus{Type: vfs.FileTypeRegular, Size: 11, MTime: time.Now()}

	count, size, err := xferFile(ctx, testLogger(), cfg, srcPath, st, src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.EqualValues(t, 0, size)

	data, err := os.ReadFile(filepath.Join(dstDir, "payload.txt"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data), "destination must be untouched when overwrite is disabled")
}

func TestRunWorkersTransfersQueuedItems(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	names := []string{"a.txt", "b.txt", "c.txt"}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, n), []byte("contents-of-"+n), 0o644))
	}

	trackFile := filepath.Join(t.TempDir(), "track.db")
	trk, err := tracker.New(trackFile, 1000*7*24*time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		SrcURL:         mustParse(t, "file://"+srcDir),
		DstURL:         mustParse(t, "file://"+dstDir),
		CopyBufferSize: 16,
		Threads:        2,
	}

	items := make(chan WorkItem, len(names))
	for _, n := range names {
		items <- WorkItem{
			Path:   filepath.Join(srcDir, n),
			Status: vfs.FileStatus{Type: vfs.FileTypeRegular, Size: uint64(len("contents-of-" + n)), MTime: time.Now()},
		}
	}
	close(items)

	stats := NewStats()
	count, size := RunWorkers(context.Background(), cfg.Threads, items, cfg, trk, stats, sema.NewStartup(0))

	assert.EqualValues(t, len(names), count)
	assert.True(t, size > 0)

	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dstDir, n))
		require.NoError(t, err)
		assert.Equal(t, "contents-of-"+n, string(data))
		assert.True(t, trk.PathExists(filepath.Join(srcDir, n)))
	}

	_, ok := stats.FirstXferTime()
	assert.True(t, ok)
}
