package faststat_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/sflanaga/pullpush/internal/faststat"
	"github.com/sflanaga/pullpush/internal/vfs"
)

func TestStatResolvesEveryPath(t *testing.T) {
	paths := make([]string, 0, 50)
	want := map[string]uint64{}
	for i := 0; i < 50; i++ {
		p := fmt.Sprintf("/src/file-%02d.txt", i)
		paths = append(paths, p)
		want[p] = uint64(i)
	}

	statFn := func(path string) (vfs.FileStatus, error) {
		return vfs.FileStatus{Type: vfs.FileTypeRegular, Size: want[path]}, nil
	}

	results, err := faststat.Stat(8, paths, statFn)
	assert.NoError(t, err)
	assert.Len(t, results, len(paths))

	seen := map[string]bool{}
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, want[r.Path], r.Status.Size)
		seen[r.Path] = true
	}
	assert.Len(t, seen, len(paths))
}

func TestStatCollectsPerPathErrors(t *testing.T) {
	statFn := func(path string) (vfs.FileStatus, error) {
		if path == "/src/missing.txt" {
			return vfs.FileStatus{}, errors.New("vanished")
		}
		return vfs.FileStatus{Type: vfs.FileTypeRegular}, nil
	}

	results, err := faststat.Stat(4, []string{"/src/ok.txt", "/src/missing.txt"}, statFn)
	assert.NoError(t, err)

	var gotErr bool
	for _, r := range results {
		if r.Path == "/src/missing.txt" {
			assert.Error(t, r.Err)
			gotErr = true
		}
	}
	assert.True(t, gotErr)
}
