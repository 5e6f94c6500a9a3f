// Package faststat runs a small worker pool that stats many local paths
// concurrently, since the local backend's directory listing deliberately
// carries no metadata (internal/vfs's localDirHandle only returns names).
package faststat

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/vfs"
)

// Result pairs a path with its resolved status, or an error if the stat
// failed (e.g. the file vanished between listing and stat).
type Result struct {
	Path   string
	Status vfs.FileStatus
	Err    error
}

// Stat resolves the status of every path in paths using numWorkers
// concurrent goroutines, each calling back into statFn (a VFS's Stat
// method). Results are returned in no particular order.
func Stat(numWorkers int, paths []string, statFn func(path string) (vfs.FileStatus, error)) ([]Result, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan string, len(paths))
	for _, p := range paths {
		work <- p
	}
	close(work)

	results := make([]Result, 0, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := logging.For("faststat:" + strconv.Itoa(worker))
			for path := range work {
				st, err := statFn(path)
				if err != nil {
					log.Debugf("faststat worker %d: stat failed for %s: %v", worker, path, err)
					mu.Lock()
					results = append(results, Result{Path: path, Err: errors.Wrapf(err, "stat %s", path)})
					mu.Unlock()
					continue
				}
				mu.Lock()
				results = append(results, Result{Path: path, Status: st})
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return results, nil
}
