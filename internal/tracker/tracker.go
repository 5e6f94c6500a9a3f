// Package tracker implements the persistent record of which source files
// have already been transferred, so a later run can skip them and a
// crash mid-run loses no more than the copies in flight when it died.
// It is a write-ahead log plus a periodically-compacted snapshot, backed
// by a map keyed by path and a sync.RWMutex for concurrent access from
// the transfer workers.
package tracker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sflanaga/pullpush/internal/core"
	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/vfs"
)

// Record is one tracked source file: its path, modification time
// (second-precision unix seconds), and size.
type Record struct {
	Path    string
	LastMod int64
	Size    uint64
}

func (r Record) marshal() string {
	return fmt.Sprintf("%s\x00%d\x00%d\n", r.Path, r.LastMod, r.Size)
}

func parseRecord(line string) (Record, error) {
	parts := strings.Split(line, "\x00")
	if len(parts) != 3 {
		return Record{}, errors.Errorf("missing fields in line %q", line)
	}
	lastmod, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Record{}, errors.Wrapf(err, "last mod time number cannot be parsed in %q", line)
	}
	size, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Record{}, errors.Wrapf(err, "file size number cannot be parsed in %q", line)
	}
	return Record{Path: parts[0], LastMod: lastmod, Size: size}, nil
}

func recordFromStatus(path string, st vfs.FileStatus) Record {
	return Record{Path: path, LastMod: st.MTime.Unix(), Size: st.Size}
}

// Delta is the result of comparing a candidate file's current status
// against what the tracker has recorded for that path.
type Delta int

const (
	// DeltaNone means the path has never been tracked.
	DeltaNone Delta = iota
	// DeltaEqual means size and mtime match the tracked record exactly.
	DeltaEqual
	// DeltaSizeChanged means the path is tracked but the size differs.
	DeltaSizeChanged
	// DeltaLastModChanged means the path is tracked but the mtime differs.
	DeltaLastModChanged
)

// Tracker is the in-memory index plus its on-disk WAL and snapshot file.
// Safe for concurrent use by multiple transfer workers: every public
// method takes the mutex.
type Tracker struct {
	mu   sync.RWMutex
	set  map[string]Record
	file string
	wal  *os.File
	bw   *bufio.Writer
}

func walPath(file string) string {
	return file + ".wal"
}

// New loads file (the compacted snapshot) and, if present, replays a
// leftover WAL from a prior crash on top of it, then recompacts and opens
// a fresh WAL for this run. Entries older than maxTrackAge are dropped on
// load.
func New(file string, maxTrackAge time.Duration) (*Tracker, error) {
	log := logging.For("tracker")
	set := make(map[string]Record)

	if err := entriesFrom(file, set, maxTrackAge); err != nil {
		return nil, err
	}

	wal := walPath(file)
	if _, err := os.Stat(wal); err == nil {
		if err := entriesFrom(wal, set, maxTrackAge); err != nil {
			return nil, err
		}
		log.Warnf("existing wal file %s read, writing new tracker snapshot to prevent further issues", wal)
		if err := writeEntries(file, set); err != nil {
			return nil, err
		}
		if err := os.Remove(wal); err != nil {
			return nil, errors.Wrapf(err, "removing stale wal %s", wal)
		}
		log.Info("removed existing wal file")
	}

	f, err := os.Create(wal)
	if err != nil {
		return nil, errors.Wrapf(err, "creating wal file %s", wal)
	}

	return &Tracker{
		set:  set,
		file: file,
		wal:  f,
		bw:   bufio.NewWriter(f),
	}, nil
}

// Commit compacts the in-memory set to the snapshot file and removes the
// WAL, which is only safe to call once all transfer workers have
// finished and joined.
func (t *Tracker) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := writeEntries(t.file, t.set); err != nil {
		return err
	}
	if t.wal != nil {
		if err := t.wal.Close(); err != nil {
			return errors.Wrap(err, "closing wal")
		}
		t.wal = nil
	}
	if err := os.Remove(walPath(t.file)); err != nil {
		return errors.Wrapf(err, "removing wal %s", walPath(t.file))
	}
	return nil
}

func writeEntries(path string, set map[string]Record) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".tmp_"+filepath.Base(path))

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating tmp file %s to write tracking data to", tmp)
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := bw.WriteString(set[k].marshal()); err != nil {
			f.Close()
			return errors.Wrapf(err, "writing tracker entry for %s", k)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "flushing tracker snapshot")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing tracker snapshot tmp file")
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "renaming tmp tracker file %s to %s", tmp, path)
	}
	return nil
}

func entriesFrom(path string, set map[string]Record, maxTrackAge time.Duration) error {
	log := logging.For("tracker")
	now := time.Now()

	f, err := os.Open(path)
	if err != nil {
		log.Warnf("no tracking file at %s, starting with an empty one: %v", path, err)
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	parsed := 0
	for scanner.Scan() {
		count++
		line := scanner.Text()
		rec, err := parseRecord(line)
		if err != nil {
			log.Errorf("skipping a line in %s:%d due to %v", path, count, err)
			continue
		}
		parsed++
		age := now.Sub(time.Unix(rec.LastMod, 0))
		if age < maxTrackAge {
			set[rec.Path] = rec
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "reading tracking file %s", path)
	}

	log.Infof("read %d entries from %s in %s", count, path, time.Since(now))
	if count > 0 && parsed == 0 {
		return errors.Wrapf(core.ErrCorruptTracker, "%s", path)
	}
	return nil
}

// PathExists reports whether path has any tracked record, regardless of
// size/mtime. Used by the lister's path-level filter in overwrite-disabled
// mode to skip a file already known to the tracker before its status is
// even fetched.
func (t *Tracker) PathExists(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.set[path]
	return ok
}

// Check compares path's current status against its tracked record, if
// any.
func (t *Tracker) Check(path string, st vfs.FileStatus) Delta {
	t.mu.RLock()
	defer t.mu.RUnlock()

	existing, ok := t.set[path]
	if !ok {
		return DeltaNone
	}
	cur := recordFromStatus(path, st)
	switch {
	case existing.Size != cur.Size:
		return DeltaSizeChanged
	case existing.LastMod != cur.LastMod:
		return DeltaLastModChanged
	default:
		return DeltaEqual
	}
}

// InsertPathAndStatus records path in the in-memory set without touching
// the WAL, used by the lister's add-all-to-tracker pass so that files
// seen but not transferred this run are still skipped on the next run.
func (t *Tracker) InsertPathAndStatus(path string, st vfs.FileStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := recordFromStatus(path, st)
	t.set[rec.Path] = rec
}

// Xferred records a completed transfer: appended and flushed to the WAL
// immediately so a crash right after loses at most the records between
// the last flush and the crash, then applied to the in-memory set.
func (t *Tracker) Xferred(path string, st vfs.FileStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := recordFromStatus(path, st)
	if _, err := t.bw.WriteString(rec.marshal()); err != nil {
		return errors.Wrapf(err, "appending wal entry for %s", path)
	}
	if err := t.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing wal")
	}
	if err := t.wal.Sync(); err != nil {
		return errors.Wrap(err, "fsyncing wal")
	}
	t.set[rec.Path] = rec
	return nil
}
