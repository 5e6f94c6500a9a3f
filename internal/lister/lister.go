// Package lister walks a source directory once, filters it down to the
// files that actually need transferring, and feeds them to the transfer
// worker pool, generalized to either VFS backend via internal/vfs and
// internal/faststat.
package lister

import (
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/faststat"
	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/tracker"
	"github.com/sflanaga/pullpush/internal/vfs"
	"github.com/sflanaga/pullpush/internal/xfer"
)

// Status classification flags returned by keepStatus.
const (
	FlagTooOld uint32 = 1 << iota
	FlagTooYoung
	FlagNotAFile
	FlagNotChanged
)

// Result carries the per-phase timings and counters used for the
// end-of-run summary log line.
type Result struct {
	PathsListed    uint64
	DirListTime    time.Duration
	PathFilterTime time.Duration
	StatFilterTime time.Duration
	QueueAfterTime time.Duration
	AddAllTime     time.Duration
	PathsStatEd    uint64
	PathsQueued    uint64
	AddAllToTrack  uint64
	TotalTime      time.Duration
}

// Lister owns the one VFS session used to walk the source tree.
type Lister struct {
	cfg   *config.Config
	src   vfs.VFS
	trk   *tracker.Tracker
	stats *xfer.Stats
}

// New constructs a Lister over an already-connected source session.
func New(cfg *config.Config, src vfs.VFS, trk *tracker.Tracker, stats *xfer.Stats) *Lister {
	return &Lister{cfg: cfg, src: src, trk: trk, stats: stats}
}

type pathStatus struct {
	path string
	st   vfs.FileStatus
}

// Run lists the source base directory, filters it, and sends each
// surviving file to items. It does not close items; the caller is
// responsible for doing so once Run returns, so every transfer worker's
// `for item := range items` terminates.
func (l *Lister) Run(items chan<- xfer.WorkItem) (*Result, error) {
	log := logging.For("lister")
	res := &Result{}

	total := time.Now()

	dirPath := l.cfg.SrcURL.Path
	dir, err := l.src.OpenDir(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening base directory %s", dirPath)
	}
	defer dir.Close()
	l.stats.DirsCheck.Add(1)

	startList := time.Now()
	entries, err := dir.ReadAllDirEntries()
	if err != nil {
		return nil, errors.Wrap(err, "reading directory entries")
	}
	res.DirListTime = time.Since(startList)
	res.PathsListed = uint64(len(entries))
	log.Infof("file list %d in %s", len(entries), res.DirListTime)

	hasStat := len(entries) > 0 && entries[0].Status != nil

	startPathFilter := time.Now()
	var withStat []pathStatus

	if !hasStat {
		startF := time.Now()
		candidates := make([]string, 0, len(entries))
		for _, e := range entries {
			full := path.Join(dirPath, e.Name)
			l.stats.PathCheck.Add(1)
			if l.keepPath(full) {
				candidates = append(candidates, full)
			}
		}
		log.Infof("path based checks of %d in %s", len(entries), time.Since(startF))

		startF = time.Now()
		results, err := faststat.Stat(l.cfg.LocalStatThreadPoolSize, candidates, l.src.Stat)
		if err != nil {
			return nil, errors.Wrap(err, "fast stat failure")
		}
		log.Infof("fast file stat of %d in %s", len(results), time.Since(startF))

		for _, r := range results {
			if r.Err != nil {
				log.Warnf("skipping path that vanished before stat: %v", r.Err)
				continue
			}
			withStat = append(withStat, pathStatus{path: r.Path, st: r.Status})
		}
	} else {
		for _, e := range entries {
			full := path.Join(dirPath, e.Name)
			l.stats.PathCheck.Add(1)
			if l.keepPath(full) {
				withStat = append(withStat, pathStatus{path: full, st: *e.Status})
			}
		}
	}
	res.PathFilterTime = time.Since(startPathFilter)

	startStatFilter := time.Now()
	var neverToXfer []pathStatus
	var toQueue []pathStatus
	for _, ps := range withStat {
		flags := l.keepStatus(ps.path, ps.st)
		res.PathsStatEd++

		switch {
		case flags&FlagNotAFile != 0 || flags&FlagTooOld != 0:
			neverToXfer = append(neverToXfer, ps)
			l.stats.Never2Xfer.Add(1)
		case flags&FlagTooYoung != 0:
			// will come back around and age into eligibility
			l.stats.TooYoung.Add(1)
		case flags&FlagNotChanged != 0:
			// already transferred, untouched since
		default:
			if l.cfg.DryRun {
				log.Tracef("would have xferred file: %s", ps.path)
				l.trk.InsertPathAndStatus(ps.path, ps.st)
				continue
			}
			if l.cfg.QueueAsFound {
				items <- xfer.WorkItem{Path: ps.path, Status: ps.st}
				res.PathsQueued++
			} else {
				toQueue = append(toQueue, ps)
			}
		}
	}
	res.StatFilterTime = time.Since(startStatFilter)

	startQueue := time.Now()
	if !l.cfg.QueueAsFound {
		for _, ps := range toQueue {
			items <- xfer.WorkItem{Path: ps.path, Status: ps.st}
			res.PathsQueued++
		}
		log.Infof("batch queued %d in %s", len(toQueue), time.Since(startQueue))
	}
	res.QueueAfterTime = time.Since(startQueue)

	startAddAll := time.Now()
	if l.cfg.AddAllToTracker {
		res.AddAllToTrack = uint64(len(neverToXfer))
		for _, ps := range neverToXfer {
			l.trk.InsertPathAndStatus(ps.path, ps.st)
		}
		log.Infof("recorded %d never-to-transfer paths to tracker in %s", res.AddAllToTrack, time.Since(startAddAll))
	}
	res.AddAllTime = time.Since(startAddAll)

	res.TotalTime = time.Since(total)
	log.Infof("lister returning after %s, listed %d, stat'ed %d", res.TotalTime, res.PathsListed, res.PathsStatEd)
	return res, nil
}

// keepPath applies the cheap, stat-free filters: name regexp, dotfile
// exclusion, and (only in no-overwrite mode) tracker membership.
func (l *Lister) keepPath(fullPath string) bool {
	log := logging.For("lister")
	name := path.Base(fullPath)

	if !l.cfg.NameRegexp.MatchString(name) {
		log.Tracef("file %q does not match name pattern", name)
		return false
	}

	if strings.HasPrefix(name, ".") && !l.cfg.IncludeDotFiles {
		log.Tracef("file %q excluded as a dot file", fullPath)
		return false
	}

	if l.cfg.DisableOverwrite {
		// Slower for network sources, but correct for the
		// overwrite-disabled mode: anything already tracked never needs a
		// stat at all.
		if l.trk.PathExists(fullPath) {
			log.Tracef("file %q already in tracker", fullPath)
			return false
		}
		return true
	}
	return true
}

// keepStatus applies the filters that need a resolved FileStatus: type,
// age bounds, and tracker delta.
func (l *Lister) keepStatus(fullPath string, st vfs.FileStatus) uint32 {
	log := logging.For("lister")
	l.stats.StatCheck.Add(1)

	if st.Type != vfs.FileTypeRegular {
		log.Tracef("not a regular file: %s", fullPath)
		return FlagNotAFile
	}

	age := fileAge(fullPath, st, log)
	if age > l.cfg.MaxAge {
		log.Tracef("file %q too old at %s", fullPath, age)
		return FlagTooOld
	}
	if age < l.cfg.MinAge {
		log.Tracef("file %q too young at %s", fullPath, age)
		return FlagTooYoung
	}
	if l.cfg.DisableOverwrite {
		return 0
	}

	switch l.trk.Check(fullPath, st) {
	case tracker.DeltaSizeChanged:
		log.Infof("src file changed size: %s", fullPath)
		return 0
	case tracker.DeltaLastModChanged:
		log.Infof("src file changed mod time: %s", fullPath)
		return 0
	case tracker.DeltaNone:
		return 0
	default: // DeltaEqual
		return FlagNotChanged
	}
}

func fileAge(fullPath string, st vfs.FileStatus, log *logrus.Entry) time.Duration {
	age := time.Since(st.MTime)
	if age < 0 {
		log.Warnf("got a future mtime for %q, treating age as zero", fullPath)
		return 0
	}
	return age
}
