// Package orchestrator wires every other package into a single run:
// construct sessions, construct the tracker, spawn transfer workers, run
// the lister, close the work channel, join the workers, commit the
// tracker, and log final throughput. Progress is reported as a single
// final summary line plus a periodic debug-level ticker.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/lister"
	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/sema"
	"github.com/sflanaga/pullpush/internal/tracker"
	"github.com/sflanaga/pullpush/internal/vfs"
	"github.com/sflanaga/pullpush/internal/xfer"
)

// Summary is what a run reports on success.
type Summary struct {
	FilesTransferred uint64
	BytesTransferred uint64
	Elapsed          time.Duration
	ListResult       *lister.Result
}

const workQueueDepth = 4096

// Run executes one full pull/push pass against cfg and returns once every
// worker has joined and the tracker has been committed.
func Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	log := logging.For("main")
	start := time.Now()

	sshSem := sema.NewStartup(cfg.NumberOfSSHStartups)

	src, err := vfs.New(ctx, cfg.SrcURL, vfs.Options{
		PrivateKeyFile: cfg.SrcPrivateKeyFile,
		Timeout:        cfg.Timeout,
		DestPerm:       cfg.DstPerm,
		SSHStartups:    sshSem,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing source session")
	}
	defer src.Close()

	// Probe the destination before the lister and workers spin up, so a
	// bad destination URL fails fast instead of after an expensive listing
	// pass.
	probeDst, err := vfs.New(ctx, cfg.DstURL, vfs.Options{
		PrivateKeyFile: cfg.DstPrivateKeyFile,
		Timeout:        cfg.Timeout,
		DestPerm:       cfg.DstPerm,
		SSHStartups:    sshSem,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing destination probe session")
	}
	probeDst.Close()

	trk, err := tracker.New(cfg.TrackFile, cfg.MaxTrackAge)
	if err != nil {
		return nil, errors.Wrap(err, "constructing tracker")
	}

	stats := xfer.NewStats()

	tickerDone := make(chan struct{})
	go runTicker(stats, tickerDone)
	defer close(tickerDone)

	items := make(chan xfer.WorkItem, workQueueDepth)

	var count, size uint64
	var workersWG sync.WaitGroup
	workersWG.Add(1)
	go func() {
		defer workersWG.Done()
		count, size = xfer.RunWorkers(ctx, cfg.Threads, items, cfg, trk, stats, sshSem)
	}()

	log.Debug("starting lister")
	l := lister.New(cfg, src, trk, stats)
	listResult, listErr := l.Run(items)
	close(items)

	workersWG.Wait()

	if listErr != nil {
		return nil, errors.Wrap(listErr, "lister failed")
	}

	log.Infof("paths listed %d in %s, total %s", listResult.PathsListed, listResult.DirListTime, listResult.TotalTime)
	log.Infof("paths filtered in %s, files stat'ed %d", listResult.PathFilterTime, listResult.PathsStatEd)
	log.Infof("paths queued %d in %s", listResult.PathsQueued, listResult.QueueAfterTime)

	if err := trk.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing tracker")
	}

	elapsed := time.Since(start)
	mb := float64(size) / (1024 * 1024)

	if firstXfer, ok := stats.FirstXferTime(); ok {
		xferElapsed := time.Since(firstXfer)
		rate := float64(size) / xferElapsed.Seconds() / (1024 * 1024)
		log.Infof("transferred %d files %.3f MB in %s, not counting list time, rate: %.3fMB/s", count, mb, xferElapsed, rate)
	} else {
		log.Infof("transferred %d files %.3f MB in %s counting list time", count, mb, elapsed)
	}

	return &Summary{
		FilesTransferred: count,
		BytesTransferred: size,
		Elapsed:          elapsed,
		ListResult:       listResult,
	}, nil
}

// runTicker logs counters every few seconds at debug level until
// tickerDone closes.
func runTicker(stats *xfer.Stats, done <-chan struct{}) {
	log := logging.For("ticker")
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			log.Debugf(
				"xfer: %d  paths: %d  stats: %d  never2xfer: %d  tooyoung: %d",
				stats.XferCount.Load(), stats.PathCheck.Load(), stats.StatCheck.Load(),
				stats.Never2Xfer.Load(), stats.TooYoung.Load(),
			)
		}
	}
}
