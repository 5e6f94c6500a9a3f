// Package xfer implements the transfer worker pool: N workers, each
// holding its own source and destination VFS session, pulling
// path/status pairs off a shared channel and performing the
// temp-then-rename copy protocol, generalized from SFTP-only to either
// VFS backend on either side.
package xfer

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/copier"
	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/sema"
	"github.com/sflanaga/pullpush/internal/tracker"
	"github.com/sflanaga/pullpush/internal/vfs"
)

// WorkItem is one file queued for transfer: its full source path and the
// status the lister resolved for it.
type WorkItem struct {
	Path   string
	Status vfs.FileStatus
}

// RunWorkers starts n transfer workers, each constructing its own
// src/dst VFS session (admission-controlled by sshSem), and blocks until
// items is closed and drained and every worker has returned. It returns
// the aggregate file count and byte count actually transferred.
//
// A worker that cannot even construct its sessions logs the failure and
// exits contributing nothing; the remaining workers carry the run.
func RunWorkers(ctx context.Context, n int, items <-chan WorkItem, cfg *config.Config, trk *tracker.Tracker, stats *Stats, sshSem *sema.Startup) (count, size uint64) {
	var wg sync.WaitGroup
	counts := make([]uint64, n)
	sizes := make([]uint64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			log := logging.For(componentName(idx))

			src, err := vfs.New(ctx, cfg.SrcURL, vfs.Options{
				PrivateKeyFile: cfg.SrcPrivateKeyFile,
				Timeout:        cfg.Timeout,
				DestPerm:       cfg.DstPerm,
				SSHStartups:    sshSem,
			})
			if err != nil {
				log.Errorf("worker session construction failed, dropping this worker: %v", err)
				return
			}
			defer src.Close()

			dst, err := vfs.New(ctx, cfg.DstURL, vfs.Options{
				PrivateKeyFile: cfg.DstPrivateKeyFile,
				Timeout:        cfg.Timeout,
				DestPerm:       cfg.DstPerm,
				SSHStartups:    sshSem,
			})
			if err != nil {
				log.Errorf("worker session construction failed, dropping this worker: %v", err)
				return
			}
			defer dst.Close()

			var c, s uint64
			for item := range items {
				n1, s1, err := xferFile(ctx, log, cfg, item.Path, item.Status, src, dst)
				if err != nil {
					log.Errorf("transfer failed for %s: %v", item.Path, err)
					continue
				}
				if n1 > 0 {
					stats.RecordFirstXfer()
					stats.XferCount.Add(1)
					if err := trk.Xferred(item.Path, item.Status); err != nil {
						log.Errorf("tracker update failed for %s: %v", item.Path, err)
					}
				}
				c += n1
				s += s1
			}
			counts[idx] = c
			sizes[idx] = s
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		count += counts[i]
		size += sizes[i]
	}
	return count, size
}

func componentName(idx int) string {
	return "xfer:" + strconv.Itoa(idx)
}

// xferFile performs one copy: dest-overwrite check, open/create, copy via
// the configured engine, atomic rename, permission fixup.
func xferFile(ctx context.Context, log *logrus.Entry, cfg *config.Config, srcPath string, st vfs.FileStatus, src, dst vfs.VFS) (uint64, uint64, error) {
	startChk := time.Now()

	name := path.Base(srcPath)
	dstPath := path.Join(dst.BaseDir(), name)
	tmpPath := path.Join(dst.BaseDir(), ".tmp"+name)

	if _, err := dst.Stat(dstPath); err == nil {
		if cfg.DisableOverwrite {
			log.Warnf("file %q already at destination, no overwrite: skipping", name)
			return 0, 0, nil
		}
		log.Warnf("overwriting changed file %q already at destination", name)
	}
	chkTime := time.Since(startChk)

	startOpen := time.Now()
	in, err := src.Open(srcPath)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "opening src file %s", srcPath)
	}
	defer in.Close()

	out, err := dst.Create(tmpPath)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "opening dst tmp file %s", tmpPath)
	}

	xferStart := time.Now()
	openTime := xferStart.Sub(startOpen)

	var written int64
	if cfg.ThreadedCopy {
		written, err = copier.Threaded(ctx, out, in, cfg.CopyBufferSize, cfg.BufferRingSize)
	} else {
		written, err = copier.Simple(ctx, out, in, cfg.CopyBufferSize)
	}
	closeErr := out.Close()
	if err != nil {
		return 0, 0, errors.Wrapf(err, "copying %s", srcPath)
	}
	if closeErr != nil {
		return 0, 0, errors.Wrapf(closeErr, "closing dst tmp file for %s", srcPath)
	}
	xferTime := time.Since(xferStart)

	renameStart := time.Now()
	if err := dst.Rename(tmpPath, dstPath); err != nil {
		return 0, 0, errors.Wrapf(err, "renaming %s -> %s", tmpPath, dstPath)
	}
	renameTime := time.Since(renameStart)

	rate := 0.0
	if secs := xferTime.Seconds(); secs > 0 {
		rate = float64(written) / secs / (1024 * 1024)
	}
	log.Infof("xferred %q size: %d rate: %.3fMB/s chk_time: %s open_time: %s xfer_time: %s mv_time: %s",
		srcPath, written, rate, chkTime, openTime, xferTime, renameTime)

	if err := dst.SetPerm(dstPath); err != nil {
		log.Errorf("could not set dst permissions for %s: %v", dstPath, err)
	}

	return 1, uint64(written), nil
}
