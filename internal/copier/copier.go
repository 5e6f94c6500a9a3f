// Package copier implements two copy engines: a simple context-aware
// loop, and a threaded ring-buffer pipeline for high-latency links where
// read and write can overlap.
package copier

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Simple copies src to dst using one buffer and one goroutine, checking
// ctx between reads so a cancelled run stops promptly.
func Simple(ctx context.Context, dst io.Writer, src io.Reader, bufSize int) (int64, error) {
	buf := make([]byte, bufSize)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if ew != nil {
				return written, errors.Wrap(ew, "write")
			}
			if nr != nw {
				return written, errors.Wrap(io.ErrShortWrite, "write")
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, errors.Wrap(er, "read")
		}
	}
}

// chunk is a filled buffer in flight from the reader goroutine to the
// writer goroutine; emptied buffers recycle back the other way as bare
// slices.
type chunk struct {
	buf []byte
	n   int
}

// Threaded runs the reader and writer on separate goroutines connected by
// two channels: one carrying filled buffers forward, one recycling empty
// buffers back. ringSize buffers are pre-allocated and handed to the
// reader up front, so the reader never blocks on allocation and the
// writer never blocks on the reader finishing a read — the two can
// overlap up to ringSize buffers deep.
func Threaded(ctx context.Context, dst io.Writer, src io.Reader, bufSize, ringSize int) (int64, error) {
	if ringSize < 1 {
		ringSize = 1
	}

	// innerCtx is cancelled the moment either goroutine stops, so the other
	// one never blocks forever trying to hand off a buffer nobody will
	// drain (e.g. the writer failing mid-stream while the reader is still
	// producing).
	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	filled := make(chan chunk, ringSize)
	empty := make(chan []byte, ringSize)

	for i := 0; i < ringSize; i++ {
		empty <- make([]byte, bufSize)
	}

	readErrCh := make(chan error, 1)
	writeErrCh := make(chan error, 1)

	go func() {
		defer close(filled)
		defer cancel()
		for {
			select {
			case <-innerCtx.Done():
				if err := ctx.Err(); err != nil {
					readErrCh <- err
				} else {
					readErrCh <- nil
				}
				return
			case buf, ok := <-empty:
				if !ok {
					readErrCh <- nil
					return
				}
				n, err := src.Read(buf)
				if n > 0 {
					select {
					case filled <- chunk{buf: buf, n: n}:
					case <-innerCtx.Done():
						readErrCh <- ctx.Err()
						return
					}
				}
				if err != nil {
					if err == io.EOF {
						readErrCh <- nil
					} else {
						readErrCh <- errors.Wrap(err, "read")
					}
					return
				}
			}
		}
	}()

	var written int64
	go func() {
		defer close(empty)
		defer cancel()
		for c := range filled {
			nw, err := dst.Write(c.buf[:c.n])
			written += int64(nw)
			if err != nil {
				writeErrCh <- errors.Wrap(err, "write")
				return
			}
			if nw != c.n {
				writeErrCh <- errors.Wrap(io.ErrShortWrite, "write")
				return
			}
			select {
			case empty <- c.buf:
			case <-innerCtx.Done():
			}
		}
		writeErrCh <- nil
	}()

	readErr := <-readErrCh
	writeErr := <-writeErrCh

	switch {
	case readErr != nil && writeErr != nil:
		return written, errors.Wrapf(readErr, "read and write both failed: write error: %v", writeErr)
	case readErr != nil:
		return written, readErr
	case writeErr != nil:
		return written, writeErr
	default:
		return written, nil
	}
}
