package copier_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sflanaga/pullpush/internal/copier"
)

func TestSimpleCopiesAllBytes(t *testing.T) {
	payload := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 1000)
	src := strings.NewReader(payload)
	var dst bytes.Buffer

	n, err := copier.Simple(context.Background(), &dst, src, 4096)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, dst.String())
}

func TestThreadedCopiesAllBytes(t *testing.T) {
	payload := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 5000)
	src := strings.NewReader(payload)
	var dst bytes.Buffer

	n, err := copier.Threaded(context.Background(), &dst, src, 1024, 4)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, dst.String())
}

func TestThreadedMatchesSimpleOnSmallBuffers(t *testing.T) {
	payload := "short payload that is not buffer aligned at all"
	var simpleOut, threadedOut bytes.Buffer

	_, err := copier.Simple(context.Background(), &simpleOut, strings.NewReader(payload), 7)
	require.NoError(t, err)

	_, err = copier.Threaded(context.Background(), &threadedOut, strings.NewReader(payload), 7, 2)
	require.NoError(t, err)

	assert.Equal(t, simpleOut.String(), threadedOut.String())
}

type errWriter struct{ failAfter int }

func (w *errWriter) Write(p []byte) (int, error) {
	if w.failAfter <= 0 {
		return 0, assert.AnError
	}
	w.failAfter -= len(p)
	return len(p), nil
}

func TestSimplePropagatesWriteError(t *testing.T) {
	src := strings.NewReader(strings.Repeat("x", 100))
	_, err := copier.Simple(context.Background(), &errWriter{failAfter: -1}, src, 16)
	assert.Error(t, err)
}

func TestThreadedPropagatesWriteError(t *testing.T) {
	src := strings.NewReader(strings.Repeat("x", 10000))
	_, err := copier.Threaded(context.Background(), &errWriter{failAfter: -1}, src, 16, 4)
	assert.Error(t, err)
}
