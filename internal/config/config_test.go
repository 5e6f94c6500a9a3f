package config_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sflanaga/pullpush/internal/config"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5", 5 * time.Second},
		{"5s", 5 * time.Second},
		{"3m", 3 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1h30m", 90 * time.Minute},
		{"1d12h", 36 * time.Hour},
	}
	for _, c := range cases {
		got, err := config.ParseDuration(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseDurationRejectsUnknownUnit(t *testing.T) {
	_, err := config.ParseDuration("5x")
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1024", 1024},
		{"256k", 256 * 1024},
		{"1M", 1024 * 1024},
		{"4G", 4 * 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		got, err := config.ParseSize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParsePerm(t *testing.T) {
	got, err := config.ParsePerm("644")
	require.NoError(t, err)
	assert.Equal(t, uint32(0o644), got)
}

func TestValidateURLRequiresSftpPortAndUser(t *testing.T) {
	u, err := url.Parse("sftp://host/path")
	require.NoError(t, err)
	assert.Error(t, config.ValidateURL(u))

	u, err = url.Parse("sftp://host:22/path")
	require.NoError(t, err)
	assert.Error(t, config.ValidateURL(u), "missing username should still fail")

	u, err = url.Parse("sftp://user@host:22/path")
	require.NoError(t, err)
	assert.NoError(t, config.ValidateURL(u))
}

func TestValidateURLAcceptsFile(t *testing.T) {
	u, err := url.Parse("file:///tmp/somewhere")
	require.NoError(t, err)
	assert.NoError(t, config.ValidateURL(u))
}

func TestValidateURLRejectsUnknownScheme(t *testing.T) {
	u, err := url.Parse("ftp://host/path")
	require.NoError(t, err)
	assert.Error(t, config.ValidateURL(u))
}
