// Package config holds the run-time configuration surface, plus custom
// duration/size string parsers (stdlib time.ParseDuration has no day/week
// units and no byte-suffix parser exists in the standard library at all).
package config

import (
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/sflanaga/pullpush/internal/core"
)

// Config is the full set of run-time options the transfer tool accepts.
type Config struct {
	SrcURL *url.URL
	DstURL *url.URL

	SrcPrivateKeyFile string
	DstPrivateKeyFile string

	DstPerm uint32 // octal permission bits applied post-transfer on sftp destinations

	NameRegexp *regexp.Regexp

	TrackFile string

	Timeout time.Duration

	MaxAge      time.Duration
	MinAge      time.Duration
	MaxTrackAge time.Duration

	CopyBufferSize int
	BufferRingSize int
	ThreadedCopy   bool

	DryRun bool

	Threads int

	QueueAsFound bool

	AddAllToTracker bool

	IncludeDotFiles bool

	LocalStatThreadPoolSize int

	NumberOfSSHStartups int

	DisableOverwrite bool

	Verbosity int
	Quiet     bool
}

// ValidateURL enforces the per-scheme shape rules: file:// URLs are
// accepted as-is; sftp:// URLs must carry an explicit port and username.
func ValidateURL(u *url.URL) error {
	switch u.Scheme {
	case "sftp":
		if u.Port() == "" {
			return errors.Wrapf(core.ErrSftpPortRequired, "url %s", u.Redacted())
		}
		if u.User == nil || u.User.Username() == "" {
			return errors.Wrapf(core.ErrSftpUserRequired, "url %s", u.Redacted())
		}
		return nil
	case "file":
		return nil
	default:
		return errors.Wrapf(core.ErrSchemeUnsupported, "scheme %q in url %s", u.Scheme, u.Redacted())
	}
}

// ParseDuration parses a composable duration string such as "5s", "3m",
// "2h", "1d", "1w", or "1h30m". Bare digits with no suffix are taken as
// seconds.
func ParseDuration(s string) (time.Duration, error) {
	var (
		num      []byte
		sumSecs  uint64
	)
	flush := func() (uint64, error) {
		if len(num) == 0 {
			return 0, nil
		}
		v, err := strconv.ParseUint(string(num), 10, 64)
		num = num[:0]
		return v, err
	}

	for _, c := range []byte(s) {
		if c >= '0' && c <= '9' {
			num = append(num, c)
			continue
		}
		v, err := flush()
		if err != nil {
			return 0, errors.Wrapf(err, "parsing number inside duration %q", s)
		}
		switch c {
		case 's':
			sumSecs += v
		case 'm':
			sumSecs += v * 60
		case 'h':
			sumSecs += v * 3600
		case 'd':
			sumSecs += v * 3600 * 24
		case 'w':
			sumSecs += v * 3600 * 24 * 7
		default:
			return 0, errors.Errorf("cannot interpret %q as a time unit inside duration %q", string(c), s)
		}
	}
	v, err := flush()
	if err != nil {
		return 0, errors.Wrapf(err, "parsing trailing number inside duration %q", s)
	}
	sumSecs += v

	return time.Duration(sumSecs) * time.Second, nil
}

// ParseSize parses a byte-count string such as "1024", "256k", "1M", "4G".
func ParseSize(s string) (int, error) {
	var (
		num   []byte
		bytes uint64
	)
	flush := func() (uint64, error) {
		if len(num) == 0 {
			return 0, nil
		}
		v, err := strconv.ParseUint(string(num), 10, 64)
		num = num[:0]
		return v, err
	}

	for _, c := range []byte(s) {
		if c >= '0' && c <= '9' {
			num = append(num, c)
			continue
		}
		v, err := flush()
		if err != nil {
			return 0, errors.Wrapf(err, "parsing number inside size %q", s)
		}
		const (
			ki = 1024
			mi = ki * 1024
			gi = mi * 1024
			ti = gi * 1024
			pi = ti * 1024
		)
		switch c {
		case 'k', 'K':
			bytes += v * ki
		case 'm', 'M':
			bytes += v * mi
		case 'g', 'G':
			bytes += v * gi
		case 't', 'T':
			bytes += v * ti
		case 'p', 'P':
			bytes += v * pi
		default:
			return 0, errors.Errorf("cannot interpret %q as a byte unit inside size %q", string(c), s)
		}
	}
	v, err := flush()
	if err != nil {
		return 0, errors.Wrapf(err, "parsing trailing number inside size %q", s)
	}
	bytes += v

	return int(bytes), nil
}

// ParsePerm parses an octal permission string such as "644".
func ParsePerm(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing octal permission %q", s)
	}
	return uint32(v), nil
}
