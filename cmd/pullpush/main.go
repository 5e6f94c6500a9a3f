// Command pullpush is the CLI entry point. It wraps stdlib `flag`
// directly into a config.Config rather than pulling in a CLI framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/logging"
	"github.com/sflanaga/pullpush/internal/orchestrator"
)

// verboseCount implements flag.Value so repeated -v occurrences
// accumulate into a verbosity level.
type verboseCount int

func (v *verboseCount) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verboseCount) IsBoolFlag() bool { return true }
func (v *verboseCount) Set(string) error {
	*v++
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		srcURL     = flag.String("src-url", "", "source url (file:// or sftp://)")
		dstURL     = flag.String("dst-url", "", "destination url (file:// or sftp://)")
		srcPK      = flag.String("src-pk", "", "source private key file (sftp only)")
		dstPK      = flag.String("dst-pk", "", "destination private key file (sftp only)")
		dstPerm    = flag.String("dst-perm", "0", "octal permission bits applied after transfer on sftp destinations")
		re         = flag.String("re", ".*", "regex matched against filename to include")
		track      = flag.String("track", "", "path to the tracker snapshot file")
		timeout    = flag.String("timeout", "30s", "tcp connect timeout")
		maxAge     = flag.String("max-age", "1000w", "files older than this are ineligible")
		minAge     = flag.String("min-age", "0s", "files younger than this are ineligible")
		maxTrackAge = flag.String("max-track-age", "1000w", "tracker records older than this are pruned on load")
		copyBufferSize = flag.String("copy-buffer-size", "128k", "bytes per copy-engine buffer")
		bufferRingSize = flag.Int("buffer-ring-size", 4, "number of buffers in the threaded copy ring")
		threadedCopy   = flag.Bool("threaded-copy", false, "use the threaded, ring-buffered copy engine")
		dryRun         = flag.Bool("dry-run", false, "skip actual transfer; eligible files are still recorded in the tracker")
		threads        = flag.Int("threads", 4, "number of transfer workers")
		queueAsFound   = flag.Bool("queue-as-found", true, "send eligible items to workers while still listing, instead of after listing finishes")
		addAllToTracker = flag.Bool("add-all-to-tracker", false, "record never-to-transfer entries so future runs skip their stat")
		includeDotFiles = flag.Bool("include-dot-files", false, "include dot-prefixed filenames")
		localStatThreads = flag.Int("local-stat-threads", 4, "workers for the parallel local stat pool")
		sshStartups      = flag.Int("ssh-startups", 4, "concurrent ssh handshakes permitted (0 = unlimited)")
		disableOverwrite = flag.Bool("disable-overwrite", false, "skip files that already exist at the destination")
		quiet            = flag.Bool("quiet", false, "disable all logging")
	)

	var verbosity verboseCount
	flag.Var(&verbosity, "v", "increase log verbosity, may be repeated")

	flag.Parse()

	logging.Init(os.Stderr, int(verbosity), *quiet)

	cfg, err := buildConfig(configArgs{
		srcURL: *srcURL, dstURL: *dstURL,
		srcPK: *srcPK, dstPK: *dstPK,
		dstPerm: *dstPerm, re: *re, track: *track,
		timeout: *timeout, maxAge: *maxAge, minAge: *minAge, maxTrackAge: *maxTrackAge,
		copyBufferSize: *copyBufferSize, bufferRingSize: *bufferRingSize,
		threadedCopy: *threadedCopy, dryRun: *dryRun, threads: *threads,
		queueAsFound: *queueAsFound, addAllToTracker: *addAllToTracker,
		includeDotFiles: *includeDotFiles, localStatThreads: *localStatThreads,
		sshStartups: *sshStartups, disableOverwrite: *disableOverwrite,
		verbosity: int(verbosity), quiet: *quiet,
	})
	if err != nil {
		return err
	}

	summary, err := orchestrator.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	fmt.Printf("transferred %d files, %d bytes, in %s\n", summary.FilesTransferred, summary.BytesTransferred, summary.Elapsed)
	return nil
}

type configArgs struct {
	srcURL, dstURL                       string
	srcPK, dstPK                         string
	dstPerm, re, track                   string
	timeout, maxAge, minAge, maxTrackAge string
	copyBufferSize                       string
	bufferRingSize                       int
	threadedCopy, dryRun                 bool
	threads                              int
	queueAsFound, addAllToTracker        bool
	includeDotFiles                      bool
	localStatThreads, sshStartups        int
	disableOverwrite                     bool
	verbosity                            int
	quiet                                bool
}

func buildConfig(a configArgs) (*config.Config, error) {
	su, err := url.Parse(a.srcURL)
	if err != nil {
		return nil, fmt.Errorf("parsing src-url %q: %w", a.srcURL, err)
	}
	if err := config.ValidateURL(su); err != nil {
		return nil, err
	}
	du, err := url.Parse(a.dstURL)
	if err != nil {
		return nil, fmt.Errorf("parsing dst-url %q: %w", a.dstURL, err)
	}
	if err := config.ValidateURL(du); err != nil {
		return nil, err
	}

	nameRe, err := regexp.Compile(a.re)
	if err != nil {
		return nil, fmt.Errorf("compiling -re %q: %w", a.re, err)
	}

	dstPerm, err := config.ParsePerm(a.dstPerm)
	if err != nil {
		return nil, err
	}
	timeout, err := config.ParseDuration(a.timeout)
	if err != nil {
		return nil, err
	}
	maxAge, err := config.ParseDuration(a.maxAge)
	if err != nil {
		return nil, err
	}
	minAge, err := config.ParseDuration(a.minAge)
	if err != nil {
		return nil, err
	}
	maxTrackAge, err := config.ParseDuration(a.maxTrackAge)
	if err != nil {
		return nil, err
	}
	copyBufferSize, err := config.ParseSize(a.copyBufferSize)
	if err != nil {
		return nil, err
	}

	return &config.Config{
		SrcURL: su, DstURL: du,
		SrcPrivateKeyFile: a.srcPK, DstPrivateKeyFile: a.dstPK,
		DstPerm:    dstPerm,
		NameRegexp: nameRe,
		TrackFile:  a.track,
		Timeout:    timeout,
		MaxAge:     maxAge, MinAge: minAge, MaxTrackAge: maxTrackAge,
		CopyBufferSize: copyBufferSize, BufferRingSize: a.bufferRingSize,
		ThreadedCopy: a.threadedCopy, DryRun: a.dryRun, Threads: a.threads,
		QueueAsFound: a.queueAsFound, AddAllToTracker: a.addAllToTracker,
		IncludeDotFiles:         a.includeDotFiles,
		LocalStatThreadPoolSize: a.localStatThreads,
		NumberOfSSHStartups:     a.sshStartups,
		DisableOverwrite:        a.disableOverwrite,
		Verbosity:               a.verbosity,
		Quiet:                   a.quiet,
	}, nil
}
