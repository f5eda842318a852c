// Command tsumugu is a one-shot HTTP(S) mirror synchronizer: it walks a
// remote directory tree (via sync or list), decides what must be fetched
// from the listing's own metadata, and reconciles the result against a
// local directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/buildinfo"
	"github.com/tsumugu-mirror/tsumugu/pkg/config"
	"github.com/tsumugu-mirror/tsumugu/pkg/extensions/apt"
	"github.com/tsumugu-mirror/tsumugu/pkg/extensions/yum"
	"github.com/tsumugu-mirror/tsumugu/pkg/flagparse"
	"github.com/tsumugu-mirror/tsumugu/pkg/hints"
	"github.com/tsumugu-mirror/tsumugu/pkg/httpx"
	"github.com/tsumugu-mirror/tsumugu/pkg/limiter"
	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
	"github.com/tsumugu-mirror/tsumugu/pkg/memguard"
	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/pool"
	"github.com/tsumugu-mirror/tsumugu/pkg/reconcile"
	"github.com/tsumugu-mirror/tsumugu/pkg/runlock"
	"github.com/tsumugu-mirror/tsumugu/pkg/traversal"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// downloadBufferSize is the per-worker streaming-copy buffer size.
const downloadBufferSize = 256 * 1024

// listScratchDir is the local path Engine is pointed at for a list run.
// It never gets created (Engine's filesystem writes are all gated behind
// cfg.DryRun, and list always sets DryRun), so ShouldDownload's existence
// check always misses and every remote file is reported.
const listScratchDir = "tsumugu-list-scratch"

func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return tserr.New(tserr.ConfigError, err)
	}

	switch command {
	case flagparse.None, flagparse.Help:
		return nil
	case flagparse.Sync:
		return runSync(ctx, flagMap)
	case flagparse.List:
		return runList(ctx, flagMap)
	default:
		return tserr.New(tserr.InternalInvariantViolation, fmt.Errorf("unhandled command %v", command))
	}
}

func runSync(ctx context.Context, flagMap map[string]interface{}) error {
	cfg, err := config.BuildSync(flagMap)
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(ctx, cfg.LocalDir, cfg.Upstream.String())
	if err != nil {
		return tserr.New(tserr.ConfigError, err)
	}
	defer lock.Release()

	client, err := httpx.New(httpx.Config{UserAgent: cfg.UserAgent, Retries: cfg.Retry})
	if err != nil {
		return tserr.New(tserr.ConfigError, err)
	}

	tzKnown, tzOffset := probeTimezone(ctx, client, cfg)

	m := &metrics.RunMetrics{}
	bufPool := pool.NewFixedBuffer(downloadBufferSize)
	// Budget half the RSS guardrail to in-flight copy buffers: enough
	// headroom that threads alone rarely exhaust it, while still
	// capping the pathological case of many large concurrent downloads
	// before memguard's RSS poll would even notice.
	budget := limiter.NewMemory(memguard.DefaultLimitBytes / 2)
	downloader := reconcile.NewDownloader(client, bufPool, cfg.Retry, m, budget)

	engineCfg := traversal.Config{
		Upstream:        cfg.Upstream,
		LocalDir:        cfg.LocalDir,
		Threads:         cfg.Threads,
		Retries:         cfg.Retry,
		Parser:          cfg.Parser,
		Policy:          cfg.Policy,
		NoDelete:        cfg.NoDelete,
		MaxDelete:       cfg.MaxDelete,
		DryRun:          cfg.DryRun,
		SkipIfExists:    cfg.SkipIfExists,
		CompareSizeOnly: cfg.CompareSizeOnly,
		TimezoneKnown:   tzKnown,
		TimezoneOffset:  tzOffset,
		Metrics:         m,
	}
	engine := traversal.New(engineCfg, client, downloader)

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	go memguard.Watch(runCtx, memguard.DefaultLimitBytes, func(rssBytes int64) {
		plog.Error("resident set size exceeded guardrail, aborting", "rssBytes", rssBytes)
		abort(tserr.New(tserr.InternalInvariantViolation, fmt.Errorf("RSS %d exceeded guardrail", rssBytes)))
	})

	runErr := engine.Run(runCtx)
	if cause := context.Cause(runCtx); cause != nil && cause != context.Canceled {
		runErr = cause
	}

	m.Log()

	if cfg.AptPackages {
		apt.Check(cfg.LocalDir)
	}
	if cfg.YumPackages {
		yum.Check(cfg.LocalDir, cfg.Threads)
	}

	return runErr
}

func runList(ctx context.Context, flagMap map[string]interface{}) error {
	cfg, err := config.BuildList(flagMap)
	if err != nil {
		return err
	}

	client, err := httpx.New(httpx.Config{UserAgent: cfg.UserAgent})
	if err != nil {
		return tserr.New(tserr.ConfigError, err)
	}

	base := *cfg.Upstream
	base.Path = path.Join(base.Path, cfg.UpstreamBase)
	if len(base.Path) == 0 || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	engineCfg := traversal.Config{
		Upstream:  &base,
		LocalDir:  listScratchDir,
		Threads:   2,
		Retries:   0,
		Parser:    cfg.Parser,
		Policy:    cfg.Policy,
		NoDelete:  true,
		MaxDelete: 0,
		DryRun:    true,
		Metrics:   metrics.NoopMetrics{},
	}
	engine := traversal.New(engineCfg, client, nil)
	return engine.Run(ctx)
}

// probeTimezone implements spec 4.5's timezone calibration: HEAD the
// configured (or auto-picked) timezone file, compare its Last-Modified
// header against the naive mtime its parent directory listing reports,
// and infer upstream's UTC offset from the difference. Any failure along
// the way (bad URL, no matching listing entry, no Last-Modified header)
// disables the probe rather than aborting the run: naive mtimes are then
// treated as already being in UTC.
func probeTimezone(ctx context.Context, client *httpx.Client, cfg *config.RunConfig) (bool, time.Duration) {
	if cfg.TimezoneOverride != nil {
		return true, *cfg.TimezoneOverride
	}

	target, err := resolveTimezoneFile(ctx, client, cfg)
	if err != nil {
		logProbeDisabled(err)
		return false, 0
	}

	offset, err := client.GuessTimezone(ctx, target.href, target.naiveMTime)
	if err != nil {
		logProbeDisabled(hints.Wrap(err))
		return false, 0
	}
	plog.Info("inferred upstream timezone offset", "offset", offset)
	return true, offset
}

// logProbeDisabled reports that the timezone probe is being skipped.
// A hinted error (an unremarkable mirror that just lacks a usable
// probe file) logs at Warn; anything else is more likely an operator
// mistake (a malformed --timezone-file URL) and logs at Error, though
// either way the probe is disabled rather than aborting the run.
func logProbeDisabled(err error) {
	if hints.IsHint(err) {
		plog.Warn("timezone probe disabled", "error", err)
		return
	}
	plog.Error("timezone probe disabled", "error", err)
}

type timezoneTarget struct {
	href       string
	naiveMTime time.Time
}

// resolveTimezoneFile fetches and parses the parent directory listing of
// the timezone-probe target (cfg.TimezoneFile if set, otherwise the
// mirror root) and returns the first file entry matching it.
func resolveTimezoneFile(ctx context.Context, client *httpx.Client, cfg *config.RunConfig) (timezoneTarget, error) {
	var dirURL *url.URL
	var wantName string

	if cfg.TimezoneFile != "" {
		u, err := url.Parse(cfg.TimezoneFile)
		if err != nil {
			return timezoneTarget{}, fmt.Errorf("invalid timezone-file URL %q: %w", cfg.TimezoneFile, err)
		}
		wantName = path.Base(u.Path)
		parent := *u
		parent.Path = path.Dir(u.Path)
		if parent.Path[len(parent.Path)-1] != '/' {
			parent.Path += "/"
		}
		dirURL = &parent
	} else {
		dirURL = cfg.Upstream
	}

	resp, err := client.Get(ctx, dirURL.String(), true)
	if err != nil {
		return timezoneTarget{}, fmt.Errorf("listing %s: %w", dirURL, err)
	}
	defer resp.Body.Close()

	items, err := cfg.Parser.Parse(resp.Request.URL, resp.Body)
	if err != nil {
		return timezoneTarget{}, fmt.Errorf("parsing %s: %w", dirURL, err)
	}

	for _, item := range items {
		if item.Kind != listing.File {
			continue
		}
		if wantName != "" && item.Name != wantName {
			continue
		}
		if item.MTime.IsZero() {
			continue
		}
		return timezoneTarget{href: item.Href, naiveMTime: item.MTime}, nil
	}

	if wantName != "" {
		return timezoneTarget{}, hints.Wrap(fmt.Errorf("no entry named %q in %s", wantName, dirURL))
	}
	return timezoneTarget{}, hints.Wrap(fmt.Errorf("no file with a usable mtime found in %s", dirURL))
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx); err != nil {
		kind := tserr.ConfigError
		var tsErr *tserr.Error
		if errors.As(err, &tsErr) {
			kind = tsErr.Kind
		}
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(tserr.ExitCode(kind))
	}
}
