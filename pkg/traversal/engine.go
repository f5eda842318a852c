package traversal

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsumugu-mirror/tsumugu/pkg/httpx"
	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/policy"
	"github.com/tsumugu-mirror/tsumugu/pkg/reconcile"
	"github.com/tsumugu-mirror/tsumugu/pkg/sharded"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// Config carries everything a run needs that isn't already baked into
// its collaborators (client, parser, policy set).
type Config struct {
	Upstream *url.URL
	LocalDir string
	Threads  int
	Retries  int

	Parser listing.Parser
	Policy policy.Set

	NoDelete        bool
	MaxDelete       int
	DryRun          bool
	SkipIfExists    []*regexp.Regexp
	CompareSizeOnly []*regexp.Regexp

	TimezoneKnown  bool
	TimezoneOffset time.Duration

	Metrics metrics.Metrics
}

// Engine owns a single sync run: the work queue, the worker pool, the
// visited-URL set, and the deletion ledger.
type Engine struct {
	cfg      Config
	client   *httpx.Client
	boundary boundary

	visited *sharded.Set
	q       *queue

	ledger     *reconcile.Ledger
	dirs       *reconcile.DirEnsurer
	downloader *reconcile.Downloader
	metrics    metrics.Metrics

	failureListing     atomic.Bool
	failureDownloading atomic.Bool
	deletionCapErr     atomic.Pointer[tserr.Error]
}

// New builds an Engine ready to Run.
func New(cfg Config, client *httpx.Client, downloader *reconcile.Downloader) *Engine {
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoopMetrics{}
	}
	return &Engine{
		cfg:        cfg,
		client:     client,
		boundary:   newBoundary(cfg.Upstream),
		visited:    sharded.NewSet(32),
		q:          newQueue(),
		ledger:     reconcile.NewLedger(cfg.MaxDelete),
		dirs:       reconcile.NewDirEnsurer(m),
		downloader: downloader,
		metrics:    m,
	}
}

// Run crawls the upstream tree to completion, then drains the deletion
// ledger. It returns the context's error if the run is cancelled, and a
// *tserr.Error on any other hard failure: DeletionCapExceeded, or
// ListingFailure when any directory failed to list, before anything is
// deleted; DownloadFailure when any file or symlink failed, after
// cleanup. Those two failure kinds come from the failureListing/
// failureDownloading flags checked after the crawl drains, so a nil
// return means no such failure was recorded.
func (e *Engine) Run(ctx context.Context) error {
	if !e.cfg.DryRun {
		if err := os.MkdirAll(e.cfg.LocalDir, 0o755); err != nil {
			return tserr.WithPath(tserr.FilesystemError, e.cfg.LocalDir, fmt.Errorf("create local root: %w", err))
		}
	}

	e.q.push(Task{Kind: ListDir, URL: e.cfg.Upstream, Relative: nil})

	g, ctx := errgroup.WithContext(ctx)
	go func() {
		<-ctx.Done()
		e.q.closeForCancel()
	}()
	for i := 0; i < e.cfg.Threads; i++ {
		g.Go(func() error {
			return e.worker(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if capErr := e.deletionCapErr.Load(); capErr != nil {
		return capErr
	}

	if e.failureListing.Load() {
		return tserr.New(tserr.ListingFailure, fmt.Errorf("one or more directories failed to list, refusing to delete anything"))
	}

	if err := reconcile.Cleanup(e.ledger, e.cfg.NoDelete, e.metrics); err != nil {
		return err
	}

	if e.failureDownloading.Load() {
		return tserr.New(tserr.DownloadFailure, fmt.Errorf("one or more files failed to download"))
	}

	return nil
}

func (e *Engine) worker(ctx context.Context) error {
	for {
		task, ok := e.q.pop()
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}

		e.process(ctx, task)
		e.q.taskDone()
	}
}

func (e *Engine) process(ctx context.Context, task Task) {
	switch task.Kind {
	case ListDir:
		e.processListDir(ctx, task)
	case FetchFile:
		e.processFetchFile(ctx, task)
	case MakeSymlink:
		e.processMakeSymlink(task)
	}
}

func (e *Engine) localPath(components []string) string {
	return filepath.Join(append([]string{e.cfg.LocalDir}, components...)...)
}

func (e *Engine) relativeKey(components []string) string {
	return strings.Join(components, "/")
}

func (e *Engine) processListDir(ctx context.Context, task Task) {
	urlStr := task.URL.String()
	if loaded := e.visited.LoadOrStore(urlStr); loaded {
		return
	}

	relKey := e.relativeKey(task.Relative)
	decision := e.cfg.Policy.Classify(relKey)
	if decision == policy.Stop {
		plog.Info("skipping excluded directory", "path", relKey)
		return
	}

	resp, err := e.client.Get(ctx, urlStr, true)
	if err != nil {
		plog.Error("failed to list directory", "url", urlStr, "error", err)
		e.failureListing.Store(true)
		return
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	if !e.boundary.contains(finalURL) {
		plog.Warn("redirect left the mirror boundary, dropping", "url", urlStr, "redirected_to", finalURL.String())
		return
	}

	localDir := e.localPath(task.Relative)

	sanitizedFinal := httpx.Sanitize(finalURL)
	sanitizedOrig := httpx.Sanitize(task.URL)
	if !httpx.SamePath(sanitizedFinal, sanitizedOrig) {
		e.handleRedirectedDir(ctx, task, finalURL, localDir)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "text/html") {
		plog.Warn("directory listing response is not HTML, skipping", "url", urlStr, "content_type", ct)
		return
	}

	items, err := e.cfg.Parser.Parse(finalURL, resp.Body)
	if err != nil {
		plog.Error("failed to parse directory listing", "url", urlStr, "error", err)
		e.failureListing.Store(true)
		return
	}

	if !e.cfg.DryRun {
		if err := e.dirs.Ensure(localDir); err != nil {
			plog.Error("failed to create local directory", "path", localDir, "error", err)
			e.failureListing.Store(true)
			return
		}
	}

	remoteNames := make(map[string]bool, len(items))
	for _, item := range items {
		remoteNames[item.Name] = true
		childRelative := append(append([]string{}, task.Relative...), item.Name)
		childKey := e.relativeKey(childRelative)
		childDecision := e.cfg.Policy.Classify(childKey)
		if childDecision == policy.Stop {
			e.metrics.AddFilesExcluded(1)
			continue
		}

		switch item.Kind {
		case listing.Directory:
			childURL, err := url.Parse(item.Href)
			if err != nil {
				plog.Warn("failed to parse child directory href", "href", item.Href, "error", err)
				continue
			}
			e.q.push(Task{Kind: ListDir, URL: childURL, Relative: childRelative})

		case listing.File:
			if childDecision == policy.ListOnly {
				continue
			}
			e.q.push(Task{Kind: FetchFile, Relative: childRelative, Item: item})

		case listing.Symlink:
			e.handleSymlinkItem(item, childRelative)
		}
	}

	if e.cfg.DryRun || e.cfg.NoDelete {
		return
	}

	e.recordOrphans(localDir, task.Relative, remoteNames)
}

// handleRedirectedDir implements spec 4.3 step 4: a directory whose
// final URL differs from the one requested becomes a symlink from the
// requested path to the final path, and the final path is separately
// enqueued for listing.
func (e *Engine) handleRedirectedDir(ctx context.Context, task Task, finalURL *url.URL, localDir string) {
	if !e.cfg.DryRun {
		if err := e.dirs.Ensure(filepath.Dir(localDir)); err != nil {
			plog.Error("failed to create parent of redirected directory", "path", localDir, "error", err)
			e.failureListing.Store(true)
			return
		}
	}

	targetRelative := e.boundary.relative(finalURL)
	plog.Info("directory redirected, materializing as symlink", "from", task.Relative, "to", targetRelative)

	e.q.push(Task{Kind: MakeSymlink, Relative: task.Relative, SymlinkTarget: targetRelative})

	targetURLStr := finalURL.String()
	if !e.visited.Has(targetURLStr) {
		e.q.push(Task{Kind: ListDir, URL: finalURL, Relative: targetRelative})
	}
}

// handleSymlinkItem implements spec 4.3 step 6's last bullet: a listing
// entry whose href points outside the current directory becomes a
// symlink, plus (if the target is still in-boundary and unvisited) a
// listing task for that target.
func (e *Engine) handleSymlinkItem(item listing.Item, fromRelative []string) {
	targetURL, err := url.Parse(item.Href)
	if err != nil {
		plog.Warn("failed to parse symlink target href", "href", item.Href, "error", err)
		return
	}
	if !e.boundary.contains(targetURL) {
		plog.Info("symlink target leaves the mirror boundary, not following", "href", item.Href)
		return
	}

	targetRelative := e.boundary.relative(targetURL)
	e.q.push(Task{Kind: MakeSymlink, Relative: fromRelative, SymlinkTarget: targetRelative})

	if !e.visited.Has(targetURL.String()) {
		e.q.push(Task{Kind: ListDir, URL: targetURL, Relative: targetRelative})
	}
}

// recordOrphans implements spec 4.3 step 7: after a directory is
// listed, any pre-existing local entry not among the names the remote
// listing just produced (and not excluded by policy) is queued for
// deletion once the whole crawl drains.
func (e *Engine) recordOrphans(localDir string, relative []string, remoteNames map[string]bool) {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		if !os.IsNotExist(err) {
			plog.Warn("failed to read local directory for orphan check", "path", localDir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if remoteNames[entry.Name()] {
			continue
		}
		childRelative := append(append([]string{}, relative...), entry.Name())
		if e.cfg.Policy.Classify(e.relativeKey(childRelative)) == policy.Stop {
			continue
		}
		if strings.HasPrefix(entry.Name(), "tsumugu-dl-") || strings.HasPrefix(entry.Name(), "tsumugu-ln-") {
			continue // in-progress temp file from a concurrent download/symlink
		}
		if err := e.ledger.Add(filepath.Join(localDir, entry.Name())); err != nil {
			plog.Error("deletion ledger exceeded its cap", "error", err)
			if tsErr, ok := err.(*tserr.Error); ok {
				e.deletionCapErr.CompareAndSwap(nil, tsErr)
			}
			return
		}
	}
}

func (e *Engine) processFetchFile(ctx context.Context, task Task) {
	localFile := e.localPath(task.Relative)

	if reconcile.MatchesAny(e.cfg.SkipIfExists, e.relativeKey(task.Relative)) {
		if _, err := os.Stat(localFile); err == nil {
			e.metrics.AddFilesUpToDate(1)
			return
		}
	}

	compareSizeOnly := reconcile.MatchesAny(e.cfg.CompareSizeOnly, e.relativeKey(task.Relative))
	item := task.Item
	if compareSizeOnly {
		item.MTime = time.Time{}
	}

	if !reconcile.ShouldDownload(localFile, item, e.cfg.TimezoneKnown, e.cfg.TimezoneOffset) {
		e.metrics.AddFilesUpToDate(1)
		return
	}

	if e.cfg.DryRun {
		plog.Info("[DRY RUN] GET", "url", task.Item.Href, "path", localFile)
		return
	}

	dlItem := task.Item
	if e.cfg.TimezoneKnown && !dlItem.MTime.IsZero() {
		dlItem.MTime = dlItem.MTime.Add(-e.cfg.TimezoneOffset)
	}
	if err := e.downloader.Download(ctx, dlItem, localFile); err != nil {
		plog.Error("download failed", "url", task.Item.Href, "path", localFile, "error", err)
		e.failureDownloading.Store(true)
	}
}

func (e *Engine) processMakeSymlink(task Task) {
	fromPath := e.localPath(task.Relative)
	toPath := e.localPath(task.SymlinkTarget)

	if e.cfg.DryRun {
		plog.Info("[DRY RUN] SYMLINK", "from", fromPath, "to", toPath)
		return
	}

	if err := reconcile.MakeRelativeSymlink(fromPath, toPath, e.metrics); err != nil {
		plog.Error("failed to create symlink", "from", fromPath, "to", toPath, "error", err)
		e.failureDownloading.Store(true)
	}
}
