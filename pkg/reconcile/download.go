package reconcile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tsumugu-mirror/tsumugu/pkg/httpx"
	"github.com/tsumugu-mirror/tsumugu/pkg/limiter"
	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/pool"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// tempPrefix marks a download's in-progress temp file so a crashed run's
// leftovers are recognizable on disk.
const tempPrefix = "tsumugu-dl-*.tmp"

// Downloader fetches remote files into the local mirror tree, writing to
// a temp file in the destination directory and renaming into place so a
// reader never observes a partially-written file.
type Downloader struct {
	client  *httpx.Client
	bufPool *pool.FixedBufferPool
	retries int
	metrics metrics.Metrics
	budget  *limiter.Memory
}

// NewDownloader builds a Downloader. bufPool sizes the streaming copy
// buffer; retries bounds how many times a failed attempt is retried
// before Download gives up. budget, if non-nil, caps the total bytes
// held by in-flight copy buffers across every worker sharing it,
// independent of --threads; a nil budget leaves concurrency bounded by
// thread count alone.
func NewDownloader(client *httpx.Client, bufPool *pool.FixedBufferPool, retries int, m metrics.Metrics, budget *limiter.Memory) *Downloader {
	if m == nil {
		m = metrics.NoopMetrics{}
	}
	return &Downloader{client: client, bufPool: bufPool, retries: retries, metrics: m, budget: budget}
}

// Download fetches item's Href to destPath. item.MTime, if non-zero, is
// applied unchanged to the written file via os.Chtimes; the traversal
// engine first shifts it by the known upstream offset, so a later
// ShouldDownload call compares equal and does not re-fetch.
func (d *Downloader) Download(ctx context.Context, item listing.Item, destPath string) error {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			plog.Warn("retrying download", "url", item.Href, "attempt", attempt, "of", d.retries, "error", lastErr)
		}
		if lastErr = d.attempt(ctx, item, destPath); lastErr == nil {
			return nil
		}
	}
	return tserr.WithURLAndPath(tserr.DownloadFailure, item.Href, destPath,
		fmt.Errorf("download failed after %d attempts: %w", d.retries+1, lastErr))
}

func (d *Downloader) attempt(ctx context.Context, item listing.Item, destPath string) (err error) {
	resp, err := d.client.Get(ctx, item.Href, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, item.Href)
	}

	destDir := filepath.Dir(destPath)
	out, err := os.CreateTemp(destDir, tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", destDir, err)
	}
	tempPath := out.Name()
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()
	defer out.Close()

	if item.Size.Known && item.Size.Bytes > 0 {
		_ = out.Truncate(item.Size.Bytes)
	}

	bufPtr := d.bufPool.Get()
	defer d.bufPool.Put(bufPtr)
	buf := (*bufPtr)[:cap(*bufPtr)]

	if d.budget != nil {
		if err := d.budget.Acquire(ctx, int64(len(buf))); err != nil {
			return fmt.Errorf("acquire memory budget for %s: %w", item.Href, err)
		}
		defer d.budget.Release(int64(len(buf)))
	}

	written, err := io.CopyBuffer(out, resp.Body, buf)
	if err != nil {
		return fmt.Errorf("copy body to %s: %w", tempPath, err)
	}
	d.metrics.AddBytesDownloaded(written)

	if err := out.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tempPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tempPath, err)
	}

	if !item.MTime.IsZero() {
		if err := os.Chtimes(tempPath, item.MTime, item.MTime); err != nil {
			return fmt.Errorf("chtimes %s: %w", tempPath, err)
		}
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tempPath, destPath, err)
	}
	tempPath = ""

	d.metrics.AddFilesDownloaded(1)
	plog.Info("GET", "url", item.Href, "path", destPath, "bytes", written)
	return nil
}
