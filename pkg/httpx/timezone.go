package httpx

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// GuessTimezone HEADs fileURL, reads its UTC Last-Modified header, and
// compares it against naiveMTime (the same file's mtime as reported by its
// parent directory listing, which carries no timezone of its own) to infer
// the server's local UTC offset. The offset is rounded to the nearest
// whole hour, since that's the granularity servers actually run at and
// matches what the listing's date-only-to-the-minute fields can resolve.
func (c *Client) GuessTimezone(ctx context.Context, fileURL string, naiveMTime time.Time) (time.Duration, error) {
	resp, err := c.Head(ctx, fileURL, true)
	if err != nil {
		return 0, fmt.Errorf("httpx: probing timezone via %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		return 0, fmt.Errorf("httpx: %s: no Last-Modified header", fileURL)
	}
	headMTime, err := http.ParseTime(lastModified)
	if err != nil {
		return 0, fmt.Errorf("httpx: parsing Last-Modified %q: %w", lastModified, err)
	}

	offset := naiveMTime.UTC().Sub(headMTime.UTC())
	hours := int(offset.Round(time.Hour).Hours())
	return time.Duration(hours) * time.Hour, nil
}
