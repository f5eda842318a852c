package listing

import (
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var nginxMetadataRe = regexp.MustCompile(`(\d{2}-\w{3}-\d{4} \d{2}:\d{2})\s+([\d.\-kMGT]+)$`)

// NginxParser parses the default nginx autoindex dialect: a flat run of
// <a> links, each immediately followed by a fixed-width "date  size" text
// node. It also covers Apache's plain (non-fancy) autoindex, which emits
// the same shape.
type NginxParser struct{}

func (NginxParser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
	z := html.NewTokenizer(body)
	var items []Item
	var pending *Item

	flush := func() {
		if pending != nil {
			items = append(items, *pending)
			pending = nil
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return items, nil

		case html.TextToken:
			if pending == nil {
				continue
			}
			raw := strings.TrimSpace(string(z.Text()))
			if m := nginxMetadataRe.FindStringSubmatch(raw); m != nil {
				if t, err := time.Parse("02-Jan-2006 15:04", m[1]); err == nil {
					pending.MTime = t
				}
				pending.Size = parseSize(m[2])
				flush()
			}

		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			flush()

			href, ok := attr(tok, "href")
			if !ok || href == "../" {
				continue
			}
			name := strings.TrimSuffix(displayName(href), "/")
			if name == ".." {
				continue
			}
			resolved, err := baseURL.Parse(href)
			if err != nil {
				continue
			}
			trailingSlash := strings.HasSuffix(resolved.Path, "/")
			kind := classifyKind(baseURL, resolved, trailingSlash)
			item := Item{Name: name, Kind: kind, Href: resolved.String()}
			pending = &item
		}
	}
}
