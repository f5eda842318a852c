package listing

import (
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var dockerMetadataRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s+([\d \w.]+)$`)

// DockerParser parses download.docker.com's unadorned <a>-list dialect.
// Directories carry no trailing "date size" text at all; only files do, so
// a directory Item is left with a zero MTime and an unknown Size.
type DockerParser struct{}

func (DockerParser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
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
			if pending == nil || pending.Kind != File {
				continue
			}
			raw := strings.TrimSpace(string(z.Text()))
			if m := dockerMetadataRe.FindStringSubmatch(raw); m != nil {
				if t, err := time.Parse("2006-01-02 15:04:05", m[1]); err == nil {
					pending.MTime = t
				}
				pending.Size = parseSize(strings.TrimSpace(m[2]))
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
			name := strings.TrimSuffix(formDecode(href), "/")
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
