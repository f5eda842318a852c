package listing

import (
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// CaddyParser parses Caddy's default file_server browse template: <tr
// class="file"> rows, name/href in "td a" (Caddy prefixes hrefs with
// "./"), size in "td.size div.sizebar div.sizebar-text" (absent for
// directories), mtime in the datetime attribute of "td.timestamp time".
type CaddyParser struct{}

func (CaddyParser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	z := html.NewTokenizer(strings.NewReader(string(raw)))
	var items []Item
	for {
		tok, ok := findElement(z, "tr", "class", "file", true)
		if !ok {
			break
		}
		_ = tok
		rowHTML := captureElement(z, "tr")
		item, matched := parseCaddyRow(rowHTML, baseURL)
		if matched {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseCaddyRow(rowHTML []byte, baseURL *url.URL) (Item, bool) {
	z := html.NewTokenizer(strings.NewReader(string(rowHTML)))
	var href, sizeText, mtimeText string
	var haveName, haveMTime bool
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := z.Token()
		switch tok.Data {
		case "a":
			if haveName {
				continue
			}
			h, ok := attr(tok, "href")
			if ok {
				href = h
				haveName = true
			}
		case "div":
			class, _ := attr(tok, "class")
			if hasClass(class, "sizebar-text") {
				sizeText = stripTags(captureElement(z, "div"))
			}
		case "time":
			v, ok := attr(tok, "datetime")
			if ok {
				mtimeText = v
				haveMTime = true
			}
		}
	}
	if !haveName || !haveMTime {
		return Item{}, false
	}

	name := strings.TrimPrefix(displayName(href), "./")
	name = strings.TrimSuffix(name, "/")
	resolved, err := baseURL.Parse(href)
	if err != nil {
		return Item{}, false
	}
	trailingSlash := strings.HasSuffix(resolved.Path, "/")
	kind := classifyKind(baseURL, resolved, trailingSlash)

	item := Item{Name: name, Kind: kind, Href: resolved.String()}
	if t, err := time.Parse("2006-01-02T15:04:05Z07:00", strings.TrimSpace(mtimeText)); err == nil {
		item.MTime = t
	}
	item.Size = parseSize(sizeText)
	return item, true
}
