package listing

import (
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// LighttpdParser parses lighttpd's mod_dirlisting table dialect: a <tbody>
// of <tr> rows, each with a name <a>, a ".m" mtime cell and a ".s" size
// cell (size padded with &nbsp;).
type LighttpdParser struct{}

func (LighttpdParser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	z := html.NewTokenizer(strings.NewReader(string(raw)))
	if _, ok := findElement(z, "tbody", "", "", false); !ok {
		return nil, nil
	}
	tbodyHTML := captureElement(z, "tbody")

	rowsZ := html.NewTokenizer(strings.NewReader(string(tbodyHTML)))
	var items []Item
	for {
		tt := rowsZ.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := rowsZ.Token()
		if tok.Data != "tr" {
			continue
		}
		rowHTML := captureElement(rowsZ, "tr")
		item, matched := parseLighttpdRow(rowHTML, baseURL)
		if matched {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseLighttpdRow(rowHTML []byte, baseURL *url.URL) (Item, bool) {
	z := html.NewTokenizer(strings.NewReader(string(rowHTML)))
	var href, mtimeText, sizeText string
	var haveName, haveMTime, haveSize bool
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
			inner := captureElement(z, "a")
			if !ok {
				continue
			}
			text := stripTags(inner)
			if text == ".." {
				return Item{}, false
			}
			href = h
			haveName = true
		case "td":
			class, _ := attr(tok, "class")
			cellHTML := captureElement(z, "td")
			switch {
			case hasClass(class, "n"):
				h, text, ok := extractFirstAnchor(cellHTML)
				if !ok || haveName {
					continue
				}
				if strings.TrimSpace(text) == ".." {
					return Item{}, false
				}
				href = h
				haveName = true
			case hasClass(class, "m"):
				mtimeText = stripTags(cellHTML)
				haveMTime = true
			case hasClass(class, "s"):
				sizeText = stripTags(cellHTML)
				haveSize = true
			}
		}
	}
	if !haveName || !haveMTime || !haveSize {
		return Item{}, false
	}

	name := strings.TrimSuffix(displayName(href), "/")
	resolved, err := baseURL.Parse(href)
	if err != nil {
		return Item{}, false
	}
	trailingSlash := strings.HasSuffix(resolved.Path, "/")
	kind := classifyKind(baseURL, resolved, trailingSlash)

	item := Item{Name: name, Kind: kind, Href: resolved.String()}
	if t, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(mtimeText)); err == nil {
		item.MTime = t
	}
	item.Size = parseSize(sizeText)
	return item, true
}
