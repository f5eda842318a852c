package listing

import (
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DirectoryListerParser parses DirectoryLister's twig-templated listing:
// the second <li> of the page's first <ul> holds one <a> per entry, with
// name/size/mtime in sibling divs identified by their Tailwind class sets.
// Size "—" (an em dash, not a hyphen) marks a directory; DirectoryLister's
// directory hrefs carry a "?dir=" query string rather than a trailing
// slash, so Kind is derived from the size marker, not the href shape.
type DirectoryListerParser struct{}

func (DirectoryListerParser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	z := html.NewTokenizer(strings.NewReader(string(raw)))
	if _, ok := findElement(z, "ul", "", "", false); !ok {
		return nil, nil
	}
	ulHTML := captureElement(z, "ul")

	lisZ := html.NewTokenizer(strings.NewReader(string(ulHTML)))
	liIdx := -1
	var targetLI []byte
	for {
		tt := lisZ.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := lisZ.Token()
		if tok.Data != "li" {
			continue
		}
		liIdx++
		li := captureElement(lisZ, "li")
		if liIdx == 1 {
			targetLI = li
			break
		}
	}
	if targetLI == nil {
		return nil, nil
	}

	anchorsZ := html.NewTokenizer(strings.NewReader(string(targetLI)))
	var items []Item
	for {
		tt := anchorsZ.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := anchorsZ.Token()
		if tok.Data != "a" {
			continue
		}
		href, ok := attr(tok, "href")
		if !ok {
			continue
		}
		anchorHTML := captureElement(anchorsZ, "a")
		item, matched := parseDirectoryListerAnchor(href, anchorHTML, baseURL)
		if matched {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseDirectoryListerAnchor(href string, anchorHTML []byte, baseURL *url.URL) (Item, bool) {
	z := html.NewTokenizer(strings.NewReader(string(anchorHTML)))
	var name, sizeText, mtimeText string
	var haveName, haveSize, haveMTime bool
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "div" {
			continue
		}
		class, _ := attr(tok, "class")
		cellHTML := captureElement(z, "div")
		switch {
		case hasClass(class, "truncate") && hasClass(class, "flex-1"):
			name = stripTags(cellHTML)
			haveName = true
		case hasClass(class, "mx-2"):
			sizeText = stripTags(cellHTML)
			haveSize = true
		case hasClass(class, "ml-2"):
			mtimeText = stripTags(cellHTML)
			haveMTime = true
		}
	}
	if !haveName || !haveSize || !haveMTime {
		return Item{}, false
	}
	name = strings.TrimSpace(name)
	if name == ".." {
		return Item{}, false
	}

	resolved, err := baseURL.Parse(href)
	if err != nil {
		return Item{}, false
	}
	isDir := strings.TrimSpace(sizeText) == "—"
	var kind Kind
	if resolved.Host != baseURL.Host || resolved.Scheme != baseURL.Scheme {
		kind = Symlink
	} else if isDir {
		kind = Directory
	} else {
		kind = File
	}

	item := Item{Name: name, Kind: kind, Href: resolved.String()}
	if t, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(mtimeText)); err == nil {
		item.MTime = t
	}
	item.Size = parseSize(sizeText)
	return item, true
}
