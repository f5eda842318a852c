package listing

import (
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ApacheF2Parser parses Apache mod_autoindex's "fancy" (FancyIndexing,
// IndexOptions TableSorting) HTML table dialect: a #indexlist table whose
// data rows carry class "odd" or "even", with name/mtime/size in
// td.indexcolname, td.indexcollastmod and td.indexcolsize respectively.
type ApacheF2Parser struct{}

func (ApacheF2Parser) Parse(baseURL *url.URL, body io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	z := html.NewTokenizer(strings.NewReader(string(raw)))
	indexTok, ok := findElementByID(z, "indexlist")
	if !ok {
		return nil, nil
	}
	tableHTML := captureElement(z, indexTok.Data)

	rowsZ := html.NewTokenizer(strings.NewReader(string(tableHTML)))
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
		class, _ := attr(tok, "class")
		rowHTML := captureElement(rowsZ, "tr")
		if !hasClass(class, "odd") && !hasClass(class, "even") {
			continue
		}
		item, matched := parseApacheRow(rowHTML, baseURL)
		if matched {
			items = append(items, item)
		}
	}
	return items, nil
}

// findElementByID is findElement specialized for id="value" matches (not a
// class membership test).
func findElementByID(z *html.Tokenizer, id string) (html.Token, bool) {
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return html.Token{}, false
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		v, ok := attr(tok, "id")
		if ok && v == id {
			return tok, true
		}
	}
}

func parseApacheRow(rowHTML []byte, baseURL *url.URL) (Item, bool) {
	z := html.NewTokenizer(strings.NewReader(string(rowHTML)))
	var nameHref, mtimeText, sizeText string
	var haveName bool
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "td" {
			continue
		}
		class, _ := attr(tok, "class")
		cellHTML := captureElement(z, "td")
		switch {
		case hasClass(class, "indexcolname"):
			href, text, ok := extractFirstAnchor(cellHTML)
			if ok {
				nameHref = href
				if strings.TrimSpace(text) == "Parent Directory" || href == "../" {
					return Item{}, false
				}
				haveName = true
			}
		case hasClass(class, "indexcollastmod"):
			mtimeText = stripTags(cellHTML)
		case hasClass(class, "indexcolsize"):
			sizeText = stripTags(cellHTML)
		}
	}
	if !haveName {
		return Item{}, false
	}

	name := formDecode(nameHref)
	name = strings.TrimSuffix(name, "/")

	resolved, err := baseURL.Parse(nameHref)
	if err != nil {
		return Item{}, false
	}
	trailingSlash := strings.HasSuffix(resolved.Path, "/")
	kind := classifyKind(baseURL, resolved, trailingSlash)

	item := Item{Name: name, Kind: kind, Href: resolved.String()}
	if t, err := time.Parse("2006-01-02 15:04", strings.TrimSpace(mtimeText)); err == nil {
		item.MTime = t
	}
	item.Size = parseSize(sizeText)
	return item, true
}
