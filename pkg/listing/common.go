package listing

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// attr returns the value of attribute name on tok, if present.
func attr(tok html.Token, name string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// displayName recovers a readable filename from href: Apache-style servers
// percent-encode special characters in href but leave long names untouched
// in the <a> text, so decoding href beats trusting a possibly truncated
// display string.
func displayName(href string) string {
	if strings.Contains(href, "%") {
		return decodeHrefName(href)
	}
	return href
}

// formDecode decodes a form-urlencoded-style href into a display name, the
// way apache-f2 and docker recover filenames from <a href> (Rust's
// url::form_urlencoded::parse). Falls back to the raw string on malformed
// escapes rather than failing the whole row.
func formDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// hasClass reports whether classAttr (a space-separated HTML class list)
// contains class.
func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// captureElement consumes tokens from z up to and including the end tag
// that closes the start tag just consumed by the caller (tagName), tracking
// nested same-named tags, and returns the raw bytes of everything in
// between (not including the enclosing start/end tags themselves).
//
// Callers use this to pull out one structurally-identified element (a
// table, a row, a cell) as a self-contained byte slice they can re-tokenize,
// standing in for the CSS-selector extraction the original parser used.
func captureElement(z *html.Tokenizer, tagName string) []byte {
	depth := 1
	var b strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return []byte(b.String())
		}
		raw := z.Raw()
		switch tt {
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == tagName {
				depth++
			}
			b.Write(raw)
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == tagName {
				depth--
				if depth == 0 {
					return []byte(b.String())
				}
			}
			b.Write(raw)
		default:
			b.Write(raw)
		}
	}
}

// findElement scans z for the next start tag named tagName. If matchAttr is
// non-empty, the tag must also carry an attribute named matchAttr whose
// value equals attrVal (or, when byClass is true, whose space-separated
// value includes attrVal). It returns the matched tag's Token and true, with
// z positioned just after that start tag; false if the tokenizer is
// exhausted first.
func findElement(z *html.Tokenizer, tagName, matchAttr, attrVal string, byClass bool) (html.Token, bool) {
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return html.Token{}, false
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != tagName {
			continue
		}
		if matchAttr == "" {
			return tok, true
		}
		v, ok := attr(tok, matchAttr)
		if !ok {
			continue
		}
		if byClass {
			if hasClass(v, attrVal) {
				return tok, true
			}
			continue
		}
		if v == attrVal {
			return tok, true
		}
	}
}

// extractFirstAnchor re-tokenizes raw and returns the href and text of the
// first <a> element found.
func extractFirstAnchor(raw []byte) (href, text string, ok bool) {
	z := html.NewTokenizer(strings.NewReader(string(raw)))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return "", "", false
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "a" {
			continue
		}
		href, _ = attr(tok, "href")
		inner := captureElement(z, "a")
		return href, stripTags(inner), true
	}
}

// stripTags re-tokenizes raw and concatenates its text nodes, collapsing
// the &nbsp; entity the lighttpd dialect uses as a column filler.
func stripTags(raw []byte) string {
	z := html.NewTokenizer(strings.NewReader(string(raw)))
	var b strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(z.Text())
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(b.String(), " ", " "))
}

// classifyKind decides whether a resolved href is a same-level Directory
// or File child of base, or a Symlink because it's absolute or escapes the
// current directory (spec: "map entries whose href is absolute or points
// outside the current directory to a Symlink item").
func classifyKind(base, resolved *url.URL, trailingSlash bool) Kind {
	if resolved.Host != base.Host || resolved.Scheme != base.Scheme {
		return Symlink
	}

	baseDir := base.Path
	if !strings.HasSuffix(baseDir, "/") {
		baseDir += "/"
	}
	if !strings.HasPrefix(resolved.Path, baseDir) {
		return Symlink
	}

	rest := strings.TrimPrefix(resolved.Path, baseDir)
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return Symlink
	}
	if trailingSlash {
		return Directory
	}
	return File
}
