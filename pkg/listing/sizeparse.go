package listing

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// parseSize parses a directory-listing size field. "-" and "—" (the
// directory-lister em-dash) mean "no size, this is a directory". A bare
// integer is taken as an exact byte count (nginx's non-human branch).
// A value carrying a K/M/G/T suffix is the binary-prefixed human size
// every dialect here actually emits, so the suffix is promoted to its
// "Ki/Mi/Gi/Ti" form before handing it to humanize.ParseBytes, which
// otherwise treats a bare "K" as the decimal (1000) unit.
func parseSize(raw string) Size {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "&nbsp;", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "—" {
		return Size{}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Size{Bytes: n, Known: true}
	}

	last := s[len(s)-1]
	switch last {
	case 'k', 'K', 'm', 'M', 'g', 'G', 't', 'T':
		s = s[:len(s)-1] + strings.ToUpper(string(last)) + "iB"
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return Size{}
	}
	return Size{Bytes: int64(n), Known: true}
}

// decodeHrefName recovers a display filename from a percent-encoded href.
// Apache-style servers leave long filenames untouched in href but encode
// special characters; when the href contains a "%" escape, decoding it is
// more reliable than trusting the <a> tag's (possibly truncated) text.
func decodeHrefName(href string) string {
	var b strings.Builder
	for i := 0; i < len(href); i++ {
		if href[i] == '%' && i+2 < len(href) {
			if n, err := strconv.ParseUint(href[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(href[i])
	}
	return b.String()
}
