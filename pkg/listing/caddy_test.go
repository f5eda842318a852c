package listing

import (
	"net/url"
	"strings"
	"testing"
)

const caddyHTML = `<html><body>
<table>
<tbody>
<tr class="file"><td><a href="./.trace/">.trace/</a></td><td class="size"></td><td class="timestamp"><time datetime="2023-07-10T13:07:52Z">10-Jul-23 13:07:52 UTC</time></td></tr>
<tr class="file"><td><a href="./ubuntu/">ubuntu/</a></td><td class="size"></td><td class="timestamp"><time datetime="2010-11-24T11:01:53Z">24-Nov-10</time></td></tr>
<tr class="file"><td><a href="./ls-lR.gz">ls-lR.gz</a></td><td class="size"><div class="sizebar"><div class="sizebar-text">26.0M</div></div></td><td class="timestamp"><time datetime="2024-03-10T04:45:24Z">10-Mar-24</time></td></tr>
</tbody>
</table>
</body></html>`

func TestCaddyParser(t *testing.T) {
	base, _ := url.Parse("http://localhost:1921/sdumirror-ubuntu/")
	items, err := CaddyParser{}.Parse(base, strings.NewReader(caddyHTML))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Name != ".trace" || items[0].Kind != Directory {
		t.Errorf("item[0] = %+v", items[0])
	}
	if items[0].Size.Known {
		t.Errorf("item[0].Size should be unknown, got %+v", items[0].Size)
	}

	last := items[2]
	if last.Name != "ls-lR.gz" || last.Kind != File {
		t.Errorf("item[2] = %+v", last)
	}
	if !last.Size.Known {
		t.Fatal("item[2] size not known")
	}
}
