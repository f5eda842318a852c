package listing

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

const dockerHTML = `<html><body>
<a href="../">../</a>
<a href="7.0/">7.0/</a>
<a href="docker-ce-staging.repo">docker-ce-staging.repo</a>                       2023-07-07 20:20:56    2.0K
</body></html>`

func TestDockerParser(t *testing.T) {
	base, _ := url.Parse("http://download.docker.com/linux/centos/")
	items, err := DockerParser{}.Parse(base, strings.NewReader(dockerHTML))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	if items[0].Name != "7.0" || items[0].Kind != Directory {
		t.Errorf("item[0] = %+v", items[0])
	}
	if !items[0].MTime.IsZero() {
		t.Errorf("directory item should carry a zero MTime, got %v", items[0].MTime)
	}
	if items[0].Size.Known {
		t.Errorf("directory item should carry an unknown Size, got %+v", items[0].Size)
	}

	last := items[1]
	if last.Name != "docker-ce-staging.repo" || last.Kind != File {
		t.Errorf("item[1] = %+v", last)
	}
	wantMTime, _ := time.Parse("2006-01-02 15:04:05", "2023-07-07 20:20:56")
	if !last.MTime.Equal(wantMTime) {
		t.Errorf("item[1].MTime = %v, want %v", last.MTime, wantMTime)
	}
	if !last.Size.Known || last.Size.Bytes == 0 {
		t.Errorf("item[1].Size = %+v", last.Size)
	}
}
