// Package apt does a best-effort sanity check over a synced Debian apt
// tree: it never parses the package index, only confirms the gzip
// files a sync produced are intact. A full apt_parser-equivalent is
// explicitly out of scope.
package apt

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
)

// Result summarizes a Check pass.
type Result struct {
	Checked int
	Failed  int
}

// Check walks localRoot for every dists/**/Packages.gz file and
// confirms each decompresses cleanly. It never returns an error: a
// broken index is logged and counted, not treated as a sync failure.
func Check(localRoot string) Result {
	var result Result

	filepath.WalkDir(localRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "Packages.gz" {
			return nil
		}
		if !underDists(localRoot, path) {
			return nil
		}
		result.Checked++
		if verr := verifyGzip(path); verr != nil {
			result.Failed++
			plog.Warn("apt package index failed sanity check", "path", path, "error", verr)
		}
		return nil
	})

	if result.Checked > 0 {
		plog.Info("apt package index check complete", "checked", result.Checked, "failed", result.Failed)
	}
	return result
}

// underDists reports whether path sits somewhere beneath a "dists"
// directory under root, the layout apt repositories publish Packages
// files in.
func underDists(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "dists" {
			return true
		}
	}
	return false
}

func verifyGzip(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	_, err = io.Copy(io.Discard, gz)
	return err
}
