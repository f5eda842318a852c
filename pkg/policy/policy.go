// Package policy classifies remote paths against the include/exclude/
// list-only regex rule set an operator supplies on the command line,
// deciding whether a path should be mirrored, skipped, or merely listed.
package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// variableSubstitutions maps a distro-version placeholder to the regex
// fragment it currently expands to. Submit an update here as distro
// release schedules move on.
var variableSubstitutions = []struct {
	name  string
	value string
}{
	{"${DEBIAN_CURRENT}", "(buster|bullseye|bookworm)"},
	{"${UBUNTU_LTS}", "(bionic|focal|jammy)"},
	{"${UBUNTU_NONLTS}", "(lunar|mantic)"},
	{"${FEDORA_CURRENT}", "(37|38|39|40)"},
	{"${CENTOS_CURRENT}", "(7)"},
	{"${RHEL_CURRENT}", "(7|8|9)"},
	{"${OPENSUSE_CURRENT}", "(15.4|15.5)"},
}

// wildcardSubstitution is what every placeholder collapses to in the
// "reverse" regex used to fast-reject paths that clearly target a
// different, unlisted distro version.
const wildcardSubstitution = "(.+)"

// Regex wraps a compiled include/exclude pattern, expanded from any
// distro-version placeholders it contains. It carries a second, "loosened"
// form used only by Set.isOthersMatch, where every placeholder has been
// replaced by a wildcard instead of its concrete value set.
type Regex struct {
	source   string
	inner    *regexp.Regexp
	loosened *regexp.Regexp
}

// Compile expands placeholders in pattern and compiles it.
func Compile(pattern string) (Regex, error) {
	expanded := pattern
	loosened := pattern
	for _, sub := range variableSubstitutions {
		expanded = strings.ReplaceAll(expanded, sub.name, sub.value)
	}
	for i := len(variableSubstitutions) - 1; i >= 0; i-- {
		loosened = strings.ReplaceAll(loosened, variableSubstitutions[i].name, wildcardSubstitution)
	}

	inner, err := regexp.Compile(expanded)
	if err != nil {
		return Regex{}, fmt.Errorf("policy: compiling %q: %w", pattern, err)
	}
	loosenedRe, err := regexp.Compile(loosened)
	if err != nil {
		return Regex{}, fmt.Errorf("policy: compiling loosened form of %q: %w", pattern, err)
	}
	return Regex{source: expanded, inner: inner, loosened: loosenedRe}, nil
}

// MustCompile is Compile but panics on error, for static rule tables.
func MustCompile(pattern string) Regex {
	r, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Regex) isMatch(text string) bool {
	return r.inner.MatchString(text)
}

// isOthersMatch reports whether text matches the loosened form (any distro
// version) but not the concrete one. It's the fast-reject signal for a
// whole unlisted-version subtree: cheaper than expanding into every
// subfolder and rejecting them one at a time.
func (r Regex) isOthersMatch(text string) bool {
	return !r.isMatch(text) && r.loosened.MatchString(text)
}

// Decision is the outcome of classifying a path against a Set.
type Decision int

const (
	// Allow means mirror this path (download it, or descend into it).
	Allow Decision = iota
	// Stop means this path, and everything under it, is out of scope.
	Stop
	// ListOnly means record this path's presence but never download it.
	ListOnly
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Stop:
		return "stop"
	case ListOnly:
		return "list-only"
	default:
		return "unknown"
	}
}

// Set is the compiled rule set built from an operator's --include/
// --exclude flags. Classification order (see Classify) mirrors the reference implementation's ExclusionManager exactly:
// includes win outright, then excludes that were never subsumed by an
// include stop the path, then an include's fast-reject signal stops a
// whole unlisted-version subtree, then the remaining ("list-only")
// excludes downgrade to ListOnly, and anything left over is Allow.
type Set struct {
	includes    []Regex
	instantStop []Regex
	listOnly    []Regex
}

// NewSet partitions excludes into instant-stop and list-only buckets: an
// exclude whose source pattern is a prefix of some include's source
// pattern is assumed to carve a list-only exception out of that include
// (e.g. include "^debian/dists/bookworm" + exclude "^debian/dists" leaves
// the rest of debian/dists list-only rather than stopping it outright),
// every other exclude stops its match immediately.
func NewSet(excludes, includes []Regex) Set {
	s := Set{includes: includes}
	for _, exclude := range excludes {
		subsumed := false
		for _, include := range includes {
			if strings.HasPrefix(include.source, exclude.source) {
				s.listOnly = append(s.listOnly, exclude)
				subsumed = true
				break
			}
		}
		if !subsumed {
			s.instantStop = append(s.instantStop, exclude)
		}
	}
	return s
}

// Classify decides what to do with text (a remote path relative to the
// mirror root, without a leading slash).
func (s Set) Classify(text string) Decision {
	for _, r := range s.includes {
		if r.isMatch(text) {
			return Allow
		}
	}
	for _, r := range s.instantStop {
		if r.isMatch(text) {
			return Stop
		}
	}
	for _, r := range s.includes {
		if r.isOthersMatch(text) {
			return Stop
		}
	}
	for _, r := range s.listOnly {
		if r.isMatch(text) {
			return ListOnly
		}
	}
	return Allow
}
