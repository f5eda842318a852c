// Package config merges parsed CLI flags into a validated RunConfig, the
// single object every other package consumes. No package downstream of
// config re-parses flags or re-reads the environment.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/buildinfo"
	"github.com/tsumugu-mirror/tsumugu/pkg/flagparse"
	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
	"github.com/tsumugu-mirror/tsumugu/pkg/policy"
	"github.com/tsumugu-mirror/tsumugu/pkg/preflight"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// RunConfig is the fully validated, merged configuration for one
// invocation of sync or list.
type RunConfig struct {
	Command flagparse.Command

	Upstream     *url.URL
	LocalDir     string // empty for List
	UpstreamBase string // List only

	UserAgent string
	Parser    listing.Parser
	Policy    policy.Set

	DryRun    bool
	Threads   int
	NoDelete  bool
	MaxDelete int
	Retry     int

	TimezoneFile     string
	TimezoneOverride *time.Duration // nil means: probe TimezoneFile, or the first file with an mtime in the mirror root listing if TimezoneFile is empty; UTC is assumed if the probe fails

	HeadBeforeGet        bool
	SkipIfExists         []*regexp.Regexp
	CompareSizeOnly      []*regexp.Regexp
	AllowMtimeFromParser bool

	AptPackages bool
	YumPackages bool
}

// rawConfig holds the flag values before they've been resolved into their
// final typed form (a parser name instead of a listing.Parser, raw regex
// source strings instead of compiled policy.Regex, and so on).
type rawConfig struct {
	userAgent string
	parser    string
	excludes  []string
	includes  []string

	dryRun    bool
	threads   int
	noDelete  bool
	maxDelete int
	retry     int

	timezoneFile string
	timezone     string

	headBeforeGet        bool
	skipIfExists         []string
	compareSizeOnly      []string
	allowMtimeFromParser bool

	aptPackages bool
	yumPackages bool

	upstreamBase string
}

func newSyncDefaults() rawConfig {
	return rawConfig{
		userAgent:    "tsumugu/" + buildinfo.Version,
		parser:       "nginx",
		threads:      2,
		maxDelete:    100,
		retry:        3,
		upstreamBase: "/",
	}
}

func newListDefaults() rawConfig {
	return newSyncDefaults()
}

// mergeFlags overlays the flags a user actually set on top of base,
// mirroring the "only touch what was provided" merge idiom every CLI
// entry point here uses.
func mergeFlags(base rawConfig, setFlags map[string]any) rawConfig {
	merged := base
	for name, value := range setFlags {
		switch name {
		case "user-agent":
			merged.userAgent = value.(string)
		case "parser":
			merged.parser = value.(string)
		case "exclude":
			merged.excludes = value.([]string)
		case "include":
			merged.includes = value.([]string)
		case "dry-run":
			merged.dryRun = value.(bool)
		case "threads":
			merged.threads = value.(int)
		case "no-delete":
			merged.noDelete = value.(bool)
		case "max-delete":
			merged.maxDelete = value.(int)
		case "retry":
			merged.retry = value.(int)
		case "timezone-file":
			merged.timezoneFile = value.(string)
		case "timezone":
			merged.timezone = value.(string)
		case "head-before-get":
			merged.headBeforeGet = value.(bool)
		case "skip-if-exists":
			merged.skipIfExists = value.([]string)
		case "compare-size-only":
			merged.compareSizeOnly = value.([]string)
		case "allow-mtime-from-parser":
			merged.allowMtimeFromParser = value.(bool)
		case "apt-packages":
			merged.aptPackages = value.(bool)
		case "yum-packages":
			merged.yumPackages = value.(bool)
		case "upstream-base":
			merged.upstreamBase = value.(string)
		case "args":
			// consumed separately by BuildSync/BuildList
		}
	}
	return merged
}

// BuildSync validates flagMap (as returned by flagparse.Parse for the
// sync command) and resolves it into a RunConfig ready to drive a
// traversal.Engine.
func BuildSync(flagMap map[string]interface{}) (*RunConfig, error) {
	raw := mergeFlags(newSyncDefaults(), flagMap)

	args, _ := flagMap["args"].([]string)
	if len(args) != 2 {
		return nil, tserr.New(tserr.ConfigError, fmt.Errorf("sync requires exactly two arguments, UPSTREAM and LOCAL, got %d", len(args)))
	}

	upstream, err := preflight.CheckUpstreamURL(args[0])
	if err != nil {
		return nil, tserr.WithURL(tserr.ConfigError, args[0], err)
	}
	localDir := args[1]
	if err := preflight.CheckLocalDirAccessible(localDir); err != nil {
		return nil, tserr.WithPath(tserr.ConfigError, localDir, err)
	}
	if !raw.dryRun {
		if err := preflight.CheckLocalDirWritable(localDir); err != nil {
			return nil, tserr.WithPath(tserr.ConfigError, localDir, err)
		}
	}

	cfg := &RunConfig{
		Command:              flagparse.Sync,
		Upstream:             upstream,
		LocalDir:             localDir,
		UserAgent:            raw.userAgent,
		DryRun:               raw.dryRun,
		Threads:              raw.threads,
		NoDelete:             raw.noDelete,
		MaxDelete:            raw.maxDelete,
		Retry:                raw.retry,
		TimezoneFile:         raw.timezoneFile,
		HeadBeforeGet:        raw.headBeforeGet,
		AllowMtimeFromParser: raw.allowMtimeFromParser,
		AptPackages:          raw.aptPackages,
		YumPackages:          raw.yumPackages,
	}

	if cfg.Threads <= 0 {
		return nil, tserr.New(tserr.ConfigError, fmt.Errorf("threads must be positive, got %d", cfg.Threads))
	}
	if cfg.MaxDelete < 0 {
		return nil, tserr.New(tserr.ConfigError, fmt.Errorf("max-delete must not be negative, got %d", cfg.MaxDelete))
	}

	if cfg.Parser, err = listing.ByName(raw.parser); err != nil {
		return nil, tserr.New(tserr.ConfigError, err)
	}

	if cfg.Policy, err = compilePolicy(raw.excludes, raw.includes); err != nil {
		return nil, err
	}

	if cfg.SkipIfExists, err = compileAll(raw.skipIfExists); err != nil {
		return nil, err
	}
	if cfg.CompareSizeOnly, err = compileAll(raw.compareSizeOnly); err != nil {
		return nil, err
	}

	if raw.timezone != "" {
		offset, err := parseTimezoneOffset(raw.timezone)
		if err != nil {
			return nil, tserr.New(tserr.ConfigError, err)
		}
		cfg.TimezoneOverride = &offset
	}

	return cfg, nil
}

// BuildList validates flagMap for the list command.
func BuildList(flagMap map[string]interface{}) (*RunConfig, error) {
	raw := mergeFlags(newListDefaults(), flagMap)

	args, _ := flagMap["args"].([]string)
	if len(args) != 1 {
		return nil, tserr.New(tserr.ConfigError, fmt.Errorf("list requires exactly one argument, UPSTREAM, got %d", len(args)))
	}

	upstream, err := preflight.CheckUpstreamURL(args[0])
	if err != nil {
		return nil, tserr.WithURL(tserr.ConfigError, args[0], err)
	}

	cfg := &RunConfig{
		Command:      flagparse.List,
		Upstream:     upstream,
		UpstreamBase: raw.upstreamBase,
		UserAgent:    raw.userAgent,
	}

	if cfg.Parser, err = listing.ByName(raw.parser); err != nil {
		return nil, tserr.New(tserr.ConfigError, err)
	}
	if cfg.Policy, err = compilePolicy(raw.excludes, raw.includes); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.UpstreamBase, "/") {
		return nil, tserr.New(tserr.ConfigError, fmt.Errorf("upstream-base %q must start with /", cfg.UpstreamBase))
	}

	return cfg, nil
}

func compilePolicy(excludeSrcs, includeSrcs []string) (policy.Set, error) {
	excludes := make([]policy.Regex, 0, len(excludeSrcs))
	for _, src := range excludeSrcs {
		re, err := policy.Compile(src)
		if err != nil {
			return policy.Set{}, tserr.New(tserr.ConfigError, err)
		}
		excludes = append(excludes, re)
	}
	includes := make([]policy.Regex, 0, len(includeSrcs))
	for _, src := range includeSrcs {
		re, err := policy.Compile(src)
		if err != nil {
			return policy.Set{}, tserr.New(tserr.ConfigError, err)
		}
		includes = append(includes, re)
	}
	return policy.NewSet(excludes, includes), nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, tserr.New(tserr.ConfigError, fmt.Errorf("compiling pattern %q: %w", p, err))
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// parseTimezoneOffset parses a "+8", "-5.5" or "0" style UTC offset in
// hours into a time.Duration.
func parseTimezoneOffset(s string) (time.Duration, error) {
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: must be a number of hours, e.g. \"+8\" or \"-5.5\"", s)
	}
	if hours < -24 || hours > 24 {
		return 0, fmt.Errorf("timezone offset %q out of range [-24, 24]", s)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}
