package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsumugu-mirror/tsumugu/pkg/buildinfo"
)

// stringSliceFlag accumulates every occurrence of a repeatable flag, e.g.
// -exclude a -exclude b -> []string{"a", "b"}.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// cliFlags holds pointers to all possible command-line flags. Fields are
// pointers (or, for repeatable flags, addressable slices) so flagsToMap
// can distinguish "not registered for this command" from "registered but
// left at its default".
type cliFlags struct {
	// Shared across sync and list.
	UserAgent *string
	Parser    *string
	Exclude   stringSliceFlag
	Include   stringSliceFlag

	// sync only.
	DryRun               *bool
	Threads              *int
	NoDelete             *bool
	MaxDelete            *int
	TimezoneFile         *string
	Timezone             *string
	Retry                *int
	HeadBeforeGet        *bool
	SkipIfExists         stringSliceFlag
	CompareSizeOnly      stringSliceFlag
	AllowMtimeFromParser *bool
	AptPackages          *bool
	YumPackages          *bool

	// list only.
	UpstreamBase *string
}

func registerCommonFlags(fs *flag.FlagSet, f *cliFlags) {
	f.UserAgent = fs.String("user-agent", "tsumugu/"+buildinfo.Version, "User-Agent header sent with every request.")
	f.Parser = fs.String("parser", "nginx", "Directory listing dialect to parse: nginx, apache-f2, docker, directory-lister, lighttpd, caddy.")
	fs.Var(&f.Exclude, "exclude", "Regex pattern to exclude from the run (repeatable).")
	fs.Var(&f.Include, "include", "Regex pattern that overrides an exclude (repeatable).")
}

func registerSyncFlags(fs *flag.FlagSet, f *cliFlags) {
	f.DryRun = fs.Bool("dry-run", false, "Show what would be downloaded and deleted without touching the filesystem.")
	f.Threads = fs.Int("threads", 2, "Number of concurrent worker goroutines.")
	f.NoDelete = fs.Bool("no-delete", false, "Never delete local files absent from upstream.")
	f.MaxDelete = fs.Int("max-delete", 100, "Refuse to run if more than this many local entries would be deleted.")
	f.TimezoneFile = fs.String("timezone-file", "", "URL of a file to HEAD in order to guess upstream's timezone from its Last-Modified header.")
	f.Timezone = fs.String("timezone", "", "Upstream's UTC offset in hours (e.g. \"+8\", \"-5.5\"), overriding the timezone probe.")
	f.Retry = fs.Int("retry", 3, "Number of retries for a transient network failure.")
	f.HeadBeforeGet = fs.Bool("head-before-get", false, "Accepted and stored in the run configuration; sync does not issue HEAD requests for it.")
	fs.Var(&f.SkipIfExists, "skip-if-exists", "Regex pattern: if a local file matches and already exists, never re-check it (repeatable).")
	fs.Var(&f.CompareSizeOnly, "compare-size-only", "Regex pattern: for matching files, treat a size match as sufficient without comparing mtime (repeatable).")
	f.AllowMtimeFromParser = fs.Bool("allow-mtime-from-parser", false, "Accepted and stored in the run configuration; sync does not act on it and always uses the listing's own mtime.")
	f.AptPackages = fs.Bool("apt-packages", false, "After the sync, sanity-check any dists/*/Packages.gz written.")
	f.YumPackages = fs.Bool("yum-packages", false, "After the sync, sanity-check any repodata/*primary.xml.gz written.")
}

func registerListFlags(fs *flag.FlagSet, f *cliFlags) {
	f.UpstreamBase = fs.String("upstream-base", "/", "Path prefix under UPSTREAM to start listing from.")
}

// Parse parses args (usually os.Args[1:]) and returns the command, a map
// of only the flags the user actually set (plus, under the "args" key,
// any positional arguments left over), and an error.
func Parse(args []string) (Command, map[string]interface{}, error) {
	if len(args) == 0 {
		printTopLevelUsage()
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		printTopLevelUsage()
		return Help, nil, nil
	}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	f := &cliFlags{}
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	registerCommonFlags(fs, f)

	switch command {
	case Sync:
		registerSyncFlags(fs, f)
		fs.Usage = func() { printSubcommandUsage(command, "sync <UPSTREAM> <LOCAL>", "Mirror UPSTREAM into LOCAL.", fs) }
	case List:
		registerListFlags(fs, f)
		fs.Usage = func() { printSubcommandUsage(command, "list <UPSTREAM>", "List UPSTREAM without downloading anything.", fs) }
	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return command, nil, err
	}

	flagMap, err := flagsToMap(fs, f)
	if err != nil {
		return command, nil, err
	}
	flagMap["args"] = fs.Args()

	return command, flagMap, nil
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) (map[string]interface{}, error) {
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "user-agent", f.UserAgent)
	addIfUsed(flagMap, usedFlags, "parser", f.Parser)
	addSliceIfUsed(flagMap, usedFlags, "exclude", f.Exclude)
	addSliceIfUsed(flagMap, usedFlags, "include", f.Include)

	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "threads", f.Threads)
	addIfUsed(flagMap, usedFlags, "no-delete", f.NoDelete)
	addIfUsed(flagMap, usedFlags, "max-delete", f.MaxDelete)
	addIfUsed(flagMap, usedFlags, "timezone-file", f.TimezoneFile)
	addIfUsed(flagMap, usedFlags, "timezone", f.Timezone)
	addIfUsed(flagMap, usedFlags, "retry", f.Retry)
	addIfUsed(flagMap, usedFlags, "head-before-get", f.HeadBeforeGet)
	addSliceIfUsed(flagMap, usedFlags, "skip-if-exists", f.SkipIfExists)
	addSliceIfUsed(flagMap, usedFlags, "compare-size-only", f.CompareSizeOnly)
	addIfUsed(flagMap, usedFlags, "allow-mtime-from-parser", f.AllowMtimeFromParser)
	addIfUsed(flagMap, usedFlags, "apt-packages", f.AptPackages)
	addIfUsed(flagMap, usedFlags, "yum-packages", f.YumPackages)

	addIfUsed(flagMap, usedFlags, "upstream-base", f.UpstreamBase)

	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addSliceIfUsed adds a repeatable flag's accumulated values, if any were given.
func addSliceIfUsed(flagMap map[string]interface{}, usedFlags map[string]bool, name string, values stringSliceFlag) {
	if usedFlags[name] {
		flagMap[name] = []string(values)
	}
}

func printTopLevelUsage() {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "%s (%s) - a one-shot HTTP(S) mirror synchronizer.\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  sync <UPSTREAM> <LOCAL>   Mirror UPSTREAM into LOCAL\n")
	fmt.Fprintf(os.Stderr, "  list <UPSTREAM>           List UPSTREAM without downloading anything\n")
	fmt.Fprintf(os.Stderr, "  help                      Show this message\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -help' for the flags a command accepts.\n", execName)
}

func printSubcommandUsage(command Command, usage, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s (%s) - a one-shot HTTP(S) mirror synchronizer.\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Usage: %s %s [flags]\n\n", execName, usage)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
