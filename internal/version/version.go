// Package version reports build metadata. Release builds set the variables
// with -ldflags; plain `go install` builds fall back to the embedded build info.
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String renders the version line printed by `scribe version`.
func String() string {
	version, commit, date := resolve()
	return "scribe " + version + " (commit=" + commit + ", date=" + date + ", go=" + runtime.Version() + ")"
}

func resolve() (version, commit, date string) {
	version, commit, date = Version, Commit, Date

	info, ok := readBuildInfo()
	if !ok {
		return version, commit, date
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch {
		case setting.Key == "vcs.revision" && commit == "none":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case setting.Key == "vcs.time" && date == "unknown":
			date = setting.Value
		}
	}
	return version, commit, date
}
