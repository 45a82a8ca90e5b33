// Package version carries build metadata for the esmlink binary.
package version

import (
	"runtime/debug"
)

// Set through -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	settingRevision = "vcs.revision"
	settingTime     = "vcs.time"
	shortHashLen    = 12
)

// InitBinaryVersion fills Version, Commit and Date from the embedded build info
// when they were not injected by the linker.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case settingRevision:
			if Commit == "none" {
				Commit = setting.Value
				if len(Commit) > shortHashLen {
					Commit = Commit[:shortHashLen]
				}
			}
		case settingTime:
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}
