// Package version reports the build the binary was made from.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	tag       = "dev" // set via ldflags
	commit    = "unknown"
	buildTime = "unknown"
)

const template = "cleanbites %s (%s) built at %s"

// buildInfoReader is swapped out in tests.
var buildInfoReader = debug.ReadBuildInfo

// String describes the build. Values set through ldflags win over the VCS
// stamp of the Go toolchain.
func String() string {
	currentCommit := commit
	currentDate := buildTime

	if info, ok := buildInfoReader(); ok {
		for _, setting := range info.Settings {
			switch {
			case setting.Key == "vcs.revision" && commit == "unknown":
				currentCommit = setting.Value
			case setting.Key == "vcs.time" && buildTime == "unknown":
				currentDate = setting.Value
			}
		}
	}

	return fmt.Sprintf(template, tag, currentCommit, currentDate)
}
