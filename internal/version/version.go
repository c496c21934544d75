// Package version exposes the build version string.
package version

import "runtime/debug"

// Version is set at build time via -ldflags; otherwise it falls back to the
// module version embedded by go install, then to "dev".
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
