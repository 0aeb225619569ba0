package version

import "runtime/debug"

// Version can be set at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = ""

// GetVersion returns the release version, falling back to module build info.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}
