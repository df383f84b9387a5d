package core

import (
	"runtime/debug"
	"strings"
)

// Version is derived from build metadata at init time. Tagged installs get
// the module version; local builds fall back to the VCS revision.
var Version = "devel"

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		Version = v
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			Version = "devel-" + s.Value[:7]
			return
		}
	}
}

// FormatVersion strips the module "v" prefix for display.
func FormatVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}
