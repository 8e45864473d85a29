package version

import (
	"encoding/json"
	"os"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/JustinTDCT/CourseVault/internal/version.version=...".
var (
	version = ""
	commit  = ""
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// Load returns the linked-in version, then a version.json in the working
// directory, then the module build info, then "0.0.0".
func Load() Info {
	if version != "" {
		return Info{Version: version, Commit: commit}
	}
	if data, err := os.ReadFile("version.json"); err == nil {
		var info Info
		if err := json.Unmarshal(data, &info); err == nil && info.Version != "" {
			return info
		}
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return Info{Version: bi.Main.Version}
	}
	return Info{Version: "0.0.0"}
}
