// Package version holds build information injected via ldflags.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Version is the release version, or "dev" for local builds.
//
//	-X github.com/Aman-CERP/paperrag/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the short git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string with build details.
func String() string {
	return fmt.Sprintf("paperrag %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// JSON renders GetInfo as indented JSON.
func JSON() (string, error) {
	b, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
