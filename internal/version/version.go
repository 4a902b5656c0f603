package version

import (
	"fmt"
	"runtime"
)

var (
	// Version of the autostand build, set via -ldflags "-X".
	Version = "0.1.0-dev"
	// Commit is the short git SHA, or "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the version with commit, build time and the Go toolchain.
func Full() string {
	return fmt.Sprintf("autostand %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
