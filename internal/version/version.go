// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata on one line for --version output and
// run records.
func String() string {
	return fmt.Sprintf("roadagent %s (%s, built %s)", Version, GitSHA, BuildTime)
}
