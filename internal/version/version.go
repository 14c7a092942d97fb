// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X lexichat/internal/version.Version=v1.2.0 -X lexichat/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("lexichat %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}
