// Package version holds build-time identifiers, overridden via
// -ldflags "-X github.com/parentgrade/gradecore/version.GitRelease=...".
package version

import "runtime"

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)
