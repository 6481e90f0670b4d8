// Package version carries build metadata stamped into the collector
// and archiver binaries via ldflags:
//
//	go build -ldflags "-X github.com/zcole/kalshi-core/internal/version.Version=1.0.0 \
//	                   -X github.com/zcole/kalshi-core/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/zcole/kalshi-core/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the short git hash of the build.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String formats the three fields for startup logs.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
