// Package version exposes build-time version information injected via
// -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/scmtools/diffstack/pkg/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
