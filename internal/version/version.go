// Package version carries build metadata injected via -ldflags.
package version

var (
	// Version is the release version, set at build time.
	Version = "dev"
	// Commit is the git commit hash, set at build time.
	Commit = "unknown"
)
