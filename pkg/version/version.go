// Package version carries build metadata injected at link time.
package version

// Set via -ldflags at build time; the defaults identify a source build.
var (
	// Version is the release tag of the ccr binary.
	Version = "dev"
	// Commit is the Git hash the binary was built from.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the single-line form used by the version command.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
