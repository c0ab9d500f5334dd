// Package version carries the build identity reported by /version and by
// both binaries' --version flag.
package version

var (
	// BinaryName is overridden per-binary via -ldflags if desired.
	BinaryName = "h2c-api"
	// Version is the façade's informational release tag.
	Version = "0.1.0"
	// GitVersion is the value reported on the Kubernetes /version endpoint.
	GitVersion = "v1.28.0-h2c"
	Major      = "1"
	Minor      = "28"
	Platform   = "linux/amd64"
)
