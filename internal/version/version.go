// Package version holds the build version string.
package version

// Version is the Pulse release version. Set at build time via
// -ldflags "-X github.com/relaycrm/pulse/internal/version.Version=v1.2.3".
var Version = "dev"
