// Package version provides build and version information for StrokeForge.
package version

// Version is the current release version of StrokeForge.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/StrokeForge/internal/version.Version=x.y.z"
var Version = "0.3.0"
