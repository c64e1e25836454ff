// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     version
// Description: Central version and build information
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version is the release version of appstore
const Version = "0.3.0"

// Build information, overridden via -ldflags at build time
var (
	GitCommit = "development"
	BuildDate = "unknown"
)

// Info bundles version and build information
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the current build information
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short returns "v<version>"
func Short() string {
	return "v" + Version
}

// String renders the build information on a single line
func (i Info) String() string {
	return fmt.Sprintf("appstore v%s (%s, built %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
