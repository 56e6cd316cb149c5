// Package version holds build-time version information for the docrag binary.
// The variables in this package are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/docrag-go/internal/version.Version=v1.2.3 \
//	                    -X github.com/54b3r/docrag-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/docrag-go/internal/version.BuildDate=2025-01-01"
//
// When built without ldflags (e.g. `go run`), the values fall back to
// human-readable defaults so the binary is always usable.
package version

import "fmt"

// Version is the semantic version of the binary (e.g. "v1.2.3").
var Version = "dev"

// Commit is the short git SHA of the commit the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC date the binary was built (RFC3339 format).
var BuildDate = "unknown"

// Info is the JSON shape of the build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

// String renders the build information on one line.
func (i Info) String() string {
	return fmt.Sprintf("docrag %s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
