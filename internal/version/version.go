// Package version carries the lacevm CLI's build fingerprint.
package version

import "fmt"

// Major, Minor, and Patch make up the CLI's semantic version; Pre, when
// non-empty, is appended as a prerelease suffix.
const (
	Major = 0
	Minor = 1
	Patch = 0
	Pre   = "dev"
)

// GitCommit and BuildDate are optional build-time stamps, set via
// -ldflags; both are empty in a plain `go build`.
var (
	GitCommit = ""
	BuildDate = ""
)

// Tagline is the one-line description shown under `lacevm version`.
const Tagline = "a small concurrent bytecode machine"

// String renders the semantic version, e.g. "0.1.0-dev". Colorizing it
// for pretty output is the caller's job; this package only owns the
// numbers.
func String() string {
	s := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if Pre != "" {
		s += "-" + Pre
	}
	return s
}
