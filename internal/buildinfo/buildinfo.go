// Package buildinfo holds version information injected at build time via ldflags.
package buildinfo

// Set via -ldflags at build time:
//
//	go build -ldflags "-X github.com/afrietaadmin/uisp-service-suspension/internal/buildinfo.Version=1.0.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the build identity on one line.
func String() string {
	return Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
