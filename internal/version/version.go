package version

import "fmt"

// Set with -ldflags "-X azure-cost-alerts/internal/version.Version=..." at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies the binary to upstream APIs.
func UserAgent() string {
	return "azcostalert/" + Version
}

// Summary renders the build information on three lines.
func Summary() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
