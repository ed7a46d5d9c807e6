/*
Package version provides build information for smartfix.

Values are set via ldflags during build:

	go build -ldflags "-X github.com/khanglvm/smartfix/internal/version.Version=v0.3.0 \
	  -X github.com/khanglvm/smartfix/internal/version.Commit=$(git rev-parse --short HEAD) \
	  -X github.com/khanglvm/smartfix/internal/version.Date=$(date -u +%F)"

If not set, the build reports itself as "dev".
*/
package version

var (
	// Version is the release tag (e.g., v0.3.0)
	Version = "dev"
	// Commit is the git commit hash (short form)
	Commit = "none"
	// Date is the build date in UTC (YYYY-MM-DD)
	Date = "unknown"
)

// GetVersion returns version information as a formatted string
func GetVersion() string {
	return FormatVersion(Version, Commit, Date)
}

// FormatVersion formats version components into a display string
func FormatVersion(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}

// GetVersionComponents returns individual version components
func GetVersionComponents() (version, commit, date string) {
	return Version, Commit, Date
}
