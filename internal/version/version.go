package version

// Version information for phpintel
var (
	// Version is the current semantic version of phpintel
	Version = "0.1.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "phpintel " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}
