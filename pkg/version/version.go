package version

// Overridden at build time with -ldflags "-X".
var (
	Version   = "1.0.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

// String returns a human-readable version string.
func String() string {
	return "aviator " + Version + " (" + GitCommit + ", " + BuildDate + ")"
}
