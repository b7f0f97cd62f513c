package version

// Build holds the release version, injected via -ldflags. Default "dev".
var Build = "dev"

// Commit holds the source revision, injected via -ldflags. Empty when unknown.
var Commit = ""

// String returns Build with the commit appended when known.
func String() string {
	if Commit == "" {
		return Build
	}
	return Build + " (" + Commit + ")"
}
