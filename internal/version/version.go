package version

// Version is the engine version written into every result and checked against
// the engine_version of a config or a result file.
// Set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-backtest/internal/version.Version=1.2.3"
// "main" marks a development build and skips compatibility checks.
var Version = "v1.0.0"

// GetVersion returns the current engine version.
func GetVersion() string {
	return Version
}
