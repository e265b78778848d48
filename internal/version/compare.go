package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckVersionCompatibility reports whether a file written for requiredVersion
// (an engine config or a stored result) can be used by engineVersion.
//
// Major and minor must match. Patch may differ. Either side being "main"
// skips the check.
//
//   - engine 1.2.1, file 1.2.0 -> ok
//   - engine 1.3.0, file 1.2.0 -> minor mismatch
//   - engine 2.0.0, file 1.2.0 -> major mismatch
func CheckVersionCompatibility(engineVersion, requiredVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	requiredVersion = strings.TrimPrefix(requiredVersion, "v")

	if IsDevelopment(engineVersion) || IsDevelopment(requiredVersion) {
		return nil
	}

	engine, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version '%s': %w", engineVersion, err)
	}

	required, err := semver.NewVersion(requiredVersion)
	if err != nil {
		return fmt.Errorf("invalid required version '%s': %w", requiredVersion, err)
	}

	if engine.Major() != required.Major() {
		return fmt.Errorf("major version mismatch: engine is %d.x.x but file was written for %d.x.x",
			engine.Major(), required.Major())
	}

	if engine.Minor() != required.Minor() {
		return fmt.Errorf("minor version mismatch: engine is %d.%d.x but file was written for %d.%d.x",
			engine.Major(), engine.Minor(), required.Major(), required.Minor())
	}

	return nil
}

// IsDevelopment reports whether v names a development build.
func IsDevelopment(v string) bool {
	return strings.TrimPrefix(v, "v") == "main"
}
