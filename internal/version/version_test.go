package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "1.2.3"
	Commit = "abc1234"
	BuildTime = "2026-08-31T10:00:00Z"

	if got := String(); got != "1.2.3 (abc1234) built 2026-08-31T10:00:00Z" {
		t.Errorf("String() = %q", got)
	}
}

func TestDefaultValues(t *testing.T) {
	// These may be overwritten by ldflags in production builds.
	if Version == "" || Commit == "" || BuildTime == "" {
		t.Errorf("defaults should be non-empty: %q / %q / %q", Version, Commit, BuildTime)
	}

	if !strings.Contains(String(), "built") {
		t.Errorf("String() = %q, should contain 'built'", String())
	}
}
