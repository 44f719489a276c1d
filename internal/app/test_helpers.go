package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Reports are
// captured in the first buffer and logs in the second.
func SetupAppTest(t *testing.T, cfg Config, opts ...Option) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	out := &testutil.SafeBuffer{}
	logs := &testutil.SafeBuffer{}
	testApp := NewApp(out, logs, validated, opts...)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("SWEEPGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return testApp, out, logs
}
