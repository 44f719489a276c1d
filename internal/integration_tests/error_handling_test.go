package integration_tests

import (
	"context"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneSeed = `
sweep "s" {
  protocol = "pacs_vae"
  axis "seed" { values = [1] }
}
`

// Every failure here must surface before a single Trainer process starts.
func TestErrors_NothingIsDispatched(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		files    map[string]string
		flags    []string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "invalid HCL syntax",
			files:    map[string]string{"main.hcl": pythonTrainer + `sweep "broken" {`},
			wantCode: cli.ExitUsage,
			wantMsg:  "failed to parse HCL file",
		},
		{
			name: "trainer without command",
			files: map[string]string{"main.hcl": `
trainer {
  args = ["main.py"]
}
` + vaeProtocol + oneSeed},
			wantCode: cli.ExitUsage,
			wantMsg:  "failed to decode HCL file",
		},
		{
			name: "zip axes of different length",
			files: map[string]string{"main.hcl": pythonTrainer + vaeProtocol + `
sweep "s" {
  protocol = "pacs_vae"
  axis "seed"  { values = [1, 2, 3] }
  axis "z_dim" { values = [32, 64] }
}
`},
			wantCode: cli.ExitUsage,
			wantMsg:  "zip axes must have equal length",
		},
		{
			name: "run names collide within a sweep",
			files: map[string]string{"main.hcl": pythonTrainer + vaeProtocol + `
sweep "s" {
  protocol  = "pacs_vae"
  name_axes = ["seed"]
  axis "seed"  { values = [1, 1] }
  axis "z_dim" { values = [32, 64] }
}
`},
			wantCode: cli.ExitUsage,
			wantMsg:  "run name \"pacs_vae_C_seed1\" produced by both",
		},
		{
			name: "unknown protocol kind",
			files: map[string]string{"main.hcl": pythonTrainer + `
protocol "gan" "pacs_gan" {
  target = "C"
}
sweep "s" {
  protocol = "pacs_gan"
  axis "seed" { values = [1] }
}
`},
			wantCode: cli.ExitUsage,
			wantMsg:  "unknown protocol kind \"gan\"",
		},
		{
			name: "axis that is not a protocol field",
			files: map[string]string{"main.hcl": pythonTrainer + vaeProtocol + `
sweep "s" {
  protocol = "pacs_vae"
  axis "decouple_alpha" { values = [1] }
}
`},
			wantCode: cli.ExitUsage,
			wantMsg:  "axis does not match any field of the vae protocol",
		},
		{
			name: "sweep referencing an undeclared protocol",
			files: map[string]string{"main.hcl": pythonTrainer + `
sweep "s" {
  protocol = "missing"
  axis "seed" { values = [1] }
}
`},
			wantCode: cli.ExitUsage,
			wantMsg:  "uses undeclared protocol \"missing\"",
		},
		{
			name:     "device beyond the available count",
			files:    map[string]string{"main.hcl": pythonTrainer + vaeProtocol + oneSeed},
			flags:    []string{"--devices", "0,1", "--device-count", "1"},
			wantCode: cli.ExitEnvironment,
			wantMsg:  "device 1 requested but only 1 device(s) available",
		},
		{
			name:     "device availability cannot be probed",
			files:    map[string]string{"main.hcl": pythonTrainer + vaeProtocol + oneSeed},
			flags:    []string{"--devices", "0"},
			wantCode: cli.ExitEnvironment,
			wantMsg:  "cannot determine available devices",
		},
		{
			name: "dataset root missing",
			files: map[string]string{"main.hcl": `
trainer {
  command = "python"
}
environment {
  dataset_root = "${DIR}/does-not-exist"
}
` + vaeProtocol + oneSeed},
			wantCode: cli.ExitEnvironment,
			wantMsg:  "dataset root",
		},
		{
			name:     "unknown tracking mode",
			files:    map[string]string{"main.hcl": pythonTrainer + vaeProtocol + oneSeed},
			flags:    []string{"--tracking", "sometimes"},
			wantCode: cli.ExitEnvironment,
			wantMsg:  "unknown tracking mode \"sometimes\"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trainer := &recorder{}

			result := runSweep(context.Background(), t, tc.files, trainer, "run", tc.flags...)

			require.Error(t, result.Err)
			assert.Equal(t, tc.wantCode, result.Code, result.Err.Error())
			assert.Contains(t, result.Err.Error(), tc.wantMsg)
			assert.Empty(t, trainer.processes(), "no Trainer process may start")
		})
	}
}

func TestErrors_NoSweepFiles(t *testing.T) {
	t.Parallel()

	result := runSweep(context.Background(), t, map[string]string{"notes.txt": "nothing here"}, &recorder{}, "run")

	require.Error(t, result.Err)
	assert.Equal(t, cli.ExitUsage, result.Code)
	assert.Contains(t, result.Err.Error(), "no .hcl, .yaml, .yml files found")
}
