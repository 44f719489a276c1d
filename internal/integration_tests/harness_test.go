package integration_tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/app"
	"github.com/specialistvlad/sweepgrid/internal/cli"
	"github.com/specialistvlad/sweepgrid/internal/launcher"
	"github.com/stretchr/testify/require"
)

// harnessResult holds the outcome of one command-line invocation.
type harnessResult struct {
	Err    error
	Code   int
	Output string
	Logs   string
	// Dir is the workspace: sweeps/, data/ and ledger.db live under it.
	Dir string
}

// workspace writes files under <dir>/sweeps, replacing ${DATA} with an
// existing dataset directory and ${DIR} with dir, and returns dir.
func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	for name, content := range files {
		path := filepath.Join(dir, "sweeps", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		content = strings.ReplaceAll(content, "${DATA}", data)
		content = strings.ReplaceAll(content, "${DIR}", dir)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// runSweep runs `sweepgrid <command> <workspace>/sweeps --ledger ... flags...`.
func runSweep(ctx context.Context, t *testing.T, files map[string]string, runner launcher.Runner, command string, flags ...string) *harnessResult {
	t.Helper()
	return runIn(ctx, t, workspace(t, files), runner, command, flags...)
}

// runIn repeats an invocation in an existing workspace.
func runIn(ctx context.Context, t *testing.T, dir string, runner launcher.Runner, command string, flags ...string) *harnessResult {
	t.Helper()
	args := []string{command}
	if command != "history" {
		args = append(args, filepath.Join(dir, "sweeps"))
	}
	args = append(args, "--ledger", filepath.Join(dir, "ledger.db"), "--log-level", "debug")
	args = append(args, flags...)

	var out, logs bytes.Buffer
	err := cli.Execute(ctx, args, &out, &logs, app.WithRunner(runner), app.WithProber(failingProber{}))
	if os.Getenv("SWEEPGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
	}
	return &harnessResult{Err: err, Code: cli.ExitCode(err), Output: out.String(), Logs: logs.String(), Dir: dir}
}

// failingProber makes every test that needs device availability state
// device_count.
type failingProber struct{}

func (failingProber) DeviceCount(context.Context) (int, error) {
	return 0, os.ErrNotExist
}

// recorder is a launcher.Runner that records every process it is asked to
// start and exits with the code chosen by exit.
type recorder struct {
	mu    sync.Mutex
	procs []launcher.Process
	exit  func(args []string) int
}

func (r *recorder) Run(_ context.Context, p launcher.Process) (launcher.Exit, error) {
	r.mu.Lock()
	r.procs = append(r.procs, p)
	r.mu.Unlock()
	if r.exit == nil {
		return launcher.Exit{}, nil
	}
	return launcher.Exit{Code: r.exit(p.Args)}, nil
}

func (r *recorder) processes() []launcher.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.procs)
}

// flagValues returns the value of flag for every recorded process.
func (r *recorder) flagValues(flag string) []string {
	var out []string
	for _, p := range r.processes() {
		out = append(out, flagValue(p.Args, flag))
	}
	return out
}

func flagValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// failWhen exits 1 when flag has value.
func failWhen(flag, value string) func([]string) int {
	return func(args []string) int {
		if flagValue(args, flag) == value {
			return 1
		}
		return 0
	}
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range slices.Backward(env) {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

const vaeProtocol = `
protocol "vae" "pacs_vae" {
  dataset         = "PACS"
  sources         = ["A", "S", "P"]
  target          = "C"
  arch            = "resnet18"
  z_dim           = 64
  s_dim           = 4
  C_max           = 15
  beta            = 1
  lambda_vae      = 5e-5
  lambda_ent      = 0.1
  vae_epochs      = 2
  unstable_epochs = 1
  stable_epochs   = 1
  i               = 100
}
`

const decoupleProtocol = `
protocol "decouple" "pacs_decouple" {
  dataset         = "PACS"
  sources         = ["C", "S", "A"]
  target          = "P"
  arch            = "resnet18"
  z_dim           = 64
  i               = 1000
  train_epochs    = 10
  finetune_epochs = 5
  decouple_alpha  = 1.0
  decouple_beta   = 10.0
}
`

const pythonTrainer = `
trainer {
  command = "python"
  args    = ["main.py"]
}
environment {
  dataset_root = "${DATA}"
}
`
