package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/launcher"
	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
	"github.com/specialistvlad/sweepgrid/internal/report"
	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/specialistvlad/sweepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedSweep = `
trainer {
  command = "python"
  args    = ["main.py"]
}

environment {
  dataset_root = %q
}

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

sweep "seeds" {
  protocol = "pacs_vae"
  axis "seed" {
    values = [4, 5, 6]
  }
}
`

// trainerStub exits with the code chosen by exit for the seed on the
// command line.
type trainerStub struct {
	mu    sync.Mutex
	seeds []string
	envs  [][]string
	exit  func(ctx context.Context, seed string) int
}

func (s *trainerStub) Run(ctx context.Context, p launcher.Process) (launcher.Exit, error) {
	seed := ""
	for i := 0; i+1 < len(p.Args); i++ {
		if p.Args[i] == "--seed" {
			seed = p.Args[i+1]
		}
	}
	s.mu.Lock()
	s.seeds = append(s.seeds, seed)
	s.envs = append(s.envs, p.Env)
	s.mu.Unlock()
	if s.exit == nil {
		return launcher.Exit{}, nil
	}
	return launcher.Exit{Code: s.exit(ctx, seed)}, nil
}

func (s *trainerStub) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.seeds)
}

func failSeed(bad string) func(context.Context, string) int {
	return func(_ context.Context, seed string) int {
		if seed == bad {
			return 1
		}
		return 0
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// sweepDir writes the seed sweep and returns its directory and a ledger path.
func sweepDir(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	dir := testutil.WriteFiles(t, map[string]string{"sweep.hcl": fmt.Sprintf(seedSweep, root)})
	return dir, filepath.Join(t.TempDir(), "ledger.db")
}

func TestRun_ForcedFailureThenRerunFailed(t *testing.T) {
	dir, ledgerPath := sweepDir(t)
	stub := &trainerStub{exit: failSeed("5")}
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}, LedgerPath: ledgerPath},
		WithRunner(stub), WithSweepIDs(sequentialIDs("first")))

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sweeperr.ErrTrainer)
	assert.Equal(t, []string{"4", "5", "6"}, stub.calls(), "a failed run does not stop the sweep")
	assert.Contains(t, out.String(), "pacs_vae_C_seed5")
	assert.Contains(t, out.String(), "--rerun-failed first-1")

	rerun := &trainerStub{}
	b, out2, _ := SetupAppTest(t, Config{Paths: []string{dir}, LedgerPath: ledgerPath, RerunFailed: "first-1"},
		WithRunner(rerun), WithSweepIDs(sequentialIDs("second")))
	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, []string{"5"}, rerun.calls())
	assert.Contains(t, out2.String(), "1 succeeded")
}

func TestRun_WithoutLedgerHintsOnlyByName(t *testing.T) {
	dir, _ := sweepDir(t)
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}},
		WithRunner(&trainerStub{exit: failSeed("5")}), WithSweepIDs(sequentialIDs("unrecorded")))

	require.Error(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "--only pacs_vae_C_seed5")
	assert.NotContains(t, out.String(), "--rerun-failed")
}

func TestRun_RerunWithNothingFailed(t *testing.T) {
	dir, ledgerPath := sweepDir(t)
	a, _, _ := SetupAppTest(t, Config{Paths: []string{dir}, LedgerPath: ledgerPath},
		WithRunner(&trainerStub{}), WithSweepIDs(sequentialIDs("ok")))
	require.NoError(t, a.Run(context.Background()))

	stub := &trainerStub{}
	b, _, _ := SetupAppTest(t, Config{Paths: []string{dir}, LedgerPath: ledgerPath, RerunFailed: "ok-1"}, WithRunner(stub))
	require.NoError(t, b.Run(context.Background()))
	assert.Empty(t, stub.calls())
}

func TestRun_JSONSummaryAndEnvironment(t *testing.T) {
	dir, _ := sweepDir(t)
	stub := &trainerStub{}
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}, JSON: true, Tracking: "offline"},
		WithRunner(stub), WithSweepIDs(sequentialIDs("s")))

	require.NoError(t, a.Run(context.Background()))

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(out.String()), &summary))
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Sweeps, 1)
	assert.Equal(t, "s-1", summary.Sweeps[0].SweepID)

	require.Len(t, stub.envs, 3)
	assert.Contains(t, stub.envs[0], "WANDB_MODE=offline")
}

func TestRun_OnlySelectsNamedRuns(t *testing.T) {
	dir, _ := sweepDir(t)
	stub := &trainerStub{}
	a, _, _ := SetupAppTest(t, Config{Paths: []string{dir}, Only: []string{"pacs_vae_C_seed6"}}, WithRunner(stub))
	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, []string{"6"}, stub.calls())
}

func TestRun_ErrorsSurfaceBeforeDispatch(t *testing.T) {
	dir, _ := sweepDir(t)
	one := 1
	testCases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "unknown sweep", cfg: Config{Paths: []string{dir}, Sweeps: []string{"nope"}}, want: sweeperr.ErrConfig},
		{name: "unknown run", cfg: Config{Paths: []string{dir}, Only: []string{"nope"}}, want: sweeperr.ErrConfig},
		{name: "no files", cfg: Config{Paths: []string{t.TempDir()}}, want: sweeperr.ErrConfig},
		{name: "missing path", cfg: Config{Paths: []string{filepath.Join(dir, "missing")}}, want: sweeperr.ErrConfig},
		{name: "bad tracking", cfg: Config{Paths: []string{dir}, Tracking: "cloud"}, want: sweeperr.ErrEnvironment},
		{name: "device out of range", cfg: Config{Paths: []string{dir}, Devices: []int{3}, DeviceCount: &one}, want: sweeperr.ErrEnvironment},
		{name: "dataset root missing", cfg: Config{Paths: []string{dir}, DatasetRoot: filepath.Join(dir, "nowhere")}, want: sweeperr.ErrEnvironment},
		{name: "unknown ledger sweep", cfg: Config{Paths: []string{dir}, RerunFailed: "x", LedgerPath: filepath.Join(t.TempDir(), "l.db")}, want: sweeperr.ErrConfig},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &trainerStub{}
			a, _, _ := SetupAppTest(t, tc.cfg, WithRunner(stub))
			err := a.Run(context.Background())
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, stub.calls())
		})
	}
}

func TestRun_CancellationReportsUnstartedRuns(t *testing.T) {
	dir, _ := sweepDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub := &trainerStub{exit: func(ctx context.Context, seed string) int {
		if seed == "4" {
			cancel()
			<-ctx.Done()
			return 143
		}
		return 0
	}}
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}}, WithRunner(stub))

	err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"4"}, stub.calls())
	assert.Contains(t, out.String(), "not started")
}

func TestRun_MixedFormats(t *testing.T) {
	root := t.TempDir()
	dir := testutil.WriteFiles(t, map[string]string{
		"a_trainer.hcl": fmt.Sprintf("trainer {\n  command = \"python\"\n}\nenvironment {\n  dataset_root = %q\n}\n", root),
		"b_sweep.yaml": `
protocols:
  - kind: decouple
    name: pacs_decouple
    values: {dataset: PACS, sources: [C, S, A], target: P, arch: resnet18, z_dim: 64, i: 1000,
             train_epochs: 10, finetune_epochs: 5, decouple_alpha: 1.0, decouple_beta: 10.0}
sweeps:
  - name: decouple_seeds
    protocol: pacs_decouple
    axes:
      - {name: seed, values: [1, 2]}
`,
	})
	stub := &trainerStub{}
	a, _, _ := SetupAppTest(t, Config{Paths: []string{dir}}, WithRunner(stub))
	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, []string{"1", "2"}, stub.calls())
}

func TestPlan_DoesNotDispatch(t *testing.T) {
	dir, _ := sweepDir(t)
	stub := &trainerStub{}
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}, JSON: true, DatasetRoot: "/cluster/data/PACS"},
		WithRunner(stub), WithSweepIDs(sequentialIDs("plan")))

	require.NoError(t, a.Plan(context.Background()))
	assert.Empty(t, stub.calls())

	var planned []report.PlannedRun
	require.NoError(t, json.Unmarshal([]byte(out.String()), &planned))
	require.Len(t, planned, 3)
	assert.Equal(t, "pacs_vae_C_seed4", planned[0].Name)
	assert.Equal(t, []string{"python", "main.py", "--root", "/cluster/data/PACS"}, planned[0].Argv[:4])
	assert.Contains(t, strings.Join(planned[0].Argv, " "), "--seed 4")
	assert.Contains(t, planned[0].Env, "WANDB_MODE=disabled")
}

func TestPlan_Text(t *testing.T) {
	dir, _ := sweepDir(t)
	a, out, _ := SetupAppTest(t, Config{Paths: []string{dir}, Only: []string{"pacs_vae_C_seed5"}}, WithRunner(&trainerStub{}))
	require.NoError(t, a.Plan(context.Background()))
	assert.Contains(t, out.String(), "(1 of 3 runs selected)")
	assert.Contains(t, out.String(), "1 run(s) planned, nothing dispatched.")
}

func TestPlan_ShippedSweeps(t *testing.T) {
	a, out, _ := SetupAppTest(t, Config{Paths: []string{filepath.Join("..", "..", "sweeps")}, JSON: true},
		WithRunner(&trainerStub{}))
	require.NoError(t, a.Plan(context.Background()))

	var planned []report.PlannedRun
	require.NoError(t, json.Unmarshal([]byte(out.String()), &planned))
	names := make([]string, len(planned))
	for i, p := range planned {
		names[i] = p.Name
	}
	assert.Equal(t, []string{
		"pacs_decouple_P_sourcesC%2CS%2CA_seed1",
		"pacs_decouple_A_sourcesC%2CS%2CP_seed1",
		"pacs_decouple_C_sourcesA%2CS%2CP_seed1",
		"pacs_decouple_S_sourcesC%2CA%2CP_seed1",
		"pacs_vae_C_seed4",
		"pacs_vae_C_seed5",
		"pacs_vae_C_seed6",
		"pacs_vae_C_z_dim32_seed4",
		"pacs_vae_C_z_dim128_seed4",
	}, names)
	assert.Contains(t, planned[0].Env, "PYTHONUNBUFFERED=1")
	assert.Contains(t, planned[0].Env, "WANDB_MODE=offline")
}

func TestHistory(t *testing.T) {
	dir, ledgerPath := sweepDir(t)
	a, _, _ := SetupAppTest(t, Config{Paths: []string{dir}, LedgerPath: ledgerPath},
		WithRunner(&trainerStub{exit: failSeed("6")}), WithSweepIDs(sequentialIDs("h")))
	require.Error(t, a.Run(context.Background()))

	t.Run("list", func(t *testing.T) {
		h, out, _ := SetupAppTest(t, Config{LedgerPath: ledgerPath})
		require.NoError(t, h.History(context.Background(), "", 10))
		assert.Contains(t, out.String(), "h-1")
		assert.Contains(t, out.String(), "seeds")
	})

	t.Run("one sweep as json", func(t *testing.T) {
		h, out, _ := SetupAppTest(t, Config{LedgerPath: ledgerPath, JSON: true})
		require.NoError(t, h.History(context.Background(), "h-1", 0))
		var lines []report.RunLine
		require.NoError(t, json.Unmarshal([]byte(out.String()), &lines))
		require.Len(t, lines, 3)
		assert.Equal(t, "failed", lines[2].State)
	})

	t.Run("no ledger", func(t *testing.T) {
		h, _, _ := SetupAppTest(t, Config{})
		assert.ErrorIs(t, h.History(context.Background(), "", 0), sweeperr.ErrConfig)
	})
}

func TestHealthRoutes(t *testing.T) {
	a, _, _ := SetupAppTest(t, Config{})
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	a.board.begin(&orchestrator.Plan{SweepID: "s1", Sweep: "seeds", Runs: make([]*orchestrator.Planned, 3)})
	require.NoError(t, a.board.Record(context.Background(), &run.Result{SweepID: "s1", Name: "pacs_vae_C_seed4", State: run.Succeeded}))
	assert.Error(t, a.board.Record(context.Background(), &run.Result{SweepID: "other"}))

	resp, err = http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status []sweepStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Len(t, status, 1)
	assert.Equal(t, 3, status[0].Planned)
	require.Len(t, status[0].Runs, 1)
	assert.Equal(t, "pacs_vae_C_seed4", status[0].Runs[0].Name)
}
