package integration_tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/cli"
	"github.com/specialistvlad/sweepgrid/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeSeeds = `
sweep "seeds" {
  protocol = "pacs_decouple"
  axis "seed" { values = [1, 2, 3] }
}
`

func decodeSummary(t *testing.T, out string) report.Summary {
	t.Helper()
	var s report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	return s
}

func TestRelaunch_RerunFailedOnlyRepeatsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// --- Arrange ---
	first := &recorder{exit: failWhen("--seed", "2")}

	// --- Act: the first sweep loses seed 2 ---
	res := runSweep(ctx, t, map[string]string{"main.hcl": pythonTrainer + decoupleProtocol + threeSeeds}, first, "run", "--json")

	// --- Assert ---
	require.Error(t, res.Err)
	assert.Equal(t, cli.ExitTrainerFailure, res.Code)
	assert.Equal(t, []string{"1", "2", "3"}, first.flagValues("--seed"), "a failure does not stop the sweep")

	summary := decodeSummary(t, res.Output)
	require.Len(t, summary.Sweeps, 1)
	assert.Equal(t, []string{"pacs_decouple_P_seed2"}, summary.Sweeps[0].Failed)
	assert.Equal(t, 2, summary.Succeeded)
	sweepID := summary.Sweeps[0].SweepID
	require.NotEmpty(t, sweepID)

	// --- Act: relaunch what failed ---
	second := &recorder{}
	rerun := runIn(ctx, t, res.Dir, second, "run", "--rerun-failed", sweepID, "--json")

	// --- Assert ---
	require.NoError(t, rerun.Err)
	assert.Equal(t, []string{"pacs_decouple_P_seed2"}, second.flagValues("--name"))
	again := decodeSummary(t, rerun.Output)
	require.Len(t, again.Sweeps, 1)
	assert.NotEqual(t, sweepID, again.Sweeps[0].SweepID, "a relaunch is recorded as a new sweep")

	// --- Act: the ledger keeps both ---
	history := runIn(ctx, t, res.Dir, &recorder{}, "history", "--json")

	// --- Assert ---
	require.NoError(t, history.Err)
	assert.Contains(t, history.Output, sweepID)
	assert.Contains(t, history.Output, again.Sweeps[0].SweepID)
}

func TestRelaunch_RerunOfCleanSweepStartsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	res := runSweep(ctx, t, map[string]string{"main.hcl": pythonTrainer + decoupleProtocol + threeSeeds}, &recorder{}, "run", "--json")
	require.NoError(t, res.Err)
	sweepID := decodeSummary(t, res.Output).Sweeps[0].SweepID

	second := &recorder{}
	rerun := runIn(ctx, t, res.Dir, second, "run", "--rerun-failed", sweepID)

	require.NoError(t, rerun.Err)
	assert.Empty(t, second.processes())
}

func TestRelaunch_UnknownSweepID(t *testing.T) {
	t.Parallel()

	trainer := &recorder{}
	res := runSweep(context.Background(), t, map[string]string{"main.hcl": pythonTrainer + decoupleProtocol + threeSeeds},
		trainer, "run", "--rerun-failed", "no-such-sweep")

	require.Error(t, res.Err)
	assert.Equal(t, cli.ExitUsage, res.Code)
	assert.Empty(t, trainer.processes())
}

func TestRelaunch_OnlySelectsRunsByName(t *testing.T) {
	t.Parallel()

	trainer := &recorder{}
	res := runSweep(context.Background(), t, map[string]string{"main.hcl": pythonTrainer + decoupleProtocol + threeSeeds},
		trainer, "run", "--only", "pacs_decouple_P_seed3,pacs_decouple_P_seed1")

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"1", "3"}, trainer.flagValues("--seed"), "declaration order is kept")
}

func TestRelaunch_OnlyWithUnknownName(t *testing.T) {
	t.Parallel()

	trainer := &recorder{}
	res := runSweep(context.Background(), t, map[string]string{"main.hcl": pythonTrainer + decoupleProtocol + threeSeeds},
		trainer, "run", "--only", "pacs_decouple_P_seed9")

	require.Error(t, res.Err)
	assert.Equal(t, cli.ExitUsage, res.Code)
	assert.Contains(t, res.Err.Error(), "no planned run named pacs_decouple_P_seed9")
	assert.Empty(t, trainer.processes())
}
