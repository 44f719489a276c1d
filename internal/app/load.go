package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/environment"
	"github.com/specialistvlad/sweepgrid/internal/fsutil"
	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/ledger"
	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

func (a *App) extensions() []string {
	exts := make([]string, 0, len(a.loaders))
	for ext := range a.loaders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// loadModel finds every sweep file under the configured paths and loads them
// in order, each through the loader registered for its extension.
func (a *App) loadModel(ctx context.Context) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	if len(a.config.Paths) == 0 {
		return nil, &sweeperr.ConfigError{Field: "path", Reason: "no sweep file given"}
	}

	files, err := fsutil.FindFiles(a.config.Paths, a.extensions()...)
	if err != nil {
		return nil, &sweeperr.ConfigError{Field: "path", Reason: err.Error()}
	}
	if len(files) == 0 {
		return nil, sweeperr.Configf("path", "no %s files found in %s",
			strings.Join(a.extensions(), ", "), strings.Join(a.config.Paths, ", "))
	}
	logger.Debug("Sweep files found.", "files", files)

	model := &config.Model{}
	for _, file := range files {
		loader := a.loaders[strings.ToLower(filepath.Ext(file))]
		part, err := loader.Load(ctx, file)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, err
		}
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Info("Sweep files loaded.", "files", len(files), "protocols", len(model.Protocols), "sweeps", len(model.Sweeps))
	return model, nil
}

// selection is what one invocation will plan.
type selection struct {
	sweeps []*config.Sweep
	only   []string
	// empty is set when a rerun finds nothing to relaunch.
	empty bool
}

func (a *App) selectSweeps(ctx context.Context, model *config.Model, store *ledger.Store) (*selection, error) {
	if id := a.config.RerunFailed; id != "" {
		prev, err := store.LookupSweep(ctx, id)
		if err != nil {
			return nil, err
		}
		failed, err := store.Failed(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read failed runs of %s: %w", id, err)
		}
		sweep, ok := model.Sweep(prev.Name)
		if !ok {
			return nil, sweeperr.Configf("rerun-failed", "sweep %q of %s is not declared in the given files", prev.Name, id)
		}
		ctxlog.FromContext(ctx).Info("Relaunching failed runs.", "sweep", prev.Name, "previous_sweep_id", id, "runs", len(failed))
		return &selection{sweeps: []*config.Sweep{sweep}, only: failed, empty: len(failed) == 0}, nil
	}

	sel := &selection{only: a.config.Only}
	if len(a.config.Sweeps) == 0 {
		sel.sweeps = model.Sweeps
		return sel, nil
	}
	for _, s := range model.Sweeps {
		if slices.Contains(a.config.Sweeps, s.Name) {
			sel.sweeps = append(sel.sweeps, s)
		}
	}
	for _, name := range a.config.Sweeps {
		if _, ok := model.Sweep(name); !ok {
			return nil, sweeperr.Configf("sweep", "no sweep named %q", name)
		}
	}
	return sel, nil
}

// bind resolves the execution context of one sweep. Command-line overrides
// win over the environment block.
func (a *App) bind(ctx context.Context, model *config.Model, g *grid.Grid, skipRootCheck bool) (*environment.Binding, error) {
	policy := environment.Policy{
		ProbeDevices:  orchestrator.NeedsDevices(g),
		SkipRootCheck: skipRootCheck,
	}
	if env := model.Environment; env != nil {
		policy.Tracking = env.Tracking
		policy.Devices = env.Devices
		policy.DatasetRoot = env.DatasetRoot
		policy.DeviceCount = env.DeviceCount
		policy.DeviceVar = env.DeviceVar
		policy.TrackingVar = env.TrackingVar
	}
	if model.Trainer != nil {
		policy.Extra = model.Trainer.Env
	}

	c := a.config
	if c.Tracking != "" {
		policy.Tracking = c.Tracking
	}
	if c.Devices != nil {
		policy.Devices = c.Devices
	}
	if c.DatasetRoot != "" {
		policy.DatasetRoot = c.DatasetRoot
	}
	if c.DeviceCount != nil {
		policy.DeviceCount = c.DeviceCount
	}
	return environment.Resolve(ctx, policy, a.prober)
}

func (a *App) parallelDevices(model *config.Model) bool {
	if a.config.ParallelDevices {
		return true
	}
	return model.Environment != nil && model.Environment.ParallelDevices
}
