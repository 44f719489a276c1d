package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/launcher"
	"github.com/specialistvlad/sweepgrid/internal/ledger"
	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
	"github.com/specialistvlad/sweepgrid/internal/report"
	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

func (a *App) newLauncher(model *config.Model) (*launcher.Launcher, error) {
	t := model.Trainer
	trainer := launcher.Trainer{
		Command:   t.Command,
		Args:      t.Args,
		Timeout:   t.Timeout,
		KillGrace: t.KillGrace,
		LogDir:    t.LogDir,
		WorkDir:   t.WorkDir,
	}
	if a.config.Timeout > 0 {
		trainer.Timeout = a.config.Timeout
	}
	opts := []launcher.Option{launcher.WithOutput(a.errW)}
	if a.runner != nil {
		opts = append(opts, launcher.WithRunner(a.runner))
	}
	return launcher.New(trainer, opts...)
}

// buildPlans plans every selected sweep. Run names are unique across all of
// them, and any ConfigError or EnvironmentError stops here, before anything
// is dispatched.
func (a *App) buildPlans(ctx context.Context, model *config.Model, sel *selection, orch *orchestrator.Orchestrator, skipRootCheck bool) ([]*orchestrator.Plan, error) {
	names := run.NewNameSet()
	plans := make([]*orchestrator.Plan, 0, len(sel.sweeps))
	for _, sweep := range sel.sweeps {
		proto, _ := model.Protocol(sweep.Protocol)
		tmpl, err := proto.Template()
		if err != nil {
			return nil, err
		}
		g, err := sweep.Grid()
		if err != nil {
			return nil, err
		}
		binding, err := a.bind(ctx, model, g, skipRootCheck)
		if err != nil {
			return nil, err
		}
		plan, err := orch.Plan(ctx, g, tmpl, binding, orchestrator.PlanOptions{
			SweepID:  a.newID(),
			Sweep:    sweep.Name,
			NameAxes: sweep.NameAxes,
			Names:    names,
		})
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := orchestrator.SelectOnly(plans, sel.only); err != nil {
		return nil, err
	}
	return plans, nil
}

func (a *App) openLedger(ctx context.Context, required bool) (*ledger.Store, error) {
	if a.config.LedgerPath == "" {
		if required {
			return nil, sweeperr.Configf("ledger", "no ledger configured")
		}
		return nil, nil
	}
	return ledger.Open(ctx, a.config.LedgerPath)
}

// Run loads the sweep files, plans every selected sweep, dispatches the runs
// and prints the summary. The returned error wraps sweeperr.ErrTrainer when
// any run failed, or the context's error when the sweep was interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	model, err := a.loadModel(ctx)
	if err != nil {
		return err
	}
	store, err := a.openLedger(ctx, a.config.RerunFailed != "")
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	sel, err := a.selectSweeps(ctx, model, store)
	if err != nil {
		return err
	}
	if sel.empty {
		a.logger.Info("Nothing to relaunch: the sweep had no failed runs.", "sweep_id", a.config.RerunFailed)
		return a.writeSummary(report.Summarize(a.program, nil, store != nil))
	}

	lnch, err := a.newLauncher(model)
	if err != nil {
		return err
	}
	recorders := []orchestrator.Recorder{a.board}
	if store != nil {
		recorders = append(recorders, store)
	}
	orch := orchestrator.New(lnch,
		orchestrator.WithRecorder(orchestrator.Recorders(recorders...)),
		orchestrator.WithParallelDevices(a.parallelDevices(model)),
	)

	plans, err := a.buildPlans(ctx, model, sel, orch, false)
	if err != nil {
		return err
	}

	if a.config.HealthcheckPort > 0 {
		a.healthCheckServer(ctx)
		defer a.closeHealthCheckServer(ctx)
	}

	outcomes, runErr := a.dispatch(ctx, model, orch, store, plans)
	summary := report.Summarize(a.program, outcomes, store != nil)
	if err := a.writeSummary(summary); err != nil {
		return err
	}

	a.logger.Debug("App.Run method finished.")
	switch {
	case runErr != nil:
		return runErr
	case summary.Failed > 0:
		return fmt.Errorf("%d run(s) failed: %w", summary.Failed, sweeperr.ErrTrainer)
	}
	return nil
}

// dispatch runs the plans in declaration order. After an interruption the
// remaining sweeps are reported as not started.
func (a *App) dispatch(ctx context.Context, model *config.Model, orch *orchestrator.Orchestrator, store *ledger.Store, plans []*orchestrator.Plan) ([]*orchestrator.Outcome, error) {
	var outcomes []*orchestrator.Outcome
	for i, plan := range plans {
		if len(plan.Runs) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return append(outcomes, notStarted(plans[i:])...), fmt.Errorf("sweep interrupted: %w", err)
		}

		if store != nil {
			source := ""
			if s, ok := model.Sweep(plan.Sweep); ok {
				source = s.Source
			}
			if err := store.BeginSweep(ctx, ledger.Sweep{ID: plan.SweepID, Name: plan.Sweep, Source: source, StartedAt: time.Now()}); err != nil {
				return outcomes, fmt.Errorf("record sweep %s: %w", plan.Sweep, err)
			}
		}
		a.board.begin(plan)

		outcome, err := orch.Run(ctx, plan)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return append(outcomes, notStarted(plans[i+1:])...), fmt.Errorf("sweep interrupted: %w", err)
			}
			return outcomes, err
		}
	}
	return outcomes, nil
}

func notStarted(plans []*orchestrator.Plan) []*orchestrator.Outcome {
	var out []*orchestrator.Outcome
	for _, p := range plans {
		if len(p.Runs) > 0 {
			out = append(out, &orchestrator.Outcome{SweepID: p.SweepID, Sweep: p.Sweep, Skipped: p.Names()})
		}
	}
	return out
}

func (a *App) writeSummary(s report.Summary) error {
	if a.config.JSON {
		return report.WriteJSON(a.outW, s)
	}
	return report.WriteText(a.outW, s)
}

// Plan prints what Run would dispatch without starting anything. The dataset
// root does not need to exist on this machine.
func (a *App) Plan(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)

	model, err := a.loadModel(ctx)
	if err != nil {
		return err
	}
	var store *ledger.Store
	if a.config.RerunFailed != "" {
		if store, err = a.openLedger(ctx, true); err != nil {
			return err
		}
		defer store.Close()
	}
	sel, err := a.selectSweeps(ctx, model, store)
	if err != nil {
		return err
	}
	lnch, err := a.newLauncher(model)
	if err != nil {
		return err
	}
	plans, err := a.buildPlans(ctx, model, sel, orchestrator.New(lnch), true)
	if err != nil {
		return err
	}
	if sel.empty {
		plans = nil
	}
	logger.Debug("Plan built.", "sweeps", len(plans))

	if a.config.JSON {
		return report.WritePlanJSON(a.outW, plans)
	}
	return report.WritePlan(a.outW, plans)
}
