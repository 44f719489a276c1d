// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/environment"
	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// Dispatcher runs one planned run to completion. *launcher.Launcher is the
// production implementation.
type Dispatcher interface {
	Argv(cfg *run.Config, binding *environment.Binding) []string
	Dispatch(ctx context.Context, cfg *run.Config, binding *environment.Binding) (*run.Result, error)
}

// Recorder receives every run result once it is terminal.
type Recorder interface {
	Record(ctx context.Context, result *run.Result) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, result *run.Result) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, result *run.Result) error { return f(ctx, result) }

// Recorders fans a result out to several recorders, in order.
func Recorders(rs ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, result *run.Result) error {
		var errs []error
		for _, r := range rs {
			if r == nil {
				continue
			}
			if err := r.Record(ctx, result); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Orchestrator plans sweeps and dispatches their runs.
type Orchestrator struct {
	dispatcher Dispatcher
	recorder   Recorder
	parallel   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets where terminal results are sent.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithParallelDevices runs sweeps with one worker per disjoint device set
// instead of strictly one run at a time.
func WithParallelDevices(enabled bool) Option { return func(o *Orchestrator) { o.parallel = enabled } }

// New returns an Orchestrator dispatching through d.
func New(d Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{dispatcher: d}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run dispatches the plan's runs in emission order. A failing run is recorded
// and the sweep continues. When ctx is cancelled the in-flight run is stopped
// and recorded, no further run starts, and the partial outcome is returned
// with the context's error.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("sweep", plan.Sweep, "sweep_id", plan.SweepID)
	ctx = ctxlog.WithLogger(ctx, logger)

	logger.Info("▶️ Starting sweep.", "runs", len(plan.Runs))

	slots := make([]*run.Result, len(plan.Runs))
	groups := [][]int{indices(len(plan.Runs))}
	if o.parallel {
		groups = deviceGroups(plan.Runs)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var internalErr error
	wg.Add(len(groups))
	logger.Debug("Starting workers.", "workers", len(groups))
	for workerID, group := range groups {
		go func() {
			defer wg.Done()
			if err := o.worker(ctx, plan, group, slots, &mu, workerID); err != nil {
				mu.Lock()
				internalErr = errors.Join(internalErr, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	outcome := newOutcome(plan, slots)
	logger.Info("🏁 Sweep finished.",
		"succeeded", len(outcome.Succeeded()), "failed", len(outcome.Failed()), "skipped", len(outcome.Skipped))

	if internalErr != nil {
		return outcome, internalErr
	}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// worker processes its runs in emission order.
func (o *Orchestrator) worker(ctx context.Context, plan *Plan, group []int, slots []*run.Result, mu *sync.Mutex, workerID int) error {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	for _, i := range group {
		p := plan.Runs[i]
		if ctx.Err() != nil {
			logger.Warn("Context canceled, not starting run.", "run", p.Config.Name())
			continue
		}

		result, err := o.dispatcher.Dispatch(ctx, p.Config, p.Binding)
		if result == nil {
			return fmt.Errorf("dispatch %s: %w", p.Config.Name(), err)
		}
		var failure *sweeperr.TrainerFailure
		if err != nil && !errors.As(err, &failure) {
			return fmt.Errorf("dispatch %s: %w", p.Config.Name(), err)
		}
		result.SweepID = plan.SweepID

		mu.Lock()
		slots[i] = result
		if o.recorder != nil {
			// Results are recorded even when the sweep is being cancelled.
			if err := o.recorder.Record(context.WithoutCancel(ctx), result); err != nil {
				logger.Error("Failed to record run result.", "run", result.Name, "error", err)
			}
		}
		mu.Unlock()
	}
	return nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = i
	}
	return out
}

// deviceGroups partitions runs so that runs sharing any device end up in the
// same group. An unrestricted run shares every device. Each group keeps
// emission order.
func deviceGroups(runs []*Planned) [][]int {
	type group struct {
		all     bool
		devices map[int]struct{}
		runs    []int
	}
	var groups []*group

	overlaps := func(g *group, devices []int, all bool) bool {
		if all {
			return true
		}
		if g.all {
			return len(devices) > 0
		}
		for _, d := range devices {
			if _, ok := g.devices[d]; ok {
				return true
			}
		}
		return false
	}

	for i, r := range runs {
		devices := r.Binding.Devices()
		all := devices == nil

		merged := &group{all: all, devices: make(map[int]struct{}), runs: []int{i}}
		for _, d := range devices {
			merged.devices[d] = struct{}{}
		}
		// Runs that hide every device share one group with each other.
		if !all && len(devices) == 0 {
			merged.devices[-1] = struct{}{}
			devices = []int{-1}
		}

		kept := groups[:0]
		for _, g := range groups {
			if !overlaps(g, devices, all) {
				kept = append(kept, g)
				continue
			}
			merged.all = merged.all || g.all
			for d := range g.devices {
				merged.devices[d] = struct{}{}
			}
			merged.runs = append(merged.runs, g.runs...)
		}
		groups = append(kept, merged)
	}

	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		slices.Sort(g.runs)
		out = append(out, g.runs)
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}
