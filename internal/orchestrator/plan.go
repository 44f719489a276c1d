// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/environment"
	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// Planned is one run, fully resolved and ready to dispatch.
type Planned struct {
	Config  *run.Config
	Binding *environment.Binding
	Argv    []string
}

// Plan is the ordered list of runs of one sweep.
type Plan struct {
	SweepID string
	Sweep   string
	Runs    []*Planned
	// Total is the number of runs before any Only filter.
	Total int
}

// Names returns the run names in emission order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Runs))
	for i, r := range p.Runs {
		names[i] = r.Config.Name()
	}
	return names
}

// PlanOptions tune how a sweep is planned.
type PlanOptions struct {
	SweepID string
	Sweep   string
	// NameAxes restricts which axes appear in run names; nil uses all.
	NameAxes []string
	// Names, when shared between sweeps, enforces unique run names across
	// them. A fresh set is used when nil.
	Names *run.NameSet
}

// NeedsDevices reports whether the grid selects devices per run, in which
// case the sweep binding must know how many devices exist.
func NeedsDevices(g *grid.Grid) bool {
	return slices.Contains(g.Names(), run.DeviceAxis)
}

// Plan expands the grid against the template and binds every run to its
// execution context. Any ConfigError or EnvironmentError aborts planning, so
// nothing is dispatched from a sweep that is partly invalid.
func (o *Orchestrator) Plan(ctx context.Context, g *grid.Grid, tmpl *protocol.Template, binding *environment.Binding, opts PlanOptions) (*Plan, error) {
	logger := ctxlog.FromContext(ctx).With("sweep", opts.Sweep)
	if g == nil || tmpl == nil || binding == nil {
		return nil, &sweeperr.ConfigError{Reason: "sweep has no grid, template or environment"}
	}

	names := opts.Names
	if names == nil {
		names = run.NewNameSet()
	}

	plan := &Plan{SweepID: opts.SweepID, Sweep: opts.Sweep, Runs: make([]*Planned, 0, g.Len())}
	for a := range g.Assignments() {
		name, err := run.Name(tmpl, a, opts.NameAxes)
		if err != nil {
			return nil, err
		}
		cfg, err := run.Build(tmpl, a, name)
		if err != nil {
			return nil, fmt.Errorf("sweep %s, run #%d (%s): %w", opts.Sweep, a.Index, a, err)
		}
		if err := names.Claim(name, fmt.Sprintf("sweep %s run #%d", opts.Sweep, a.Index)); err != nil {
			return nil, err
		}

		b := binding
		if devices := cfg.Devices(); devices != nil {
			if b, err = binding.WithDevices(devices); err != nil {
				return nil, fmt.Errorf("run %s: %w", name, err)
			}
		}
		plan.Runs = append(plan.Runs, &Planned{Config: cfg, Binding: b, Argv: o.dispatcher.Argv(cfg, b)})
		logger.Debug("Run planned.", "run", name, "index", a.Index, "devices", b.DeviceKey())
	}
	plan.Total = len(plan.Runs)

	logger.Info("📋 Sweep planned.", "runs", len(plan.Runs), "mode", g.Mode(), "protocol", tmpl.Identity())
	return plan, nil
}

// SelectOnly keeps only the named runs in each plan. Every name must exist
// in one of the plans.
func SelectOnly(plans []*Plan, only []string) error {
	if len(only) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(only))
	for _, n := range only {
		if n = strings.TrimSpace(n); n != "" {
			wanted[n] = false
		}
	}
	for _, p := range plans {
		kept := p.Runs[:0:0]
		for _, r := range p.Runs {
			if _, ok := wanted[r.Config.Name()]; ok {
				wanted[r.Config.Name()] = true
				kept = append(kept, r)
			}
		}
		p.Runs = kept
	}

	var unknown []string
	for n, found := range wanted {
		if !found {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return sweeperr.Configf("only", "no planned run named %s", strings.Join(unknown, ", "))
	}
	return nil
}
