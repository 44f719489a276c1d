// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package orchestrator

import "github.com/specialistvlad/sweepgrid/internal/run"

// Outcome is what a sweep produced. Results are in emission order and hold
// only runs that were dispatched; Skipped names the runs that never started
// because the sweep was cancelled.
type Outcome struct {
	SweepID string
	Sweep   string
	Results []*run.Result
	Skipped []string
}

func newOutcome(plan *Plan, slots []*run.Result) *Outcome {
	o := &Outcome{SweepID: plan.SweepID, Sweep: plan.Sweep}
	for i, r := range slots {
		if r == nil {
			o.Skipped = append(o.Skipped, plan.Runs[i].Config.Name())
			continue
		}
		o.Results = append(o.Results, r)
	}
	return o
}

func (o *Outcome) names(state run.State) []string {
	var out []string
	for _, r := range o.Results {
		if r.State == state {
			out = append(out, r.Name)
		}
	}
	return out
}

// Succeeded lists the runs that exited zero.
func (o *Outcome) Succeeded() []string { return o.names(run.Succeeded) }

// Failed lists the runs that ended in a TrainerFailure.
func (o *Outcome) Failed() []string { return o.names(run.Failed) }

// OK reports whether every planned run was dispatched and succeeded.
func (o *Outcome) OK() bool {
	return len(o.Skipped) == 0 && len(o.Failed()) == 0
}
