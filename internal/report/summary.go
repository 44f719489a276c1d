// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
	"github.com/specialistvlad/sweepgrid/internal/run"
)

// RunLine is one run in a summary.
type RunLine struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	ExitCode int    `json:"exit_code"`
	Cause    string `json:"cause,omitempty"`
	Duration string `json:"duration,omitempty"`
	LogPath  string `json:"log_path,omitempty"`
}

// SweepSummary is the outcome of one sweep.
type SweepSummary struct {
	SweepID   string    `json:"sweep_id"`
	Sweep     string    `json:"sweep"`
	Runs      []RunLine `json:"runs"`
	Succeeded []string  `json:"succeeded"`
	Failed    []string  `json:"failed"`
	Skipped   []string  `json:"skipped,omitempty"`
}

// Summary aggregates every sweep of one invocation.
type Summary struct {
	Sweeps    []SweepSummary `json:"sweeps"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Hint      string         `json:"relaunch_hint,omitempty"`
}

// Summarize builds a Summary from sweep outcomes. program is the command name
// used in the relaunch hint; recorded tells whether the outcomes were written
// to a ledger, which --rerun-failed reads back.
func Summarize(program string, outcomes []*orchestrator.Outcome, recorded bool) Summary {
	var s Summary
	var failedNames []string
	var incomplete []SweepSummary
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		sw := SweepSummary{
			SweepID:   o.SweepID,
			Sweep:     o.Sweep,
			Succeeded: nonNil(o.Succeeded()),
			Failed:    nonNil(o.Failed()),
			Skipped:   o.Skipped,
		}
		for _, r := range o.Results {
			sw.Runs = append(sw.Runs, lineOf(r))
		}
		s.Succeeded += len(sw.Succeeded)
		s.Failed += len(sw.Failed)
		s.Skipped += len(sw.Skipped)
		failedNames = append(failedNames, sw.Failed...)
		failedNames = append(failedNames, sw.Skipped...)
		if len(sw.Failed) > 0 || len(sw.Skipped) > 0 {
			incomplete = append(incomplete, sw)
		}
		s.Sweeps = append(s.Sweeps, sw)
	}

	// The ledger only holds terminal runs, so a sweep with skipped runs
	// cannot be relaunched by id without losing them.
	rerunID := ""
	if recorded && len(incomplete) == 1 && len(incomplete[0].Skipped) == 0 {
		rerunID = incomplete[0].SweepID
	}
	s.Hint = relaunchHint(program, failedNames, rerunID)
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func lineOf(r *run.Result) RunLine {
	l := RunLine{
		Name:     r.Name,
		State:    r.State.String(),
		ExitCode: r.ExitCode,
		Cause:    string(r.Cause),
		LogPath:  r.LogPath,
	}
	if d := r.Duration(); d > 0 {
		l.Duration = d.Round(time.Millisecond).String()
	}
	return l
}

// relaunchHint tells the user how to rerun what did not succeed.
func relaunchHint(program string, names []string, rerunID string) string {
	if len(names) == 0 {
		return ""
	}
	hint := fmt.Sprintf("%s run <files> --only %s", program, strings.Join(names, ","))
	if rerunID != "" {
		hint += fmt.Sprintf("\n%s run <files> --rerun-failed %s", program, rerunID)
	}
	return hint
}

// OK reports whether every run succeeded.
func (s Summary) OK() bool { return s.Failed == 0 && s.Skipped == 0 }

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// PlannedRun is one run of a dry-run plan.
type PlannedRun struct {
	SweepID string   `json:"sweep_id,omitempty"`
	Sweep   string   `json:"sweep"`
	Index   int      `json:"index"`
	Name    string   `json:"name"`
	Env     []string `json:"env"`
	Argv    []string `json:"argv"`
}

// PlannedRuns flattens plans into their runs, in dispatch order.
func PlannedRuns(plans []*orchestrator.Plan) []PlannedRun {
	out := []PlannedRun{}
	for _, p := range plans {
		for _, r := range p.Runs {
			out = append(out, PlannedRun{
				SweepID: p.SweepID,
				Sweep:   p.Sweep,
				Index:   r.Config.Index(),
				Name:    r.Config.Name(),
				Env:     r.Binding.Vars(),
				Argv:    r.Argv,
			})
		}
	}
	return out
}

// WritePlanJSON writes the planned runs as indented JSON.
func WritePlanJSON(w io.Writer, plans []*orchestrator.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(PlannedRuns(plans))
}

// Lines converts recorded results into summary lines.
func Lines(results []*run.Result) []RunLine {
	out := make([]RunLine, 0, len(results))
	for _, r := range results {
		out = append(out, lineOf(r))
	}
	return out
}
