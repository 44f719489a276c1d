// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/sweepgrid/internal/ledger"
	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
)

// styles are bound to one writer so colour is only emitted to terminals.
type styles struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	bad    lipgloss.Style
	muted  lipgloss.Style
	box    lipgloss.Style
	header lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		bad:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
		box:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1),
		header: r.NewStyle().Bold(true),
	}
}

// WriteText renders the summary for a human.
func WriteText(w io.Writer, s Summary) error {
	st := newStyles(w)

	var blocks []string
	for _, sw := range s.Sweeps {
		lines := []string{st.title.Render(fmt.Sprintf("Sweep %s", sw.Sweep)) + " " + st.muted.Render(sw.SweepID)}
		for _, r := range sw.Runs {
			mark := st.ok.Render("✓")
			if r.State != "succeeded" {
				mark = st.bad.Render("✗")
			}
			detail := r.Duration
			if r.State != "succeeded" {
				detail = fmt.Sprintf("exit %d, %s", r.ExitCode, r.Cause)
				if r.LogPath != "" {
					detail += ", log " + r.LogPath
				}
			}
			lines = append(lines, fmt.Sprintf("%s %s %s", mark, r.Name, st.muted.Render(detail)))
		}
		for _, name := range sw.Skipped {
			lines = append(lines, fmt.Sprintf("%s %s %s", st.muted.Render("-"), name, st.muted.Render("not started")))
		}
		blocks = append(blocks, st.box.Render(strings.Join(lines, "\n")))
	}

	counts := fmt.Sprintf("%s  %s",
		st.ok.Render(fmt.Sprintf("%d succeeded", s.Succeeded)),
		failedStyle(st, s.Failed).Render(fmt.Sprintf("%d failed", s.Failed)))
	if s.Skipped > 0 {
		counts += "  " + st.muted.Render(fmt.Sprintf("%d not started", s.Skipped))
	}
	blocks = append(blocks, counts)
	if s.Hint != "" {
		blocks = append(blocks, st.header.Render("Relaunch with:")+"\n"+s.Hint)
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, blocks...))
	return err
}

func failedStyle(st styles, failed int) lipgloss.Style {
	if failed > 0 {
		return st.bad
	}
	return st.muted
}

// WritePlan prints every planned run with its environment and command line.
func WritePlan(w io.Writer, plans []*orchestrator.Plan) error {
	st := newStyles(w)
	total := 0
	for _, p := range plans {
		header := st.title.Render(fmt.Sprintf("Sweep %s", p.Sweep))
		if len(p.Runs) != p.Total {
			header += " " + st.muted.Render(fmt.Sprintf("(%d of %d runs selected)", len(p.Runs), p.Total))
		}
		if _, err := fmt.Fprintln(w, header); err != nil {
			return err
		}
		for _, r := range p.Runs {
			total++
			env := strings.Join(r.Binding.Vars(), " ")
			if _, err := fmt.Fprintf(w, "  %s %s\n    %s %s\n",
				st.header.Render(fmt.Sprintf("#%d", r.Config.Index())), r.Config.Name(),
				st.muted.Render(env), shellJoin(r.Argv)); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("%d run(s) planned, nothing dispatched.", total)))
	return err
}

// shellJoin quotes arguments that a POSIX shell would split.
func shellJoin(argv []string) string {
	out := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`;&|<>*?()[]{}") {
			out[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
			continue
		}
		out[i] = a
	}
	return strings.Join(out, " ")
}

// WriteHistory lists past sweeps from the ledger.
func WriteHistory(w io.Writer, sweeps []ledger.SweepSummary) error {
	st := newStyles(w)
	if len(sweeps) == 0 {
		_, err := fmt.Fprintln(w, st.muted.Render("No sweeps recorded yet."))
		return err
	}
	if _, err := fmt.Fprintln(w, st.header.Render(fmt.Sprintf("%-36s  %-20s  %-20s  %5s  %5s", "SWEEP ID", "NAME", "STARTED", "OK", "FAIL"))); err != nil {
		return err
	}
	for _, s := range sweeps {
		failed := fmt.Sprintf("%5d", s.Failed)
		if s.Failed > 0 {
			failed = st.bad.Render(failed)
		}
		if _, err := fmt.Fprintf(w, "%-36s  %-20s  %-20s  %5d  %s\n",
			s.ID, s.Name, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Succeeded, failed); err != nil {
			return err
		}
	}
	return nil
}

// WriteRuns lists the recorded runs of one sweep.
func WriteRuns(w io.Writer, sweep *ledger.Sweep, lines []RunLine) error {
	st := newStyles(w)
	if _, err := fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Sweep %s", sweep.Name))+" "+st.muted.Render(sweep.ID)); err != nil {
		return err
	}
	for _, l := range lines {
		mark := st.ok.Render("✓")
		detail := l.Duration
		if l.State != "succeeded" {
			mark = st.bad.Render("✗")
			detail = fmt.Sprintf("exit %d, %s", l.ExitCode, l.Cause)
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", mark, l.Name, st.muted.Render(detail)); err != nil {
			return err
		}
	}
	return nil
}
