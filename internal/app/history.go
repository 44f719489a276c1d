package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/sweepgrid/internal/report"
)

// History lists recorded sweeps, newest first, or the runs of one sweep when
// sweepID is set.
func (a *App) History(ctx context.Context, sweepID string, limit int) error {
	ctx = a.withLogger(ctx)
	store, err := a.openLedger(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	if sweepID == "" {
		sweeps, err := store.Sweeps(ctx, limit)
		if err != nil {
			return fmt.Errorf("list sweeps: %w", err)
		}
		if a.config.JSON {
			return a.writeJSON(sweeps)
		}
		return report.WriteHistory(a.outW, sweeps)
	}

	sweep, err := store.LookupSweep(ctx, sweepID)
	if err != nil {
		return err
	}
	results, err := store.Runs(ctx, sweepID)
	if err != nil {
		return fmt.Errorf("list runs of %s: %w", sweepID, err)
	}
	lines := report.Lines(results)
	if a.config.JSON {
		return a.writeJSON(lines)
	}
	return report.WriteRuns(a.outW, sweep, lines)
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
