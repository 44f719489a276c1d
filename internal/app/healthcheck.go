package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/orchestrator"
	"github.com/specialistvlad/sweepgrid/internal/report"
	"github.com/specialistvlad/sweepgrid/internal/run"
)

// statusBoard tracks the sweeps of this invocation for the /runs endpoint. It
// is an orchestrator.Recorder.
type statusBoard struct {
	mu     sync.Mutex
	sweeps []*sweepStatus
}

type sweepStatus struct {
	SweepID string           `json:"sweep_id"`
	Sweep   string           `json:"sweep"`
	Planned int              `json:"planned"`
	Runs    []report.RunLine `json:"runs"`
}

func newStatusBoard() *statusBoard { return &statusBoard{} }

func (b *statusBoard) begin(p *orchestrator.Plan) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweeps = append(b.sweeps, &sweepStatus{SweepID: p.SweepID, Sweep: p.Sweep, Planned: len(p.Runs), Runs: []report.RunLine{}})
}

// Record implements orchestrator.Recorder.
func (b *statusBoard) Record(_ context.Context, r *run.Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sweeps {
		if s.SweepID == r.SweepID {
			s.Runs = append(s.Runs, report.Lines([]*run.Result{r})...)
			return nil
		}
	}
	return fmt.Errorf("status board: unknown sweep %s", r.SweepID)
}

func (b *statusBoard) snapshot() []sweepStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sweepStatus, len(b.sweeps))
	for i, s := range b.sweeps {
		out[i] = *s
		out[i].Runs = append([]report.RunLine(nil), s.Runs...)
	}
	return out
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// runsHandler reports the progress of every sweep started so far.
func (a *App) runsHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Runs endpoint hit.", "remote_addr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.board.snapshot()); err != nil {
		a.logger.Error("Failed to encode run status.", "error", err)
	}
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /runs", a.runsHandler)
	return mux
}

// healthCheckServer initializes and runs the health check HTTP server.
func (a *App) healthCheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	addr := fmt.Sprintf(":%d", a.config.HealthcheckPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	srv := a.httpServer
	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeHealthCheckServer(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down health check server...")
	srv := a.httpServer
	a.httpServer = nil
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("Health check server shut down gracefully.")
	return nil
}
