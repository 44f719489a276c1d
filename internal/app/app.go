package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/environment"
	"github.com/specialistvlad/sweepgrid/internal/launcher"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	errW    io.Writer
	logger  *slog.Logger
	config  *Config
	loaders map[string]config.Loader
	prober  environment.Prober
	runner  launcher.Runner
	newID   func() string
	program string

	board      *statusBoard
	httpServer *http.Server
	logFile    io.Closer
}

// Option customizes an App.
type Option func(*App)

// WithLoaders replaces the built-in sweep file loaders.
func WithLoaders(loaders ...config.Loader) Option {
	return func(a *App) {
		a.loaders = make(map[string]config.Loader)
		for _, l := range loaders {
			for _, ext := range l.Extensions() {
				a.loaders[ext] = l
			}
		}
	}
}

// WithProber replaces nvidia-smi as the source of device availability.
func WithProber(p environment.Prober) Option { return func(a *App) { a.prober = p } }

// WithRunner replaces the process runner used to start the Trainer.
func WithRunner(r launcher.Runner) Option { return func(a *App) { a.runner = r } }

// WithSweepIDs replaces the sweep id generator.
func WithSweepIDs(next func() string) Option { return func(a *App) { a.newID = next } }

// WithProgram sets the command name used in relaunch hints.
func WithProgram(name string) Option { return func(a *App) { a.program = name } }

// NewApp is the constructor for the main application. Reports go to outW;
// logs and untouched Trainer output go to errW. The App owns an isolated
// logger and must be closed.
func NewApp(outW, errW io.Writer, cfg *Config, opts ...Option) *App {
	if errW == nil {
		errW = os.Stderr
	}
	logW, logFile := logWriter(errW, cfg.LogFile)
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)

	a := &App{
		outW:    outW,
		errW:    errW,
		logger:  logger,
		config:  cfg,
		prober:  environment.NvidiaSMIProber{},
		newID:   uuid.NewString,
		program: "sweepgrid",
		board:   newStatusBoard(),
		logFile: logFile,
	}
	WithLoaders(coreLoaders()...)(a)
	for _, opt := range opts {
		opt(a)
	}
	logger.Debug("App configured.", "loaders", len(a.loaders), "paths", cfg.Paths)
	return a
}

// Close releases the log file and stops the health server if it is running.
func (a *App) Close() error {
	var errs []error
	if err := a.closeHealthCheckServer(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
