package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/hclext"
	"github.com/specialistvlad/droidbuild/internal/pipeline"
	"github.com/specialistvlad/droidbuild/internal/runner"
)

// App is one configured build: resolved context plus task graph.
type App struct {
	ctx    context.Context
	logger *slog.Logger
	config *Config

	bc    *buildctx.Context
	graph *dag.Graph

	board      *statusBoard
	httpServer *http.Server
}

// New resolves the build context and assembles the task graph. Log output
// goes to logW. Configuration and graph errors are returned unwrapped enough
// for errors.Is/As to classify them.
func New(ctx context.Context, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	bc, err := buildctx.Load(ctx, buildctx.Options{
		ProjectDir: cfg.ProjectDir,
		Overrides:  cfg.Overrides,
		Executor:   cfg.Executor,
	})
	if err != nil {
		return nil, err
	}

	graph, err := pipeline.New(pipeline.Options{Proguard: bc.Proguard.Enabled})
	if err != nil {
		return nil, err
	}

	defs, err := hclext.LoadProject(ctx, bc.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions: %w", err)
	}
	if err := hclext.Register(graph, defs); err != nil {
		return nil, fmt.Errorf("failed to register extensions: %w", err)
	}
	logger.Debug("Task graph built.", "tasks", graph.Len(), "extensions", len(defs))

	return &App{
		ctx:    ctx,
		logger: logger,
		config: cfg,
		bc:     bc,
		graph:  graph,
		board:  newStatusBoard(graph),
	}, nil
}

// Graph returns the task graph.
func (a *App) Graph() *dag.Graph {
	return a.graph
}

// BuildContext returns the resolved build context.
func (a *App) BuildContext() *buildctx.Context {
	return a.bc
}

// Run builds the targets. The status server, if configured, serves task
// statuses for the duration of the run.
func (a *App) Run(ctx context.Context, targets ...string) (*runner.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "targets", targets)

	if a.config.StatusPort > 0 {
		a.startStatusServer(a.config.StatusPort)
		defer func() {
			_ = a.closeStatusServer()
		}()
	}

	r := runner.New(runner.Options{
		FailFast: a.config.FailFast,
		Observer: a.board,
	})
	report, err := r.Run(ctx, a.graph, a.bc, targets...)
	a.logger.Debug("App.Run method finished.")
	return report, err
}

// List writes the tasks that would run for targets, in execution order. With
// no targets it lists every task with its description.
func (a *App) List(w io.Writer, targets ...string) error {
	if len(targets) == 0 {
		for _, line := range pipeline.Describe(a.graph) {
			fmt.Fprintln(w, line)
		}
		return nil
	}

	order, err := a.graph.Closure(targets...)
	if err != nil {
		return err
	}
	for i, name := range order {
		fmt.Fprintf(w, "%d. %s\n", i+1, name)
	}
	return nil
}
