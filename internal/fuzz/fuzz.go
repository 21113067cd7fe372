package fuzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"movefuzz/config"
	"movefuzz/internal/crash"
	"movefuzz/internal/options"
	"movefuzz/internal/plan"
	"movefuzz/internal/process"
	"movefuzz/internal/project"
	"movefuzz/pkg/telemetry"
	"movefuzz/pkg/watchdog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Orchestrator turns commands into compiled plans and runs them.
type Orchestrator struct {
	Stdout io.Writer
	Stderr io.Writer
	Cwd    string // workspace discovery starts here; empty means the process cwd

	logger        *zap.Logger
	appConfig     *config.AppConfig
	compiler      *plan.Compiler
	runner        process.Runner
	crashManager  *crash.CrashManager
	watchDogFac   *watchdog.WatchDogFactory
	tracerFactory *telemetry.TracerFactory
}

type OrchestratorParams struct {
	fx.In

	AppConfig     *config.AppConfig
	Logger        *zap.Logger
	Compiler      *plan.Compiler
	Runner        process.Runner
	CrashManager  *crash.CrashManager
	WatchDogFac   *watchdog.WatchDogFactory
	TracerFactory *telemetry.TracerFactory
}

func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	return &Orchestrator{
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		logger:        params.Logger.Named("fuzz"),
		appConfig:     params.AppConfig,
		compiler:      params.Compiler,
		runner:        params.Runner,
		crashManager:  params.CrashManager,
		watchDogFac:   params.WatchDogFac,
		tracerFactory: params.TracerFactory,
	}
}

// Execute runs cmd to completion. The returned invocation is never nil and
// ends in Succeeded or Failed; on failure the error is also returned.
func (o *Orchestrator) Execute(ctx context.Context, cmd Command) (*Invocation, error) {
	inv := &Invocation{Command: cmd.Name()}

	span := fmt.Sprintf("move-fuzz %s", cmd.Name())
	tracer := o.tracerFactory.NewTracerSpawnedFrom(ctx, o.appConfig.TraceContext, span)
	tracer.Start()
	defer tracer.End()
	ctx = context.WithValue(ctx, telemetry.TracerKey{}, tracer)

	var err error
	switch c := cmd.(type) {
	case Build:
		err = o.build(ctx, inv, options.Build, c.Common)
	case Check:
		err = o.build(ctx, inv, options.Check, c.Common)
	case Run:
		err = o.run(ctx, inv, c)
	case Cmin:
		err = o.cmin(ctx, inv, c)
	case Tmin:
		err = o.tmin(ctx, inv, c)
	case Coverage:
		err = o.coverage(ctx, inv, c)
	case Fmt:
		err = o.format(ctx, inv, c)
	case List:
		err = o.list(ctx, c)
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}
	inv.finish(err)

	if err != nil {
		tracer.SetStatus(codes.Error, err.Error())
		o.logger.Debug("command failed",
			zap.String("command", inv.Command),
			zap.String("target", inv.Target),
			zap.Stringer("state", inv.State),
			zap.Error(err))
		return inv, err
	}
	tracer.SetStatus(codes.Ok, "")
	o.logger.Debug("command succeeded", zap.String("command", inv.Command), zap.Int("spawned", inv.Spawned))
	return inv, nil
}

// prepare validates the options and resolves the workspace. A non-empty
// target must be declared by the workspace; requireTarget rejects an empty one.
func (o *Orchestrator) prepare(ctx context.Context, inv *Invocation, category telemetry.ActionCategory, c Common, requireTarget bool) (*project.Project, options.BuildOptions, error) {
	opts := c.Options
	opts.Resolve(o.compiler.HostTriple)
	inv.Target = c.Target

	telemetry.FromContext(ctx).WithAttributes(
		telemetry.NewSpanAttributes(category).
			WithTarget(c.Target).
			WithSanitizer(opts.Cargo.Sanitizer.String()).
			WithTriple(opts.Cargo.Triple),
	)

	if err := opts.Validate(); err != nil {
		return nil, opts, err
	}
	p, err := o.locate(c.FuzzDir)
	if err != nil {
		return nil, opts, err
	}
	if requireTarget && c.Target == "" {
		return nil, opts, fmt.Errorf("%w: no target given", project.ErrUnknownTarget)
	}
	if c.Target != "" {
		if err := p.Require(c.Target); err != nil {
			return nil, opts, err
		}
	}
	return p, opts, nil
}

func (o *Orchestrator) locate(fuzzDir options.FuzzDir) (*project.Project, error) {
	if !fuzzDir.IsSet() && o.appConfig.FuzzDir != "" {
		fuzzDir = options.ParseFuzzDir(o.appConfig.FuzzDir)
	}
	cwd := o.Cwd
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return project.Locate(fuzzDir, cwd)
}

// target prepares the artifacts directory and describes the built binary.
func (o *Orchestrator) target(p *project.Project, opts options.BuildOptions, name string) (plan.Target, error) {
	artifacts, err := p.ArtifactsDir(name)
	if err != nil {
		return plan.Target{}, err
	}
	return plan.Target{Options: opts, Project: p, Name: name, Artifacts: artifacts}, nil
}

// corpus returns dirs, or the default corpus directory of target when empty.
func (o *Orchestrator) corpus(p *project.Project, target string, dirs []string) ([]string, error) {
	if len(dirs) > 0 {
		return dirs, nil
	}
	dir, err := p.CorpusDir(target)
	if err != nil {
		return nil, err
	}
	return []string{dir}, nil
}

// spawn runs a compiled step under its own span.
func (o *Orchestrator) spawn(ctx context.Context, inv *Invocation, cmd plan.Command, stdout, stderr io.Writer) error {
	stepTracer := telemetry.FromContext(ctx).Spawn(filepath.Base(cmd.Program))
	stepTracer.Start()
	defer stepTracer.End()
	stepTracer.AddEvent("spawned", telemetry.NewEventAttributes(map[string]string{
		"command": cmd.String(),
	}))

	inv.invoked()
	err := o.runner.Run(ctx, cmd, stdout, stderr)

	var exitErr *process.ExitError
	switch {
	case err == nil:
		stepTracer.WithAttributes(telemetry.EmptySpanAttributes().WithExitCode(0))
	case errors.As(err, &exitErr):
		stepTracer.WithAttributes(telemetry.EmptySpanAttributes().WithExitCode(exitErr.Code))
		stepTracer.SetStatus(codes.Error, err.Error())
	default:
		stepTracer.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) build(ctx context.Context, inv *Invocation, mode options.BuildMode, c Common) error {
	p, opts, err := o.prepare(ctx, inv, telemetry.Building, c, false)
	if err != nil {
		return err
	}
	cmd, err := o.compiler.Cargo(mode, opts, p, c.Target)
	if err != nil {
		return err
	}
	inv.compiled(cmd)

	o.logger.Info("building fuzz targets",
		zap.Stringer("mode", mode),
		zap.String("target", c.Target),
		zap.Strings("options", opts.Args(o.compiler.HostTriple)))
	return o.spawn(ctx, inv, cmd, o.Stdout, o.Stderr)
}

func (o *Orchestrator) list(ctx context.Context, c List) error {
	telemetry.FromContext(ctx).WithAttributes(telemetry.NewSpanAttributes(telemetry.Inspecting))
	p, err := o.locate(c.FuzzDir)
	if err != nil {
		return err
	}
	targets, err := p.Targets()
	if err != nil {
		return err
	}
	for _, target := range targets {
		fmt.Fprintln(o.Stdout, target)
	}
	return nil
}
