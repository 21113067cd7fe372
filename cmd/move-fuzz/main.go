package main

import (
	"context"
	"fmt"
	"movefuzz/config"
	"movefuzz/internal/cli"
	"movefuzz/internal/crash"
	"movefuzz/internal/fuzz"
	"movefuzz/internal/plan"
	"movefuzz/internal/process"
	"movefuzz/pkg/database"
	"movefuzz/pkg/logger"
	"movefuzz/pkg/mq"
	"movefuzz/pkg/telemetry"
	"movefuzz/pkg/watchdog"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var command *cli.CLI
	var log *zap.Logger
	app := fx.New(
		fx.Provide(
			config.LoadConfig,           // inject config
			database.NewDBConnection,    // inject db connection
			database.NewRedisClient,     // inject redis client
			logger.NewLogger,            // inject logger
			mq.NewRabbitMQ,              // inject rabbitmq service
			telemetry.NewTelemetry,      // inject telemetry
			telemetry.NewTracerFactory,  // inject telemetry tracer factory
			watchdog.NewWatchDogFactory, // inject watchdog factory
			crash.NewCrashManager,       // inject crash manager
			plan.NewCompiler,            // inject build plan compiler
			fx.Annotate(process.NewExecRunner, fx.As(new(process.Runner))),
			fx.Annotate(fuzz.NewOrchestrator, fx.As(new(cli.Executor))),
			cli.NewCLI,
		),
		fx.Populate(&command, &log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to start: %v\n", cli.ProgramName, err)
		return 1
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			log.Warn("failed to stop cleanly", zap.Error(err))
		}
		log.Sync()
	}()

	_, err := command.Run(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cli.ProgramName, err)
	}
	return cli.ExitCode(err)
}
