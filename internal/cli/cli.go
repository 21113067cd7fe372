package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"movefuzz/internal/fuzz"
	"movefuzz/internal/options"
	"movefuzz/internal/process"
	"os"
	"slices"
	"strings"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

const ProgramName = "move-fuzz"

// Executor runs parsed commands, see fuzz.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, cmd fuzz.Command) (*fuzz.Invocation, error)
}

type CLI struct {
	Stdout io.Writer

	executor Executor
	logger   *zap.Logger

	// per Run
	ctx        context.Context
	engineArgs []string
	invocation *fuzz.Invocation
}

func NewCLI(executor Executor, logger *zap.Logger) *CLI {
	return &CLI{
		Stdout:   os.Stdout,
		executor: executor,
		logger:   logger.Named("cli"),
	}
}

// Run parses args (without the program name) and executes the selected
// command. Arguments after the first "--" go to the fuzzing engine verbatim.
func (c *CLI) Run(ctx context.Context, args []string) (*fuzz.Invocation, error) {
	c.ctx = ctx
	c.invocation = nil
	args, c.engineArgs = splitEngineArgs(args)

	parser := c.parser()
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(c.Stdout, flagsErr.Message)
			return nil, nil
		}
		return c.invocation, err
	}
	return c.invocation, nil
}

func splitEngineArgs(args []string) (own, engine []string) {
	i := slices.Index(args, "--")
	if i < 0 {
		return args, nil
	}
	return args[:i], args[i+1:]
}

func (c *CLI) parser() *flags.Parser {
	parser := flags.NewNamedParser(ProgramName, flags.HelpFlag)
	parser.ShortDescription = "Fuzz Move scripts with libFuzzer"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"build", "Build fuzz targets", "Build one fuzz target, or all of them when none is named.", &buildCommand{cli: c}},
		{"check", "Type-check fuzz targets", "Type-check one fuzz target, or all of them when none is named.", &checkCommand{cli: c}},
		{"run", "Run a fuzz target", "Build and fuzz a target. Arguments after -- are passed to libFuzzer.", &runCommand{cli: c}},
		{"cmin", "Minimize a corpus", "Minimize the corpus of a target. The previous corpus is kept next to it.", &cminCommand{cli: c}},
		{"tmin", "Minimize a test case", "Minimize a crashing input of a target.", &tminCommand{cli: c}},
		{"coverage", "Collect coverage", "Replay the corpus with coverage instrumentation and merge the profiles.", &coverageCommand{cli: c}},
		{"fmt", "Print an input", "Print an input as the target decodes it.", &fmtCommand{cli: c}},
		{"list", "List fuzz targets", "List the fuzz targets of the workspace.", &listCommand{cli: c}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, cmd.long, cmd.data); err != nil {
			// command structs are static, a failure here is a programming error
			panic(err)
		}
	}
	return parser
}

func (c *CLI) execute(cmd fuzz.Command) error {
	c.logger.Debug("executing command", zap.String("command", cmd.Name()))
	inv, err := c.executor.Execute(c.ctx, cmd)
	c.invocation = inv
	return err
}

func common(opts options.BuildOptions, dir options.FuzzDir, target string) fuzz.Common {
	return fuzz.Common{Options: opts, FuzzDir: dir, Target: target}
}

func noExtraArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

// ExitCode maps a Run error to the process exit status: the child's own status
// for subprocess failures, 128+signal for signalled children, 2 for usage
// errors and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Signal != 0 {
			return 128 + int(exitErr.Signal)
		}
		if exitErr.Code > 0 {
			return exitErr.Code
		}
		return 1
	}
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		return 2
	}
	return 1
}
