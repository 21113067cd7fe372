package fuzz

import (
	"errors"
	"movefuzz/internal/crash"
	"movefuzz/internal/options"
	"movefuzz/internal/plan"
	"movefuzz/internal/process"
	"syscall"
)

// Command is one top-level operation handed to Orchestrator.Execute.
type Command interface {
	Name() string
}

// Common carries what every target-building command needs.
type Common struct {
	Options options.BuildOptions
	FuzzDir options.FuzzDir
	Target  string
}

// Build compiles Target, or every target when Target is empty.
type Build struct{ Common }

// Check type-checks Target, or every target when Target is empty.
type Check struct{ Common }

// Run builds Target and fuzzes it.
type Run struct {
	Common
	Corpus []string // defaults to corpus/<target>
	Jobs   int      // 0 uses the configured default
	Args   []string // passed to libFuzzer verbatim
}

// Cmin minimizes a corpus in place, keeping the previous one as a backup.
type Cmin struct {
	Common
	Corpus string // defaults to corpus/<target>
	Args   []string
}

// Tmin minimizes a single crashing input.
type Tmin struct {
	Common
	Runs     int // 0 means 255
	TestCase string
	Args     []string
}

// Coverage replays the corpus with coverage instrumentation and merges the
// raw profiles into coverage/<target>/coverage.profdata.
type Coverage struct {
	Common
	LLVMPath string // overrides the configured llvm-profdata directory
	Corpus   []string
	Args     []string
}

// Fmt prints an input as the target sees it.
type Fmt struct {
	Common
	Input string
}

// List prints the targets of the workspace.
type List struct {
	FuzzDir options.FuzzDir
}

func (Build) Name() string    { return "build" }
func (Check) Name() string    { return "check" }
func (Run) Name() string      { return "run" }
func (Cmin) Name() string     { return "cmin" }
func (Tmin) Name() string     { return "tmin" }
func (Coverage) Name() string { return "coverage" }
func (Fmt) Name() string      { return "fmt" }
func (List) Name() string     { return "list" }

type State int

const (
	Idle State = iota
	PlanCompiled
	Invoked
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PlanCompiled:
		return "plan-compiled"
	case Invoked:
		return "invoked"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Invocation records the progress of one Execute call.
//
// A configuration conflict, a missing workspace or an unknown target moves it
// from Idle straight to Failed, with no steps compiled and nothing spawned.
type Invocation struct {
	Command string
	Target  string
	State   State

	Steps   []plan.Command // compiled subprocesses, in spawn order
	Spawned int

	// set when a subprocess failed
	ExitCode int
	Signal   syscall.Signal
	Err      error

	Crashes []*crash.Report
	Output  string // minimized input, merged profile or corpus backup
}

func (inv *Invocation) compiled(steps ...plan.Command) {
	inv.Steps = append(inv.Steps, steps...)
	if inv.State == Idle {
		inv.State = PlanCompiled
	}
}

func (inv *Invocation) invoked() {
	inv.Spawned++
	inv.State = Invoked
}

func (inv *Invocation) finish(err error) {
	if err == nil {
		inv.State = Succeeded
		return
	}
	inv.State = Failed
	inv.Err = err
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		inv.ExitCode = exitErr.Code
		inv.Signal = exitErr.Signal
	}
}
