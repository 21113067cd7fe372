package fuzz

import (
	"bytes"
	"context"
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
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testHost = "x86_64-unknown-linux-gnu"

// fakeRunner records every spawn. engine handles commands that are not cargo.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []plan.Command
	cargo  error
	engine func(cmd plan.Command, stderr io.Writer) error
}

func (r *fakeRunner) Run(ctx context.Context, cmd plan.Command, stdout, stderr io.Writer) error {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if cmd.Program == "cargo" {
		return r.cargo
	}
	if r.engine != nil {
		return r.engine(cmd, stderr)
	}
	return nil
}

func (r *fakeRunner) spawned() []plan.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]plan.Command(nil), r.calls...)
}

// newWorkspace creates <root>/fuzz with the targets a and b.
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	targets := filepath.Join(root, project.DefaultFuzzDir, project.TargetsDir)
	require.NoError(t, os.MkdirAll(targets, 0755))
	for _, name := range []string{"a", "b"} {
		require.NoError(t, os.WriteFile(filepath.Join(targets, name+".rs"), nil, 0644))
	}
	return root
}

func newTestOrchestrator(t *testing.T, root string, runner process.Runner) (*Orchestrator, *bytes.Buffer) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	o := NewOrchestrator(OrchestratorParams{
		AppConfig:     &config.AppConfig{DefaultJobs: 1},
		Logger:        logger,
		Compiler:      &plan.Compiler{HostTriple: testHost, CargoPath: "cargo"},
		Runner:        runner,
		CrashManager:  crash.NewCrashManagerWithSinks(logger),
		WatchDogFac:   watchdog.NewWatchDogFactory(logger),
		TracerFactory: telemetry.NewTracerFactory(telemetry.TracerFactoryParams{}),
	})
	stdout := &bytes.Buffer{}
	o.Stdout = stdout
	o.Stderr = io.Discard
	o.Cwd = root
	return o, stdout
}

func common(target string) Common {
	return Common{Options: options.Default(testHost), Target: target}
}

func flagValue(args []string, prefix string) string {
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, prefix); ok {
			return v
		}
	}
	return ""
}

func TestBuildEndToEnd(t *testing.T) {
	root := newWorkspace(t)
	c := common("a")
	c.Options.Cargo.Sanitizer = options.None
	c.Options.Cargo.Release = true

	rendered := c.Options.Args(testHost)
	assert.Contains(t, rendered, "--sanitizer=none")
	assert.Contains(t, rendered, "--release")
	assert.NotContains(t, rendered, "--sanitizer=address")

	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Build{c})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)
	assert.Equal(t, "a", inv.Target)

	calls := runner.spawned()
	require.Len(t, calls, 1)
	assert.Equal(t, "build", calls[0].Args[0])
	assert.Contains(t, calls[0].Args, "--release")
	assert.Equal(t, []string{"--bin", "a"}, calls[0].Args[len(calls[0].Args)-2:])
	assert.NotContains(t, calls[0].Getenv("RUSTFLAGS"), "-Zsanitizer")

	runner = &fakeRunner{cargo: &process.ExitError{Command: "cargo build", Code: 101}}
	o, _ = newTestOrchestrator(t, root, runner)
	inv, err = o.Execute(context.Background(), Build{c})
	require.ErrorIs(t, err, process.ErrSubprocessFailure)
	assert.Equal(t, Failed, inv.State)
	assert.Equal(t, 101, inv.ExitCode)
	assert.Equal(t, syscall.Signal(0), inv.Signal)
	assert.Equal(t, 1, inv.Spawned)
}

func TestCheckAllTargets(t *testing.T) {
	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
	inv, err := o.Execute(context.Background(), Check{common("")})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)

	calls := runner.spawned()
	require.Len(t, calls, 1)
	assert.Equal(t, "check", calls[0].Args[0])
	assert.NotContains(t, calls[0].Args, "--bin")
}

func TestConfigurationConflictSpawnsNothing(t *testing.T) {
	buildStd := common("a")
	buildStd.Options.Cargo.BuildStd = true
	careful := common("a")
	careful.Options.Cargo.CarefulMode = true
	covered := common("a")
	covered.Options.Cargo.Coverage = true
	covered.Options.Cargo.BuildStd = true
	devRelease := common("a")
	devRelease.Options.Dev = true
	devRelease.Options.Cargo.Release = true

	tests := []struct {
		name string
		cmd  Command
	}{
		{"coverage with build-std", Coverage{Common: buildStd}},
		{"coverage with careful", Coverage{Common: careful}},
		{"build with coverage and build-std", Build{covered}},
		{"run with coverage and build-std", Run{Common: covered}},
		{"tmin with coverage and build-std", Tmin{Common: covered, TestCase: "x"}},
		{"build with dev and release", Build{devRelease}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			runner := &fakeRunner{}
			o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
			inv, err := o.Execute(context.Background(), test.cmd)
			require.ErrorIs(t, err, options.ErrConfigurationConflict)
			assert.Equal(t, Failed, inv.State)
			assert.Empty(t, inv.Steps)
			assert.Zero(t, inv.Spawned)
			assert.Empty(t, runner.spawned())
		})
	}
}

func TestUnresolvedWorkspaceOrTarget(t *testing.T) {
	root := newWorkspace(t)

	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Build{common("c")})
	require.ErrorIs(t, err, project.ErrUnknownTarget)
	assert.Equal(t, Failed, inv.State)

	_, err = o.Execute(context.Background(), Run{Common: common("")})
	require.ErrorIs(t, err, project.ErrUnknownTarget)

	missing := common("a")
	missing.FuzzDir = options.ParseFuzzDir(t.TempDir())
	_, err = o.Execute(context.Background(), Build{missing})
	require.ErrorIs(t, err, project.ErrWorkspaceNotFound)

	assert.Empty(t, runner.spawned())
}

func TestList(t *testing.T) {
	runner := &fakeRunner{}
	o, stdout := newTestOrchestrator(t, newWorkspace(t), runner)
	inv, err := o.Execute(context.Background(), List{})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)
	assert.Equal(t, "a\nb\n", stdout.String())
	assert.Empty(t, runner.spawned())
}

func TestRunReportsCrash(t *testing.T) {
	root := newWorkspace(t)
	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			prefix := flagValue(cmd.Args, "-artifact_prefix=")
			path := prefix + "crash-0a0b"
			if err := os.WriteFile(path, []byte{0x0a, 0x0b}, 0644); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "==1== ERROR: libFuzzer: deadly signal\n")
			fmt.Fprintf(stderr, "artifact_prefix='%s'; Test unit written to %s\n", prefix, path)
			return &process.ExitError{Command: cmd.String(), Code: 77}
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Run{Common: common("a")})

	require.ErrorIs(t, err, process.ErrSubprocessFailure)
	assert.Equal(t, Failed, inv.State)
	assert.Equal(t, 77, inv.ExitCode)
	assert.Equal(t, 2, inv.Spawned)

	fuzzDir := filepath.Join(root, project.DefaultFuzzDir)
	artifact := filepath.Join(fuzzDir, project.ArtifactsDir, "a", "crash-0a0b")
	require.Len(t, inv.Crashes, 1)
	assert.Equal(t, artifact, inv.Crashes[0].Path)
	assert.Equal(t, []string{`x"0a0b"`}, inv.Crashes[0].Arguments)

	out := stdout.String()
	assert.Contains(t, out, "Failing input:\n\n\t"+artifact)
	assert.Contains(t, out, `x"0a0b"`)
	assert.Contains(t, out, "move-fuzz run a "+artifact)
	assert.Contains(t, out, "move-fuzz tmin a "+artifact)

	engine := runner.spawned()[1]
	corpus := filepath.Join(fuzzDir, project.CorpusDir, "a")
	assert.DirExists(t, corpus)
	assert.Equal(t, corpus, engine.Args[len(engine.Args)-1])
	assert.Equal(t, "detect_odr_violation=0", engine.Getenv("ASAN_OPTIONS"))
	assert.Empty(t, flagValue(engine.Args, "-fork="))
}

func TestRunCrashHintQuotesArguments(t *testing.T) {
	root := newWorkspace(t)
	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			path := flagValue(cmd.Args, "-artifact_prefix=") + "crash-1"
			if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Test unit written to %s\n", path)
			return &process.ExitError{Command: cmd.String(), Code: 77}
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	c := common("a")
	c.Options.Cargo.CargoHome = "/opt/cargo home"
	_, err := o.Execute(context.Background(), Run{Common: c})
	require.ErrorIs(t, err, process.ErrSubprocessFailure)

	artifact := filepath.Join(root, project.DefaultFuzzDir, project.ArtifactsDir, "a", "crash-1")
	assert.Contains(t, stdout.String(), "move-fuzz run '--cargo-home=/opt/cargo home' a "+artifact)
	assert.Contains(t, stdout.String(), "move-fuzz tmin '--cargo-home=/opt/cargo home' a "+artifact)
}

func TestRunForwardsJobsAndArgs(t *testing.T) {
	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
	corpus := t.TempDir()
	inv, err := o.Execute(context.Background(), Run{
		Common: common("b"),
		Corpus: []string{corpus},
		Jobs:   4,
		Args:   []string{"-max_len=64"},
	})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)
	assert.Empty(t, inv.Crashes)

	engine := runner.spawned()[1]
	assert.Equal(t, "4", flagValue(engine.Args, "-fork="))
	assert.Equal(t, []string{"-max_len=64", corpus}, engine.Args[len(engine.Args)-2:])
}

func TestRunCancelledRecordsSignal(t *testing.T) {
	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			return &process.ExitError{Command: cmd.String(), Code: -1, Signal: syscall.SIGINT}
		},
	}
	o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
	inv, err := o.Execute(context.Background(), Run{Common: common("a")})
	require.Error(t, err)
	assert.Equal(t, Failed, inv.State)
	assert.Equal(t, syscall.SIGINT, inv.Signal)
}

func TestCminSwapsCorpus(t *testing.T) {
	root := newWorkspace(t)
	corpus := filepath.Join(root, project.DefaultFuzzDir, project.CorpusDir, "a")
	require.NoError(t, os.MkdirAll(corpus, 0755))
	for _, name := range []string{"1", "2", "3"} {
		require.NoError(t, os.WriteFile(filepath.Join(corpus, name), []byte(name), 0644))
	}

	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			merged := cmd.Args[len(cmd.Args)-2]
			return os.WriteFile(filepath.Join(merged, "1"), []byte("1"), 0644)
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Cmin{Common: common("a")})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)

	engine := runner.spawned()[1]
	assert.Contains(t, engine.Args, "-merge=1")
	assert.Equal(t, corpus, engine.Args[len(engine.Args)-1])

	remaining, err := os.ReadDir(corpus)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	assert.True(t, strings.HasPrefix(inv.Output, corpus+".orig-"))
	backup, err := os.ReadDir(inv.Output)
	require.NoError(t, err)
	assert.Len(t, backup, 3)
	assert.Contains(t, stdout.String(), "from 3 to 1 inputs")
}

func TestCminFailureKeepsCorpus(t *testing.T) {
	root := newWorkspace(t)
	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			return &process.ExitError{Command: cmd.String(), Code: 1}
		},
	}
	o, _ := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Cmin{Common: common("a")})
	require.Error(t, err)
	assert.Equal(t, Failed, inv.State)

	corpusRoot := filepath.Join(root, project.DefaultFuzzDir, project.CorpusDir)
	entries, err := os.ReadDir(corpusRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name())
}

func TestTminReportsMinimizedArtifact(t *testing.T) {
	root := newWorkspace(t)
	fuzzDir := filepath.Join(root, project.DefaultFuzzDir)
	manifest := "targets:\n  a:\n    arguments: [u8, bool]\n"
	require.NoError(t, os.WriteFile(filepath.Join(fuzzDir, project.ManifestFile), []byte(manifest), 0644))
	testCase := filepath.Join(t.TempDir(), "crash-1")
	require.NoError(t, os.WriteFile(testCase, []byte{9, 1, 5}, 0644))

	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			prefix := flagValue(cmd.Args, "-artifact_prefix=")
			return os.WriteFile(prefix+MinimizedPrefix+"abc", []byte{9, 1}, 0644)
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Tmin{Common: common("a"), TestCase: testCase})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)

	engine := runner.spawned()[1]
	assert.Contains(t, engine.Args, "-minimize_crash=1")
	assert.Contains(t, engine.Args, "-runs=255")
	assert.Equal(t, testCase, engine.Args[len(engine.Args)-1])

	minimized := filepath.Join(fuzzDir, project.ArtifactsDir, "a", MinimizedPrefix+"abc")
	assert.Equal(t, minimized, inv.Output)
	assert.Contains(t, stdout.String(), "\t9u8\n\ttrue\n")
}

func TestTminMissingTestCase(t *testing.T) {
	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
	inv, err := o.Execute(context.Background(), Tmin{Common: common("a"), TestCase: filepath.Join(t.TempDir(), "gone")})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, Failed, inv.State)
	assert.Empty(t, runner.spawned())
}

func TestCoverageMergesProfiles(t *testing.T) {
	root := newWorkspace(t)
	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			if profile := cmd.Getenv("LLVM_PROFILE_FILE"); profile != "" {
				return os.WriteFile(filepath.Join(filepath.Dir(profile), "default-1-1.profraw"), nil, 0644)
			}
			return nil
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	c := Coverage{Common: common("a"), LLVMPath: "/opt/llvm/bin"}
	inv, err := o.Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)
	assert.False(t, c.Options.Cargo.Coverage)

	calls := runner.spawned()
	require.Len(t, calls, 3)
	coverageDir := filepath.Join(root, project.DefaultFuzzDir, project.CoverageDir)

	build := calls[0]
	assert.Contains(t, build.Getenv("RUSTFLAGS"), "-Cinstrument-coverage")
	i := indexOf(build.Args, "--target-dir")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, filepath.Join(coverageDir, "target"), build.Args[i+1])

	assert.Contains(t, calls[1].Args, "-runs=0")

	merge := calls[2]
	profdata := filepath.Join(coverageDir, "a", ProfdataFile)
	assert.Equal(t, "/opt/llvm/bin/llvm-profdata", merge.Program)
	assert.Equal(t, []string{
		"merge", "-sparse",
		filepath.Join(coverageDir, "a", "raw", "default-1-1.profraw"),
		"-o", profdata,
	}, merge.Args)
	assert.Equal(t, profdata, inv.Output)
	assert.Len(t, inv.Steps, 3)
	assert.Contains(t, stdout.String(), profdata)
}

func TestCoverageWithoutProfilesFails(t *testing.T) {
	runner := &fakeRunner{}
	o, _ := newTestOrchestrator(t, newWorkspace(t), runner)
	inv, err := o.Execute(context.Background(), Coverage{Common: common("a")})
	require.Error(t, err)
	assert.Equal(t, Failed, inv.State)
	assert.Len(t, runner.spawned(), 2)
}

func TestFmtPrintsDebugAndArguments(t *testing.T) {
	root := newWorkspace(t)
	input := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(input, []byte{0x0a}, 0644))

	runner := &fakeRunner{
		engine: func(cmd plan.Command, stderr io.Writer) error {
			return os.WriteFile(cmd.Getenv("RUST_LIBFUZZER_DEBUG_PATH"), []byte("Input {\n    x: 10,\n}\n"), 0644)
		},
	}
	o, stdout := newTestOrchestrator(t, root, runner)
	inv, err := o.Execute(context.Background(), Fmt{Common: common("a"), Input: input})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, inv.State)

	engine := runner.spawned()[1]
	assert.Equal(t, []string{"-runs=1", input}, engine.Args)
	assert.NoFileExists(t, engine.Getenv("RUST_LIBFUZZER_DEBUG_PATH"))

	assert.Equal(t,
		"Output of `std::fmt::Debug`:\n\n\tInput {\n\t    x: 10,\n\t}\n\nTransaction arguments:\n\n\tx\"0a\"\n",
		stdout.String())
}

func TestArtifactScanner(t *testing.T) {
	s := &artifactScanner{}
	io.WriteString(s, "INFO: seed\nartifact_prefix='/w/'; Test unit wri")
	io.WriteString(s, "tten to /w/crash-1\nBase64: AA==\n")
	io.WriteString(s, "Test unit written to /w/leak-2")
	assert.Equal(t, []string{"/w/crash-1", "/w/leak-2"}, s.Paths())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "plan-compiled", PlanCompiled.String())
	assert.Equal(t, "failed", Failed.String())
}

func indexOf(args []string, arg string) int {
	for i, a := range args {
		if a == arg {
			return i
		}
	}
	return -1
}
