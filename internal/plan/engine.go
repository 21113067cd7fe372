package plan

import (
	"fmt"
	"movefuzz/internal/options"
	"movefuzz/internal/project"
	"path/filepath"
	"strconv"
)

// Target identifies a built fuzz target binary and where its crashes go.
type Target struct {
	Options   options.BuildOptions
	Project   *project.Project
	Name      string
	Artifacts string // artifacts directory, must exist
}

// engine starts a libFuzzer invocation of the target binary.
func (c *Compiler) engine(t Target, args ...string) Command {
	env := FilterOtelEnv(c.Environ)
	switch t.Options.Cargo.Sanitizer {
	case options.Address:
		env = setenv(env, "ASAN_OPTIONS", joinOptions(lookup(env, "ASAN_OPTIONS"), "detect_odr_violation=0"))
	case options.Thread:
		env = setenv(env, "TSAN_OPTIONS", joinOptions(lookup(env, "TSAN_OPTIONS"), "report_signal_unsafe=0"))
	}
	return Command{
		Program: c.BinaryPath(t.Options, t.Project, t.Name),
		Args:    args,
		Env:     env,
		Dir:     t.Project.Root,
	}
}

func joinOptions(inherited, extra string) string {
	if inherited == "" {
		return extra
	}
	return inherited + ":" + extra
}

func (t Target) artifactPrefix() string {
	return "-artifact_prefix=" + t.Artifacts + string(filepath.Separator)
}

// Run fuzzes the target over the given corpus directories. jobs other than 1
// is forwarded as libFuzzer's -fork.
func (c *Compiler) Run(t Target, jobs int, extra, corpus []string) Command {
	args := []string{t.artifactPrefix()}
	if jobs != 1 {
		args = append(args, "-fork="+strconv.Itoa(jobs))
	}
	args = append(args, extra...)
	args = append(args, corpus...)
	return c.engine(t, args...)
}

// Tmin minimizes a single crashing input.
func (c *Compiler) Tmin(t Target, runs int, extra []string, testCase string) Command {
	args := []string{
		"-minimize_crash=1",
		fmt.Sprintf("-runs=%d", runs),
		t.artifactPrefix(),
	}
	args = append(args, extra...)
	args = append(args, testCase)
	return c.engine(t, args...)
}

// Cmin merges corpus into the empty directory merged.
func (c *Compiler) Cmin(t Target, extra []string, merged, corpus string) Command {
	args := []string{"-merge=1", t.artifactPrefix()}
	args = append(args, extra...)
	args = append(args, merged, corpus)
	return c.engine(t, args...)
}

// CoverageRun replays the corpus once with raw profiles written to rawDir.
func (c *Compiler) CoverageRun(t Target, rawDir string, extra, corpus []string) Command {
	args := append([]string{"-runs=0"}, extra...)
	args = append(args, corpus...)
	cmd := c.engine(t, args...)
	cmd.Env = setenv(cmd.Env, "LLVM_PROFILE_FILE", filepath.Join(rawDir, "default-%m-%p.profraw"))
	return cmd
}

// DebugFormat runs a single input with the target's debug dump written to debugFile.
func (c *Compiler) DebugFormat(t Target, input, debugFile string) Command {
	cmd := c.engine(t, "-runs=1", input)
	cmd.Env = setenv(cmd.Env, "RUST_LIBFUZZER_DEBUG_PATH", debugFile)
	return cmd
}

// ProfdataMerge indexes raw profiles into a single .profdata file.
// llvmPath overrides the configured LLVM directory when set.
func (c *Compiler) ProfdataMerge(llvmPath string, inputs []string, output string) Command {
	if llvmPath == "" {
		llvmPath = c.LLVMPath
	}
	program := "llvm-profdata"
	if llvmPath != "" {
		program = filepath.Join(llvmPath, program)
	}
	args := append([]string{"merge", "-sparse"}, inputs...)
	args = append(args, "-o", output)
	return Command{
		Program: program,
		Args:    args,
		Env:     FilterOtelEnv(c.Environ),
	}
}
