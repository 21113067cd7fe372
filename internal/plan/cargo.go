package plan

import (
	"movefuzz/internal/options"
	"movefuzz/internal/project"
	"path/filepath"
	"strings"
)

// Compiler turns build options into toolchain invocations. HostTriple and
// Environ are injected so compilation stays a pure function of its inputs.
type Compiler struct {
	HostTriple string
	CargoPath  string
	LLVMPath   string
	Environ    []string // base environment of every child
}

// Cargo compiles a cargo build or check of target (every target when empty).
// Options are validated first; a conflict yields no command at all.
func (c *Compiler) Cargo(mode options.BuildMode, opts options.BuildOptions, p *project.Project, target string) (Command, error) {
	opts.Resolve(c.HostTriple)
	if err := opts.Validate(); err != nil {
		return Command{}, err
	}
	b := opts.Cargo

	args := []string{
		mode.String(),
		"--manifest-path", p.CargoManifestPath(),
		"--target", b.Triple,
	}
	if !opts.Dev {
		args = append(args, "--release")
	}
	if b.BuildStdRequested() {
		args = append(args, "-Zbuild-std")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if b.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if b.AllFeatures {
		args = append(args, "--all-features")
	}
	if b.Features != "" {
		args = append(args, "--features", b.Features)
	}
	for _, flag := range b.UnstableFlags {
		args = append(args, "-Z", flag)
	}
	args = append(args, "--target-dir", c.TargetDir(opts, p))
	if target != "" {
		args = append(args, "--bin", target)
	}

	env := FilterOtelEnv(c.Environ)
	env = setenv(env, "RUSTFLAGS", c.rustflags(opts))
	if b.CargoHome != "" {
		env = setenv(env, "CARGO_HOME", b.CargoHome)
	}

	return Command{
		Program: c.cargo(),
		Args:    args,
		Env:     env,
		Dir:     p.Root,
	}, nil
}

func (c *Compiler) cargo() string {
	if c.CargoPath == "" {
		return "cargo"
	}
	return c.CargoPath
}

func (c *Compiler) rustflags(opts options.BuildOptions) string {
	b := opts.Cargo
	var flags []string

	if b.Coverage {
		flags = append(flags, "-Cinstrument-coverage")
	} else {
		flags = append(flags,
			"-Cpasses=sancov-module",
			"-Cllvm-args=-sanitizer-coverage-level=4",
			"-Cllvm-args=-sanitizer-coverage-inline-8bit-counters",
			"-Cllvm-args=-sanitizer-coverage-pc-table",
		)
		if !b.NoTraceCompares {
			flags = append(flags, "-Cllvm-args=-sanitizer-coverage-trace-compares")
		}
	}
	if !b.NoCfgFuzzing {
		flags = append(flags, "--cfg", "fuzzing")
	}
	if !b.StripDeadCode {
		flags = append(flags, "-Clink-dead-code")
	}
	if b.DebugAssertions || !b.Release || b.CarefulMode {
		flags = append(flags, "-Cdebug-assertions")
	}
	if strings.Contains(b.Triple, "-linux-") {
		flags = append(flags, "-Cllvm-args=-sanitizer-coverage-stack-depth")
	}

	switch b.Sanitizer {
	case options.None:
	case options.Memory:
		flags = append(flags, "-Zsanitizer=memory", "-Zsanitizer-memory-track-origins")
	default:
		flags = append(flags, "-Zsanitizer="+b.Sanitizer.String())
	}
	if b.CarefulMode {
		flags = append(flags, "-Zextra-const-ub-checks", "-Zstrict-init-checks", "--cfg", "careful")
	}

	if inherited := lookup(c.Environ, "RUSTFLAGS"); inherited != "" {
		flags = append(flags, inherited)
	}
	return strings.Join(flags, " ")
}

// TargetDir is where cargo writes the build. Coverage builds use a separate
// directory under coverage/.
func (c *Compiler) TargetDir(opts options.BuildOptions, p *project.Project) string {
	if opts.Cargo.CargoTargetDir != "" {
		return opts.Cargo.CargoTargetDir
	}
	if opts.Cargo.Coverage {
		return filepath.Join(p.Root, project.CoverageDir, "target")
	}
	return filepath.Join(p.Root, "target")
}

// BinaryPath is the fuzz target executable produced by a Cargo build.
func (c *Compiler) BinaryPath(opts options.BuildOptions, p *project.Project, target string) string {
	opts.Resolve(c.HostTriple)
	profile := "release"
	if opts.Dev {
		profile = "debug"
	}
	return filepath.Join(c.TargetDir(opts, p), opts.Cargo.Triple, profile, target)
}
