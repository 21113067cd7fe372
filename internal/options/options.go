package options

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigurationConflict is returned when mutually exclusive options are set together.
	ErrConfigurationConflict = errors.New("configuration conflict")
	// ErrMalformedRoundTrip means a rendered token sequence did not parse back to the same options.
	ErrMalformedRoundTrip = errors.New("malformed round trip")
)

// CargoBuildOptions are the cargo-level knobs of a fuzz target build.
// Field tags double as the command line grammar used by both the CLI and ParseBuildOptions.
type CargoBuildOptions struct {
	Release           bool      `short:"O" long:"release" description:"Build artifacts in release mode, with optimizations"`
	DebugAssertions   bool      `short:"a" long:"debug-assertions" description:"Build artifacts with debug assertions and overflow checks enabled (default if not -O)"`
	AllFeatures       bool      `long:"all-features" description:"Build artifacts with all Cargo features enabled"`
	NoDefaultFeatures bool      `long:"no-default-features" description:"Build artifacts with default Cargo features disabled"`
	Features          string    `long:"features" value-name:"FEATURES" description:"Build artifacts with given Cargo feature enabled"`
	Sanitizer         Sanitizer `short:"s" long:"sanitizer" value-name:"SANITIZER" default:"address" description:"Use a specific sanitizer (address, leak, memory, thread, none)"`
	BuildStd          bool      `long:"build-std" description:"Pass -Zbuild-std to Cargo, rebuilding the standard library with the fuzz target settings"`
	CarefulMode       bool      `short:"c" long:"careful" description:"Build the harness and the standard library with extra const UB and init checks (implies --build-std)"`
	Triple            string    `long:"target" value-name:"TRIPLE" description:"Target triple of the fuzz target (defaults to the host triple)"`
	UnstableFlags     []string  `short:"Z" value-name:"FLAG" description:"Unstable (nightly-only) flags to Cargo"`
	Coverage          bool      `long:"coverage" hidden:"true" description:"Instrument program code with source-based code coverage information"`
	StripDeadCode     bool      `long:"strip-dead-code" description:"Do not force linking of dead code"`
	NoCfgFuzzing      bool      `long:"no-cfg-fuzzing" description:"Do not set the 'cfg(fuzzing)' compilation configuration"`
	NoTraceCompares   bool      `long:"no-trace-compares" description:"Do not build with the sanitizer-coverage-trace-compares LLVM argument"`
	CargoHome         string    `long:"cargo-home" value-name:"DIR" description:"Cargo home directory used for the build"`
	CargoTargetDir    string    `long:"cargo-target-dir" value-name:"DIR" description:"Cargo target directory used for the build"`
}

// BuildOptions is the full build configuration handed to the plan compiler.
type BuildOptions struct {
	Dev     bool `short:"D" long:"dev" description:"Build artifacts in development mode, without optimizations"`
	Verbose bool `short:"v" long:"verbose" description:"Build target with verbose output from cargo"`

	Cargo CargoBuildOptions `group:"Cargo Options"`
}

// Default returns the options a bare command line produces on the given host.
func Default(hostTriple string) BuildOptions {
	return BuildOptions{Cargo: CargoBuildOptions{Sanitizer: Address, Triple: hostTriple}}
}

// BuildStdRequested reports whether the standard library gets rebuilt, either
// explicitly or through careful mode.
func (o CargoBuildOptions) BuildStdRequested() bool {
	return o.BuildStd || o.CarefulMode
}

// Validate rejects combinations the toolchain cannot honour.
func (o BuildOptions) Validate() error {
	if o.Dev && o.Cargo.Release {
		return fmt.Errorf("%w: --dev and --release are mutually exclusive", ErrConfigurationConflict)
	}
	return o.Cargo.Validate()
}

func (o CargoBuildOptions) Validate() error {
	selected := 0
	for _, set := range []bool{o.AllFeatures, o.NoDefaultFeatures, o.Features != ""} {
		if set {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("%w: --all-features, --no-default-features and --features are mutually exclusive", ErrConfigurationConflict)
	}
	if o.Coverage && o.BuildStd {
		return fmt.Errorf("%w: -Zbuild-std is incompatible with coverage instrumentation", ErrConfigurationConflict)
	}
	if o.Coverage && o.CarefulMode {
		return fmt.Errorf("%w: careful mode rebuilds the standard library and is incompatible with coverage instrumentation", ErrConfigurationConflict)
	}
	for _, flag := range o.UnstableFlags {
		if flag == "" || strings.HasPrefix(flag, "-") {
			return fmt.Errorf("%w: invalid unstable flag %q", ErrConfigurationConflict, flag)
		}
	}
	return nil
}

// FuzzDir optionally overrides the location of the fuzz workspace.
type FuzzDir struct {
	Path string `long:"fuzz-dir" value-name:"DIR" description:"The path to the fuzz project directory"`
}

// ParseFuzzDir treats an empty string as "not given".
func ParseFuzzDir(s string) FuzzDir {
	return FuzzDir{Path: s}
}

func (d FuzzDir) IsSet() bool {
	return d.Path != ""
}

func (d FuzzDir) Args() []string {
	if !d.IsSet() {
		return nil
	}
	return []string{"--fuzz-dir=" + d.Path}
}
