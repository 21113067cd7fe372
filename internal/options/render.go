package options

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jessevdk/go-flags"
)

// Args renders the options into their canonical token sequence. Defaults are
// elided: an Address sanitizer and a triple equal to hostTriple produce no token.
// ParseBuildOptions(o.Args(host), host) yields o again for every valid o.
func (o BuildOptions) Args(hostTriple string) []string {
	c := o.Cargo
	args := make([]string, 0, 8)

	switch c.Sanitizer {
	case Address:
	case None:
		args = append(args, "--sanitizer=none")
	default:
		args = append(args, "--sanitizer="+c.Sanitizer.String())
	}

	if c.Release {
		args = append(args, "--release")
	}
	if o.Dev {
		args = append(args, "--dev")
	}
	if o.Verbose {
		args = append(args, "--verbose")
	}

	if c.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if c.AllFeatures {
		args = append(args, "--all-features")
	}
	if c.Features != "" {
		args = append(args, "--features="+c.Features)
	}

	toggles := []struct {
		set  bool
		flag string
	}{
		{c.DebugAssertions, "--debug-assertions"},
		{c.BuildStd, "--build-std"},
		{c.CarefulMode, "--careful"},
		{c.Coverage, "--coverage"},
		{c.StripDeadCode, "--strip-dead-code"},
		{c.NoCfgFuzzing, "--no-cfg-fuzzing"},
		{c.NoTraceCompares, "--no-trace-compares"},
	}
	for _, t := range toggles {
		if t.set {
			args = append(args, t.flag)
		}
	}

	if c.Triple != "" && c.Triple != hostTriple {
		args = append(args, "--target="+c.Triple)
	}

	if c.CargoHome != "" {
		args = append(args, "--cargo-home="+c.CargoHome)
	}
	if c.CargoTargetDir != "" {
		args = append(args, "--cargo-target-dir="+c.CargoTargetDir)
	}

	// separate tokens keep a flag's own '=' from being read as the option's
	for _, flag := range c.UnstableFlags {
		args = append(args, "-Z", flag)
	}
	return args
}

// ParseBuildOptions reads tokens in the grammar produced by Args. A missing
// --target resolves to hostTriple. The result is validated.
func ParseBuildOptions(args []string, hostTriple string) (BuildOptions, error) {
	var opts BuildOptions
	parser := flags.NewParser(&opts, flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return BuildOptions{}, fmt.Errorf("parse build options: %w", err)
	}
	if len(rest) > 0 {
		return BuildOptions{}, fmt.Errorf("parse build options: unexpected arguments %q", rest)
	}
	opts.Resolve(hostTriple)
	if err := opts.Validate(); err != nil {
		return BuildOptions{}, err
	}
	return opts, nil
}

// Resolve fills in values that depend on the build host.
func (o *BuildOptions) Resolve(hostTriple string) {
	if o.Cargo.Triple == "" {
		o.Cargo.Triple = hostTriple
	}
}

// CheckRoundTrip renders o and parses it back, failing with ErrMalformedRoundTrip
// when the result differs.
func CheckRoundTrip(o BuildOptions, hostTriple string) error {
	want := o
	want.Resolve(hostTriple)

	got, err := ParseBuildOptions(o.Args(hostTriple), hostTriple)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRoundTrip, err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		return fmt.Errorf("%w (-want +got):\n%s", ErrMalformedRoundTrip, diff)
	}
	return nil
}
