package fuzz

import (
	"context"
	"fmt"
	"movefuzz/internal/crash"
	"movefuzz/internal/options"
	"movefuzz/pkg/telemetry"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	ProfdataFile = "coverage.profdata"
	rawProfDir   = "raw"
)

// coverage builds with coverage instrumentation, replays the corpus and merges
// the raw profiles into coverage/<target>/coverage.profdata.
func (o *Orchestrator) coverage(ctx context.Context, inv *Invocation, c Coverage) error {
	c.Options.Cargo.Coverage = true
	p, opts, err := o.prepare(ctx, inv, telemetry.Coverage, c.Common, true)
	if err != nil {
		return err
	}
	build, err := o.compiler.Cargo(options.Build, opts, p, c.Target)
	if err != nil {
		return err
	}
	t, err := o.target(p, opts, c.Target)
	if err != nil {
		return err
	}
	corpus, err := o.corpus(p, c.Target, c.Corpus)
	if err != nil {
		return err
	}
	coverageDir, err := p.CoverageDir(c.Target)
	if err != nil {
		return err
	}
	rawDir := filepath.Join(coverageDir, rawProfDir)
	if err := os.RemoveAll(rawDir); err != nil {
		return fmt.Errorf("failed to clear raw profiles: %w", err)
	}
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return fmt.Errorf("failed to create raw profile directory: %w", err)
	}
	replay := o.compiler.CoverageRun(t, rawDir, c.Args, corpus)
	inv.compiled(build, replay)

	if err := o.spawn(ctx, inv, build, o.Stdout, o.Stderr); err != nil {
		return err
	}
	if err := o.spawn(ctx, inv, replay, o.Stdout, o.Stderr); err != nil {
		return err
	}

	raw, err := filepath.Glob(filepath.Join(rawDir, "*.profraw"))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("no raw coverage profiles written to %s", rawDir)
	}
	profdata := filepath.Join(coverageDir, ProfdataFile)
	merge := o.compiler.ProfdataMerge(c.LLVMPath, raw, profdata)
	inv.compiled(merge)
	if err := o.spawn(ctx, inv, merge, o.Stdout, o.Stderr); err != nil {
		return err
	}
	inv.Output = profdata

	o.logger.Info("coverage merged", zap.String("target", c.Target), zap.Int("profiles", len(raw)), zap.String("profdata", profdata))
	fmt.Fprintf(o.Stdout, "Coverage data merged and saved in %s\n", profdata)
	return nil
}

// format runs one input with the target's debug dump enabled and prints both the
// dump and the decoded transaction arguments.
func (o *Orchestrator) format(ctx context.Context, inv *Invocation, c Fmt) error {
	p, opts, err := o.prepare(ctx, inv, telemetry.Inspecting, c.Common, true)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	signature, err := p.Signature(c.Target)
	if err != nil {
		return err
	}
	build, err := o.compiler.Cargo(options.Build, opts, p, c.Target)
	if err != nil {
		return err
	}
	t, err := o.target(p, opts, c.Target)
	if err != nil {
		return err
	}

	debugFile, err := os.CreateTemp("", "move-fuzz-fmt-*")
	if err != nil {
		return fmt.Errorf("failed to create debug file: %w", err)
	}
	debugFile.Close()
	defer os.Remove(debugFile.Name())

	engine := o.compiler.DebugFormat(t, c.Input, debugFile.Name())
	inv.compiled(build, engine)

	if err := o.spawn(ctx, inv, build, o.Stdout, o.Stderr); err != nil {
		return err
	}
	if err := o.spawn(ctx, inv, engine, o.Stdout, o.Stderr); err != nil {
		return err
	}

	dump, err := os.ReadFile(debugFile.Name())
	if err != nil {
		return fmt.Errorf("failed to read debug output: %w", err)
	}
	var b strings.Builder
	if text := strings.TrimRight(string(dump), "\n"); text != "" {
		b.WriteString("Output of `std::fmt::Debug`:\n\n")
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(&b, "\t%s\n", line)
		}
		b.WriteString("\n")
	}
	b.WriteString("Transaction arguments:\n\n")
	for _, arg := range crash.Describe(signature, data) {
		fmt.Fprintf(&b, "\t%s\n", arg)
	}
	_, err = fmt.Fprint(o.Stdout, b.String())
	return err
}
