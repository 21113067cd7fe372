package fuzz

import (
	"context"
	"fmt"
	"movefuzz/internal/crash"
	"movefuzz/internal/options"
	"movefuzz/pkg/telemetry"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTminRuns   = 255
	MinimizedPrefix   = "minimized-from-"
	corpusBackupInfix = ".orig-"
	corpusMergeInfix  = ".cmin-"
)

// cmin merges the corpus into a fresh sibling directory and swaps it in. The
// previous corpus is renamed to <corpus>.orig-<uuid> and never removed.
func (o *Orchestrator) cmin(ctx context.Context, inv *Invocation, c Cmin) error {
	p, opts, err := o.prepare(ctx, inv, telemetry.Minimizing, c.Common, true)
	if err != nil {
		return err
	}
	corpus := c.Corpus
	if corpus == "" {
		if corpus, err = p.CorpusDir(c.Target); err != nil {
			return err
		}
	} else if info, err := os.Stat(corpus); err != nil || !info.IsDir() {
		return fmt.Errorf("corpus %s is not a directory", corpus)
	}
	corpus = filepath.Clean(corpus)

	build, err := o.compiler.Cargo(options.Build, opts, p, c.Target)
	if err != nil {
		return err
	}
	t, err := o.target(p, opts, c.Target)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	merged := corpus + corpusMergeInfix + id
	backup := corpus + corpusBackupInfix + id
	engine := o.compiler.Cmin(t, c.Args, merged, corpus)
	inv.compiled(build, engine)

	if err := o.spawn(ctx, inv, build, o.Stdout, o.Stderr); err != nil {
		return err
	}
	if err := os.MkdirAll(merged, 0755); err != nil {
		return fmt.Errorf("failed to create merge directory: %w", err)
	}
	if err := o.spawn(ctx, inv, engine, o.Stdout, o.Stderr); err != nil {
		os.RemoveAll(merged)
		return err
	}

	before, after := countFiles(corpus), countFiles(merged)
	if err := os.Rename(corpus, backup); err != nil {
		return fmt.Errorf("failed to back up corpus: %w", err)
	}
	if err := os.Rename(merged, corpus); err != nil {
		return fmt.Errorf("failed to replace corpus, previous corpus is in %s: %w", backup, err)
	}
	inv.Output = backup
	telemetry.FromContext(ctx).WithAttributes(telemetry.EmptySpanAttributes().WithCorpusFiles(after))

	o.logger.Info("corpus minimized",
		zap.String("corpus", corpus),
		zap.Int("before", before),
		zap.Int("after", after),
		zap.String("backup", backup))
	fmt.Fprintf(o.Stdout, "Minimized corpus %s from %d to %d inputs. The previous corpus is in %s\n", corpus, before, after, backup)
	return nil
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n
}

func (o *Orchestrator) tmin(ctx context.Context, inv *Invocation, c Tmin) error {
	p, opts, err := o.prepare(ctx, inv, telemetry.Minimizing, c.Common, true)
	if err != nil {
		return err
	}
	if _, err := os.Stat(c.TestCase); err != nil {
		return fmt.Errorf("test case: %w", err)
	}
	signature, err := p.Signature(c.Target)
	if err != nil {
		return err
	}
	runs := c.Runs
	if runs <= 0 {
		runs = DefaultTminRuns
	}

	build, err := o.compiler.Cargo(options.Build, opts, p, c.Target)
	if err != nil {
		return err
	}
	t, err := o.target(p, opts, c.Target)
	if err != nil {
		return err
	}
	engine := o.compiler.Tmin(t, runs, c.Args, c.TestCase)
	inv.compiled(build, engine)

	if err := o.spawn(ctx, inv, build, o.Stdout, o.Stderr); err != nil {
		return err
	}
	if err := o.spawn(ctx, inv, engine, o.Stdout, o.Stderr); err != nil {
		return err
	}

	minimized, err := p.NewestArtifact(c.Target, MinimizedPrefix)
	if err != nil {
		o.logger.Warn("no minimized artifact written", zap.Error(err))
		return nil
	}
	inv.Output = minimized
	data, err := os.ReadFile(minimized)
	if err != nil {
		return fmt.Errorf("failed to read minimized artifact: %w", err)
	}
	fmt.Fprintf(o.Stdout, "\nMinimized artifact:\n\n\t%s\n\nTransaction arguments:\n\n", minimized)
	for _, arg := range crash.Describe(signature, data) {
		fmt.Fprintf(o.Stdout, "\t%s\n", arg)
	}
	return nil
}
