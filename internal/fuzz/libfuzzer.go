package fuzz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"movefuzz/internal/crash"
	"movefuzz/internal/options"
	"movefuzz/internal/plan"
	"movefuzz/pkg/telemetry"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var testUnitRe = regexp.MustCompile(`Test unit written to (\S+)`)

// artifactScanner picks crash artifact paths out of libFuzzer's output.
type artifactScanner struct {
	mu      sync.Mutex
	partial []byte
	paths   []string
}

func (s *artifactScanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.scanLine(s.partial[:i])
		s.partial = s.partial[i+1:]
	}
	return len(p), nil
}

func (s *artifactScanner) scanLine(line []byte) {
	if m := testUnitRe.FindSubmatch(line); m != nil {
		s.paths = append(s.paths, string(m[1]))
	}
}

// Paths returns every artifact seen, including one on an unterminated last line.
func (s *artifactScanner) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partial) > 0 {
		s.scanLine(s.partial)
		s.partial = nil
	}
	return append([]string(nil), s.paths...)
}

func (o *Orchestrator) run(ctx context.Context, inv *Invocation, c Run) error {
	p, opts, err := o.prepare(ctx, inv, telemetry.Fuzzing, c.Common, true)
	if err != nil {
		return err
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
	corpus, err := o.corpus(p, c.Target, c.Corpus)
	if err != nil {
		return err
	}
	jobs := c.Jobs
	if jobs <= 0 {
		jobs = max(o.appConfig.DefaultJobs, 1)
	}
	engine := o.compiler.Run(t, jobs, c.Args, corpus)
	inv.compiled(build, engine)
	telemetry.FromContext(ctx).WithAttributes(telemetry.EmptySpanAttributes().WithExtraAttributes(map[string]any{
		"fuzz.jobs":        jobs,
		"fuzz.corpus_dirs": len(corpus),
	}))

	if err := o.spawn(ctx, inv, build, o.Stdout, o.Stderr); err != nil {
		return err
	}

	fuzzlet := crash.Fuzzlet{
		Target:    c.Target,
		Sanitizer: opts.Cargo.Sanitizer.String(),
		Triple:    opts.Cargo.Triple,
		Signature: signature,
	}
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	crashFileNotifyChan := make(chan string, 1024)
	wd, err := o.watchDogFac.New(watchCtx, crashFileNotifyChan, crash.IsArtifact)
	if err != nil {
		return err
	}
	if err := wd.AddDir(t.Artifacts); err != nil {
		stopWatch()
		<-wd.Done()
		return err
	}
	collected := o.crashManager.Collect(ctx, fuzzlet, crashFileNotifyChan)

	o.logger.Info("fuzzing",
		zap.String("target", c.Target),
		zap.Int("jobs", jobs),
		zap.Strings("corpus", corpus))
	scanner := &artifactScanner{}
	runErr := o.spawn(ctx, inv, engine, o.Stdout, io.MultiWriter(o.Stderr, scanner))

	stopWatch()
	<-wd.Done()
	reports := <-collected
	for _, path := range scanner.Paths() {
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Root, path)
		}
		report, fresh, err := o.crashManager.Report(ctx, fuzzlet, path)
		if err != nil {
			o.logger.Warn("failed to report artifact from engine output", zap.String("file", path), zap.Error(err))
			continue
		}
		if fresh {
			reports = append(reports, report)
		}
	}
	inv.Crashes = reports
	telemetry.FromContext(ctx).WithAttributes(telemetry.EmptySpanAttributes().WithCrashCount(len(reports)))

	for _, report := range reports {
		o.printCrash(c.Common, opts, report)
	}
	return runErr
}

// printCrash describes a failing input and how to reproduce and minimize it.
func (o *Orchestrator) printCrash(c Common, opts options.BuildOptions, report *crash.Report) {
	if err := options.CheckRoundTrip(opts, o.compiler.HostTriple); err != nil {
		o.logger.Warn("reproduce command may not rebuild the same configuration", zap.Error(err))
	}
	flags := append(c.FuzzDir.Args(), opts.Args(o.compiler.HostTriple)...)
	command := func(sub string) string {
		args := append([]string{sub}, flags...)
		args = append(args, c.Target, report.Path)
		return plan.Command{Program: "move-fuzz", Args: args}.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nFailing input:\n\n\t%s\n\n", report.Path)
	if len(report.Arguments) > 0 {
		fmt.Fprintf(&b, "Transaction arguments:\n\n")
		for _, arg := range report.Arguments {
			fmt.Fprintf(&b, "\t%s\n", arg)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Reproduce with:\n\n\t%s\n\n", command("run"))
	fmt.Fprintf(&b, "Minimize test case with:\n\n\t%s\n\n", command("tmin"))
	io.WriteString(o.Stdout, b.String())
}
