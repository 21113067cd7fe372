package cli

import (
	"movefuzz/internal/fuzz"
	"movefuzz/internal/options"
)

type buildCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir

	Args struct {
		Target string `positional-arg-name:"TARGET" description:"Fuzz target, every target when omitted"`
	} `positional-args:"yes"`
}

func (b *buildCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return b.cli.execute(fuzz.Build{Common: common(b.BuildOptions, b.FuzzDir, b.Args.Target)})
}

type checkCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir

	Args struct {
		Target string `positional-arg-name:"TARGET" description:"Fuzz target, every target when omitted"`
	} `positional-args:"yes"`
}

func (c *checkCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return c.cli.execute(fuzz.Check{Common: common(c.BuildOptions, c.FuzzDir, c.Args.Target)})
}

type runCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir
	Jobs int `short:"j" long:"jobs" value-name:"N" description:"Number of concurrent jobs, forwarded as -fork"`

	Args struct {
		Target string   `positional-arg-name:"TARGET" required:"yes"`
		Corpus []string `positional-arg-name:"CORPUS" description:"Corpus directories, corpus/<TARGET> when omitted"`
	} `positional-args:"yes"`
}

func (r *runCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return r.cli.execute(fuzz.Run{
		Common: common(r.BuildOptions, r.FuzzDir, r.Args.Target),
		Corpus: r.Args.Corpus,
		Jobs:   r.Jobs,
		Args:   r.cli.engineArgs,
	})
}

type cminCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir

	Args struct {
		Target string `positional-arg-name:"TARGET" required:"yes"`
		Corpus string `positional-arg-name:"CORPUS" description:"Corpus directory, corpus/<TARGET> when omitted"`
	} `positional-args:"yes"`
}

func (c *cminCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return c.cli.execute(fuzz.Cmin{
		Common: common(c.BuildOptions, c.FuzzDir, c.Args.Target),
		Corpus: c.Args.Corpus,
		Args:   c.cli.engineArgs,
	})
}

type tminCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir
	Runs int `short:"r" long:"runs" value-name:"N" default:"255" description:"Number of minimization attempts"`

	Args struct {
		Target   string `positional-arg-name:"TARGET" required:"yes"`
		TestCase string `positional-arg-name:"TESTCASE" required:"yes"`
	} `positional-args:"yes"`
}

func (t *tminCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return t.cli.execute(fuzz.Tmin{
		Common:   common(t.BuildOptions, t.FuzzDir, t.Args.Target),
		Runs:     t.Runs,
		TestCase: t.Args.TestCase,
		Args:     t.cli.engineArgs,
	})
}

type coverageCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir
	LLVMPath string `long:"llvm-path" value-name:"DIR" description:"Directory holding llvm-profdata"`

	Args struct {
		Target string   `positional-arg-name:"TARGET" required:"yes"`
		Corpus []string `positional-arg-name:"CORPUS"`
	} `positional-args:"yes"`
}

func (c *coverageCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return c.cli.execute(fuzz.Coverage{
		Common:   common(c.BuildOptions, c.FuzzDir, c.Args.Target),
		LLVMPath: c.LLVMPath,
		Corpus:   c.Args.Corpus,
		Args:     c.cli.engineArgs,
	})
}

type fmtCommand struct {
	cli *CLI

	options.BuildOptions
	options.FuzzDir

	Args struct {
		Target string `positional-arg-name:"TARGET" required:"yes"`
		Input  string `positional-arg-name:"INPUT" required:"yes"`
	} `positional-args:"yes"`
}

func (f *fmtCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return f.cli.execute(fuzz.Fmt{
		Common: common(f.BuildOptions, f.FuzzDir, f.Args.Target),
		Input:  f.Args.Input,
	})
}

type listCommand struct {
	cli *CLI

	options.FuzzDir
}

func (l *listCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	return l.cli.execute(fuzz.List{FuzzDir: l.FuzzDir})
}
