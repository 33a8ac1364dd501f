package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/stealthrocket/lowering/compiler"
	"github.com/stealthrocket/lowering/config"
	"github.com/stealthrocket/lowering/internal/fixtures"
	"github.com/stealthrocket/lowering/interp"
	"github.com/stealthrocket/lowering/ir"
)

const usage = `
lowerc lowers closures, iterators and async bodies into state machines.

USAGE:
  lowerc [OPTIONS] SCENARIO

OPTIONS:
      --config <FILENAME>  Configuration file (default: lower.toml found
                           in the current directory or its parents)

      --list               List the available scenarios

      --print              Print the lowered program

      --dump               Dump the synthesized frame types

      --report <FILENAME>  Write a CBOR report of the lowering

      --run                Run the entry method of the scenario

      --shared             Share loop variables across iterations

  -v, --verbose            Increase log verbosity (repeatable)

  -h, --help               Show this help information
`

type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error { *v++; return nil }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "")
	list := flag.Bool("list", false, "")
	printTree := flag.Bool("print", false, "")
	dump := flag.Bool("dump", false, "")
	reportPath := flag.String("report", "", "")
	execute := flag.Bool("run", false, "")
	shared := flag.Bool("shared", false, "")
	var verbose verbosity
	flag.Var(&verbose, "v", "")
	flag.Var(&verbose, "verbose", "")

	flag.Usage = func() { println(usage[1:]) }
	flag.Parse()

	if *list {
		for _, s := range fixtures.All() {
			fmt.Printf("%-22s %s\n", s.Name, s.Doc)
		}
		return nil
	}

	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		return errors.New("missing scenario name")
	}
	scenario, ok := fixtures.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown scenario %q (see --list)", name)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if *shared {
		cfg.Capture.PerIteration = false
	}

	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity+int(verbose), logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := compiler.Compile(ctx, scenario.Build(), cfg.Options()...)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintln(os.Stderr, d)
	}

	if *printTree {
		for _, m := range res.Program.Methods {
			if err := ir.Fprint(os.Stdout, m); err != nil {
				return err
			}
		}
	}

	if *dump {
		state := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		for _, m := range res.Program.Methods {
			for _, f := range m.Frames {
				state.Fdump(os.Stdout, f)
			}
		}
	}

	if *reportPath != "" {
		b, err := res.Report().MarshalCBOR()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*reportPath, b, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	if *execute {
		if len(res.Diagnostics) > 0 {
			return fmt.Errorf("cannot run %s: lowering reported %d diagnostics", name, len(res.Diagnostics))
		}
		in, err := interp.New(res.Program)
		if err != nil {
			return err
		}
		v, err := in.Run(ctx, scenario.Entry)
		if err != nil {
			return err
		}
		if v != nil {
			fmt.Printf("result: %v\n", v)
		}
	}
	return nil
}
