// Package cli turns silver-run command-line arguments into orchestrator options.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/robert-at-pretension-io/silver-run/internal/orchestrator"
	"github.com/robert-at-pretension-io/silver-run/internal/synth"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usage = `
silver-run - synthesize HDL sources with Yosys and verify the netlist with SILVER.

Usage:
  silver-run [options] --attrs-json FILE --top MODULE SOURCE...
  silver-run init

Arguments:
  SOURCE
    .v, .sv, .vhd or .vhdl files, read in the order given. Flags may appear
    anywhere; everything after "--" is a source.

Configuration:
  silver-run looks for configuration in:
    1. ./silver_run.json
    2. ./.silver_run.json
    3. ./silver_run.hcl
    4. ~/.config/silver_run/config.json

Options:
`

// Parse processes command-line arguments. It returns populated options, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*orchestrator.Options, bool, error) {
	flagSet, opts := newFlagSet("silver-run", usage, output)
	if exit, err := parse(flagSet, opts, args); exit || err != nil {
		return nil, exit, err
	}
	return opts, false, nil
}

// PlanOptions are the silver-plan options: a run's options plus output control.
type PlanOptions struct {
	orchestrator.Options

	Output    string
	Format    string
	DeltaFrom string
	DeltaOut  string
	Stages    []string
}

const planUsage = `
silver-plan - print the Yosys script silver-run would execute, without running it.

Usage:
  silver-plan [options] --attrs-json FILE --top MODULE SOURCE...

The plan is printed as script text or as relational JSON tables. With
--delta-from and --delta-out, rows added and removed since a previous JSON
plan are written as well.

Options:
`

// ParsePlan processes silver-plan arguments.
func ParsePlan(args []string, output io.Writer) (*PlanOptions, bool, error) {
	flagSet, run := newFlagSet("silver-plan", planUsage, output)
	opts := &PlanOptions{}
	var stages string
	for _, name := range []string{"o", "output"} {
		flagSet.StringVar(&opts.Output, name, "", "Write the plan to a file (default: stdout).")
	}
	flagSet.StringVar(&opts.Format, "format", "text", "Plan format. Options: 'text' or 'json'.")
	flagSet.StringVar(&opts.DeltaFrom, "delta-from", "", "Previous JSON plan to compute a delta from.")
	flagSet.StringVar(&opts.DeltaOut, "delta-out", "", "Write the delta JSON to a file (requires --delta-from).")
	flagSet.StringVar(&stages, "stage", "", "Comma-separated stages to keep in the output.")

	if exit, err := parse(flagSet, run, args); exit || err != nil {
		return nil, exit, err
	}
	opts.Options = *run

	opts.Format = strings.ToLower(opts.Format)
	if opts.Format != "text" && opts.Format != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid format: must be 'text' or 'json'"}
	}
	if (opts.DeltaFrom == "") != (opts.DeltaOut == "") {
		return nil, false, &ExitError{Code: 2, Message: "--delta-from and --delta-out must be used together"}
	}
	for _, st := range strings.Split(stages, ",") {
		if st = strings.TrimSpace(st); st == "" {
			continue
		}
		if !knownStage(st) {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown stage %q: must be one of %s", st, stageNames())}
		}
		opts.Stages = append(opts.Stages, st)
	}
	return opts, false, nil
}

func knownStage(name string) bool {
	for _, st := range synth.StageOrder() {
		if string(st) == name {
			return true
		}
	}
	return false
}

func stageNames() string {
	names := make([]string, 0, len(synth.StageOrder()))
	for _, st := range synth.StageOrder() {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}

func newFlagSet(name, text string, output io.Writer) (*flag.FlagSet, *orchestrator.Options) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, text)
		flagSet.PrintDefaults()
	}

	opts := &orchestrator.Options{}
	flagSet.StringVar(&opts.AttrsJSON, "attrs-json", "", "Attributes JSON file (required).")
	for _, name := range []string{"t", "top", "top-module"} {
		flagSet.StringVar(&opts.Top, name, "", "Top module (required).")
	}
	for _, name := range []string{"f", "force-synth"} {
		flagSet.BoolVar(&opts.Force, name, false, "Force synthesis even if the netlist is up to date.")
	}
	for _, name := range []string{"d", "debug"} {
		flagSet.BoolVar(&opts.Debug, name, false, "Run the debug verifier build.")
	}
	for _, name := range []string{"v", "verbose"} {
		flagSet.BoolVar(&opts.Verbose, name, false, "Show engine output and verbose verifier output.")
	}
	for _, name := range []string{"c", "config"} {
		flagSet.StringVar(&opts.ConfigPath, name, "", "Configuration file (JSON or HCL).")
	}
	flagSet.BoolVar(&opts.SilverVerbose, "silver-verbose", true, "Run the verifier with --verbose 1.")
	flagSet.BoolVar(&opts.NoVerify, "no-verify", false, "Synthesize only, skip the verifier.")
	flagSet.StringVar(&opts.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.StringVar(&opts.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	return flagSet, opts
}

func parse(flagSet *flag.FlagSet, opts *orchestrator.Options, args []string) (bool, error) {
	if len(args) == 0 {
		flagSet.Usage()
		return true, nil
	}

	// flag stops at the first positional argument; keep parsing after each
	// one so sources and flags can be interleaved.
	rest, trailing := splitDashDash(args)
	for {
		if err := flagSet.Parse(rest); err != nil {
			if err == flag.ErrHelp {
				return true, nil
			}
			return false, &ExitError{Code: 2, Message: err.Error()}
		}
		rest = flagSet.Args()
		if len(rest) == 0 {
			break
		}
		opts.Sources = append(opts.Sources, rest[0])
		rest = rest[1:]
	}
	opts.Sources = append(opts.Sources, trailing...)

	if opts.Top == "" {
		return false, &ExitError{Code: 2, Message: "missing required flag: --top"}
	}
	if opts.AttrsJSON == "" {
		return false, &ExitError{Code: 2, Message: "missing required flag: --attrs-json"}
	}

	opts.LogFormat = strings.ToLower(opts.LogFormat)
	if opts.LogFormat != "text" && opts.LogFormat != "json" {
		return false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	opts.LogLevel = strings.ToLower(opts.LogLevel)
	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	levelSet := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			levelSet = true
		}
	})
	if opts.Verbose && !levelSet {
		opts.LogLevel = "debug"
	}
	return false, nil
}

// splitDashDash separates arguments after a bare "--"; they are all sources.
func splitDashDash(args []string) ([]string, []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}
