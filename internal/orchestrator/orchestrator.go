// Package orchestrator runs one silver-run invocation: it checks the
// preconditions, classifies the sources, builds and runs the synthesis plan,
// then hands the netlist to the verifier.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/silver-run/internal/config"
	"github.com/robert-at-pretension-io/silver-run/internal/logging"
	"github.com/robert-at-pretension-io/silver-run/internal/policy"
	"github.com/robert-at-pretension-io/silver-run/internal/runner"
	"github.com/robert-at-pretension-io/silver-run/internal/source"
	"github.com/robert-at-pretension-io/silver-run/internal/synth"
	"github.com/robert-at-pretension-io/silver-run/internal/validator"
	"github.com/robert-at-pretension-io/silver-run/internal/verify"
)

var (
	ErrMissingTop = errors.New("top module not set")
	ErrNoSources  = errors.New("no source files given")
)

// Options is one invocation as given on the command line.
type Options struct {
	Sources   []string
	AttrsJSON string
	Top       string

	Force         bool
	Debug         bool
	SilverVerbose bool
	Verbose       bool
	NoVerify      bool

	ConfigPath string
	LogLevel   string
	LogFormat  string

	// WorkDir anchors relative paths and the run directory. Defaults to the cwd.
	WorkDir string
}

// Outcome reports what an invocation did.
type Outcome struct {
	RunDir    string
	Synthesis runner.Result
	Verified  bool
}

// App carries the process-level collaborators shared by every stage.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// New returns an App. A nil logger discards.
func New(stdout, stderr io.Writer, logger *slog.Logger) *App {
	if logger == nil {
		logger = logging.Discard()
	}
	return &App{Stdout: stdout, Stderr: stderr, Logger: logger}
}

// RunDirName is the per-top run directory created under the work directory.
func RunDirName(top string) string {
	return "silver_run_" + top
}

// NetlistName is the structural netlist written into the run directory.
func NetlistName(top string) string {
	return top + "_netlist.v"
}

// prepared is an invocation with every precondition checked and the plan built.
type prepared struct {
	cfg     *config.Config
	root    string
	workDir string
	runDir  string
	sources source.Classification
	plan    synth.Plan
}

// Planned is a built plan together with the classified sources it reads.
type Planned struct {
	RunDir  string
	Sources source.Classification
	Plan    synth.Plan
}

// Plan checks the preconditions and builds the synthesis plan without running it.
func (a *App) Plan(opts Options) (*Planned, error) {
	p, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}
	return &Planned{RunDir: p.runDir, Sources: p.sources, Plan: p.plan}, nil
}

func (a *App) prepare(opts Options) (*prepared, error) {
	if opts.Top == "" {
		return nil, ErrMissingTop
	}
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		workDir = wd
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.Verifier.Debug = true
	}
	if strings.ContainsAny(cfg.Yosys, `/`+string(filepath.Separator)) {
		cfg.Yosys = absPath(workDir, cfg.Yosys)
	}

	root, err := cfg.ResolveRoot()
	if err != nil {
		return nil, err
	}
	liberty, err := cfg.CheckLiberty(root)
	if err != nil {
		return nil, err
	}
	fields, err := config.LoadAttributes(absPath(workDir, opts.AttrsJSON))
	if err != nil {
		return nil, err
	}

	paths := opts.Sources
	if len(paths) == 0 {
		if paths, err = cfg.ResolveSources(workDir); err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		return nil, ErrNoSources
	}
	cls, err := source.Classify(paths, workDir)
	if err != nil {
		return nil, err
	}

	mode, err := synth.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	runDir := filepath.Join(workDir, RunDirName(opts.Top))
	plan, err := synth.Build(synth.Config{
		Sources:       cls,
		Top:           opts.Top,
		Parameters:    parameters(cfg),
		Defines:       defines(cfg),
		Attributes:    attributes(fields),
		AttributeName: cfg.AttributeName,
		Mode:          mode,
		SVFrontend:    synth.SVFrontend(cfg.SVFrontend),
		Liberty:       liberty,
		Netlist:       filepath.Join(runDir, NetlistName(opts.Top)),
	})
	if err != nil {
		return nil, fmt.Errorf("build synthesis plan: %w", err)
	}
	a.Logger.Debug("synthesis plan built",
		"top", opts.Top,
		"sources", len(cls.Files),
		"commands", len(plan.Script),
		"mode", mode)

	return &prepared{
		cfg:     cfg,
		root:    root,
		workDir: workDir,
		runDir:  runDir,
		sources: cls,
		plan:    plan,
	}, nil
}

// Run executes opts. Every precondition is checked before the engine starts.
func (a *App) Run(ctx context.Context, opts Options) (*Outcome, error) {
	p, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}
	cfg := p.cfg

	rules, err := policy.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init pipeline policy: %w", err)
	}

	r := runner.New(runner.Options{
		Dir:        p.runDir,
		Yosys:      cfg.Yosys,
		Quiet:      cfg.EngineQuiet() && !opts.Verbose,
		Logger:     a.Logger,
		Stdout:     a.Stdout,
		Stderr:     a.Stderr,
		Policy:     rules,
		Timing:     cfg.Timing,
		TimingPath: cfg.TimingPath,
	})
	res, err := r.Run(ctx, p.plan, p.sources.Files, opts.Force)
	if err != nil {
		return nil, err
	}
	out := &Outcome{RunDir: p.runDir, Synthesis: res}

	if opts.NoVerify {
		a.Logger.Info("verification skipped", "netlist", p.plan.Artifacts.Netlist)
		return out, nil
	}

	insFile := ""
	if cfg.Verifier.InsFile != "" {
		insFile = absPath(p.workDir, cfg.Verifier.InsFile)
	}
	v := &verify.Verifier{
		Options: verify.Options{
			Binary:  cfg.VerifierBinary(p.root),
			Netlist: p.plan.Artifacts.Netlist,
			Top:     opts.Top,
			InsFile: insFile,
			LibFile: cfg.VerifierLibrary(p.root),
			Verbose: opts.Verbose || (opts.SilverVerbose && cfg.VerifierVerbose()),
		},
		Dir:    p.runDir,
		Logger: a.Logger,
		Stdout: a.Stdout,
		Stderr: a.Stderr,
	}
	if err := v.Run(ctx); err != nil {
		return out, err
	}
	out.Verified = true
	return out, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func absPath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func parameters(cfg *config.Config) []synth.Param {
	var out []synth.Param
	for _, name := range cfg.ParameterNames() {
		out = append(out, synth.Param{Name: name, Value: string(cfg.Parameters[name])})
	}
	return out
}

func defines(cfg *config.Config) []synth.Define {
	var out []synth.Define
	for _, name := range cfg.DefineNames() {
		d := synth.Define{Name: name}
		if v := cfg.Defines[name]; v != nil {
			d.Value = string(*v)
			d.HasValue = true
		}
		out = append(out, d)
	}
	return out
}

func attributes(fields []validator.Field) []synth.Attribute {
	out := make([]synth.Attribute, 0, len(fields))
	for _, f := range fields {
		out = append(out, synth.Attribute{Select: f.Name, Value: f.Value})
	}
	return out
}
