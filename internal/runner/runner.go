// Package runner executes a built synthesis plan: it decides whether the
// netlist is stale, runs the engine in the run directory, checks the declared
// artifacts and cleans the structural netlist up.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/silver-run/internal/fsutil"
	"github.com/robert-at-pretension-io/silver-run/internal/logging"
	"github.com/robert-at-pretension-io/silver-run/internal/netlist"
	"github.com/robert-at-pretension-io/silver-run/internal/policy"
	"github.com/robert-at-pretension-io/silver-run/internal/source"
	"github.com/robert-at-pretension-io/silver-run/internal/synth"
)

var (
	// ErrEngineFailed means the engine could not start or exited non-zero.
	ErrEngineFailed = errors.New("synthesis engine failed")

	// ErrMissingArtifact means the engine exited zero without writing a declared output.
	ErrMissingArtifact = errors.New("synthesis artifact missing")

	// ErrScriptPolicy means the built script broke a pipeline rule and was not run.
	ErrScriptPolicy = errors.New("synthesis script rejected")
)

// ManifestFile is written into the run directory after a successful build.
const ManifestFile = "silver_run.manifest.json"

// Options configure a Runner.
type Options struct {
	// Dir is the run directory. It is created on demand and is the engine's cwd.
	Dir string

	// Yosys is the engine executable. Defaults to "yosys".
	Yosys string

	// Quiet sends engine output to the log file in Dir.
	Quiet bool

	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer

	// Policy checks the script before it runs. Nil skips the check.
	Policy *policy.Engine

	Timing     bool
	TimingPath string
}

// Runner runs synthesis plans.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// Result describes one Run.
type Result struct {
	Rebuilt     bool           `json:"rebuilt"`
	Reason      string         `json:"reason"`
	Netlist     string         `json:"netlist"`
	JSONNetlist string         `json:"json_netlist"`
	Command     []string       `json:"command,omitempty"`
	Fix         netlist.Report `json:"fix"`
	Duration    time.Duration  `json:"duration_ns"`
}

// New returns a Runner. Nil writers and logger are replaced by discarding ones.
func New(opts Options) *Runner {
	if opts.Yosys == "" {
		opts.Yosys = "yosys"
	}
	opts.Yosys = enginePath(opts.Yosys)
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{opts: opts, logger: logger}
}

// Run synthesizes plan unless the netlist is newer than every source. The
// engine inherits ctx; nothing here sets a deadline.
func (r *Runner) Run(ctx context.Context, plan synth.Plan, sources []source.SourceFile, force bool) (Result, error) {
	start := time.Now()
	tr := newTimingRecorder(start, r.opts.resolveTimingPath())
	defer tr.Close()
	if err := tr.Err(); err != nil {
		r.logger.Warn("timing output disabled", "error", err)
	}

	res := Result{
		Netlist:     plan.Artifacts.Netlist,
		JSONNetlist: plan.Artifacts.JSONNetlist,
	}

	err := r.run(ctx, tr, plan, sources, force, &res)
	res.Duration = time.Since(start)
	tr.stage("total", start, err, res.Reason)
	return res, err
}

func (r *Runner) run(ctx context.Context, tr *timingRecorder, plan synth.Plan, sources []source.SourceFile, force bool, res *Result) error {
	t := time.Now()
	rebuild, reason, err := NeedsRebuild(plan.Artifacts.Netlist, sources, force)
	tr.stage("staleness", t, err, reason)
	if err != nil {
		return err
	}
	res.Reason = reason
	if !rebuild {
		r.logger.Info("netlist is up to date, skipping synthesis", "netlist", plan.Artifacts.Netlist)
		return nil
	}
	r.logger.Info("synthesis required", "reason", reason, "dir", r.opts.Dir)

	if r.opts.Policy != nil {
		t = time.Now()
		err := r.checkPolicy(ctx, plan.Script)
		tr.stage("policy", t, err, "")
		if err != nil {
			return err
		}
	}

	t = time.Now()
	scriptPath := filepath.Join(r.opts.Dir, synth.ScriptFile)
	err = fsutil.WriteFileAtomic(scriptPath, []byte(plan.Script.Text()+"\n"), 0o644)
	tr.stage("script", t, err, scriptPath)
	if err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	r.logger.Debug("script written", "path", scriptPath, "commands", len(plan.Script))

	argv := synth.Invocation(plan, synth.InvocationOptions{Binary: r.opts.Yosys, Quiet: r.opts.Quiet})
	res.Command = argv
	t = time.Now()
	err = r.exec(ctx, argv)
	tr.stage("engine", t, err, "")
	if err != nil {
		return err
	}

	t = time.Now()
	err = checkArtifacts(plan.Artifacts)
	tr.stage("artifacts", t, err, "")
	if err != nil {
		return err
	}
	res.Rebuilt = true

	t = time.Now()
	report, err := netlist.Fixer{Logger: r.logger}.FixFile(plan.Artifacts.Netlist)
	tr.stage("fix", t, err, "")
	if err != nil {
		return fmt.Errorf("fix netlist: %w", err)
	}
	res.Fix = report
	r.logger.Info("netlist fixed", "ports", report.Ports, "removed", report.Removed)

	if err := fsutil.WriteJSONAtomic(filepath.Join(r.opts.Dir, ManifestFile), res); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (r *Runner) checkPolicy(ctx context.Context, script synth.Script) error {
	result, err := r.opts.Policy.Evaluate(ctx, script)
	if err != nil {
		return fmt.Errorf("evaluate pipeline policy: %w", err)
	}
	if result.OK() {
		return nil
	}
	msgs := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		msgs = append(msgs, v.Rule+": "+v.Message)
	}
	return fmt.Errorf("%w: %s", ErrScriptPolicy, strings.Join(msgs, "; "))
}

func (r *Runner) exec(ctx context.Context, argv []string) error {
	r.logger.Debug("starting engine", "argv", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.opts.Dir
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = r.opts.Stderr
	if err := cmd.Run(); err != nil {
		if r.opts.Quiet {
			return fmt.Errorf("%w (see %s): %w", ErrEngineFailed, filepath.Join(r.opts.Dir, synth.LogFile), err)
		}
		return fmt.Errorf("%w: %w", ErrEngineFailed, err)
	}
	return nil
}

// enginePath makes a relative engine path absolute against the process cwd.
// The engine runs with Dir as its cwd, where a relative path would not resolve.
// Bare names are left for PATH lookup.
func enginePath(p string) string {
	if filepath.IsAbs(p) || !strings.ContainsAny(p, `/`+string(filepath.Separator)) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func checkArtifacts(a synth.Artifacts) error {
	for _, path := range []string{a.Netlist, a.JSONNetlist} {
		if !fsutil.IsFile(path) {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
	}
	return nil
}
