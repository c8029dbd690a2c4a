package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/silver-run/internal/config"
	"github.com/robert-at-pretension-io/silver-run/internal/runner"
	"github.com/robert-at-pretension-io/silver-run/internal/verify"
)

const stubYosys = `#!/bin/sh
script=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-s" ]; then script="$2"; fi
  shift
done
[ -n "$STUB_YOSYS_LOG" ] && echo run >> "$STUB_YOSYS_LOG"
echo '{}' > "$(grep '^write_json' "$script" | awk '{print $NF}')"
printf 'module top(k);\n  input [1:0] k;\n  wire [1:0] k;\nendmodule\n' > "$(grep '^write_verilog' "$script" | awk '{print $NF}')"
`

const stubVerify = `#!/bin/sh
printf '%s\n' "$0" "$@" > "$STUB_VERIFY_ARGV"
exit ${STUB_VERIFY_EXIT:-0}
`

type env struct {
	work     string
	root     string
	attrs    string
	config   string
	source   string
	yosysLog string
	argvFile string
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

func newEnv(t *testing.T) env {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	base := t.TempDir()
	e := env{
		work:     filepath.Join(base, "work"),
		root:     filepath.Join(base, "silver"),
		yosysLog: filepath.Join(base, "yosys.runs"),
		argvFile: filepath.Join(base, "verify.argv"),
	}
	yosys := filepath.Join(base, "tools", "yosys")
	writeFile(t, yosys, stubYosys, 0o755)
	writeFile(t, filepath.Join(e.root, "yosys", "LIB", "custom_cells.lib"), "library(cells) {}\n", 0o644)
	writeFile(t, filepath.Join(e.root, "bin", "verify"), stubVerify, 0o755)
	writeFile(t, filepath.Join(e.root, "bin_debug", "verify_debug"), stubVerify, 0o755)
	writeFile(t, filepath.Join(e.root, "cell", "Library.txt"), "", 0o644)

	e.source = filepath.Join(e.work, "rtl", "top.v")
	writeFile(t, e.source, "module top(input [1:0] k); endmodule\n", 0o644)
	e.attrs = filepath.Join(e.work, "attrs.json")
	writeFile(t, e.attrs, `{"i:k": "secret_0"}`, 0o644)

	cfg := config.DefaultConfig()
	cfg.Root = e.root
	cfg.Yosys = yosys
	e.config = filepath.Join(e.work, "silver_run.json")
	require.NoError(t, cfg.Save(e.config))

	t.Setenv("STUB_YOSYS_LOG", e.yosysLog)
	t.Setenv("STUB_VERIFY_ARGV", e.argvFile)
	t.Setenv("STUB_VERIFY_EXIT", "")
	return e
}

func (e env) options() Options {
	return Options{
		Sources:       []string{"rtl/top.v"},
		AttrsJSON:     "attrs.json",
		Top:           "top",
		SilverVerbose: true,
		ConfigPath:    e.config,
		WorkDir:       e.work,
	}
}

func (e env) engineRuns(t *testing.T) int {
	t.Helper()
	raw, err := os.ReadFile(e.yosysLog)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(raw), "run")
}

func (e env) verifyArgv(t *testing.T) []string {
	t.Helper()
	raw, err := os.ReadFile(e.argvFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestRunSynthesizesAndVerifies(t *testing.T) {
	e := newEnv(t)
	var stdout bytes.Buffer
	out, err := New(&stdout, &stdout, nil).Run(context.Background(), e.options())
	require.NoError(t, err)
	require.True(t, out.Verified)
	require.True(t, out.Synthesis.Rebuilt)

	runDir := filepath.Join(e.work, "silver_run_top")
	require.Equal(t, runDir, out.RunDir)

	netlist := filepath.Join(runDir, "top_netlist.v")
	got, err := os.ReadFile(netlist)
	require.NoError(t, err)
	require.Equal(t, "module top(k);\n  input [1:0] k;\nendmodule\n", string(got))

	script, err := os.ReadFile(filepath.Join(runDir, "yosys_script.ys"))
	require.NoError(t, err)
	require.Contains(t, string(script), "setattr -set SILVER secret_0 i:k\n")
	require.Contains(t, string(script), "read_verilog -noautowire -defer -noassert -noassume -nolatches "+e.source+"\n")

	require.Equal(t, []string{
		filepath.Join(e.root, "bin", "verify"),
		"--verilog", "1",
		"--verilog-design_file", netlist,
		"--verilog-module_name", "top",
		"--insfile", filepath.Join(runDir, "top.nl"),
		"--verilog-libfile", filepath.Join(e.root, "cell", "Library.txt"),
		"--verbose", "1",
	}, e.verifyArgv(t))
}

func TestRunSkipsFreshNetlistButStillVerifies(t *testing.T) {
	e := newEnv(t)
	app := New(nil, nil, nil)
	_, err := app.Run(context.Background(), e.options())
	require.NoError(t, err)
	require.Equal(t, 1, e.engineRuns(t))

	require.NoError(t, os.Remove(e.argvFile))
	out, err := app.Run(context.Background(), e.options())
	require.NoError(t, err)
	require.False(t, out.Synthesis.Rebuilt)
	require.Equal(t, runner.ReasonFresh, out.Synthesis.Reason)
	require.True(t, out.Verified)
	require.Equal(t, 1, e.engineRuns(t))
	require.FileExists(t, e.argvFile)

	opts := e.options()
	opts.Force = true
	_, err = app.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 2, e.engineRuns(t))
}

func TestRunDebugVerifierQuietFlag(t *testing.T) {
	e := newEnv(t)
	opts := e.options()
	opts.Debug = true
	opts.SilverVerbose = false

	_, err := New(nil, nil, nil).Run(context.Background(), opts)
	require.NoError(t, err)

	argv := e.verifyArgv(t)
	require.Equal(t, filepath.Join(e.root, "bin_debug", "verify_debug"), argv[0])
	require.NotContains(t, argv, "--verbose")
}

func TestRunNoVerify(t *testing.T) {
	e := newEnv(t)
	opts := e.options()
	opts.NoVerify = true

	out, err := New(nil, nil, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, out.Verified)
	require.NoFileExists(t, e.argvFile)
}

func TestRunVerifierFailure(t *testing.T) {
	e := newEnv(t)
	t.Setenv("STUB_VERIFY_EXIT", "2")

	out, err := New(nil, nil, nil).Run(context.Background(), e.options())
	require.True(t, errors.Is(err, verify.ErrVerifierFailed))
	require.NotNil(t, out)
	require.True(t, out.Synthesis.Rebuilt)
	require.False(t, out.Verified)
}

func TestRunPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, e env, o *Options)
		wantErr error
	}{
		{
			name:    "missing_top",
			mutate:  func(t *testing.T, e env, o *Options) { o.Top = "" },
			wantErr: ErrMissingTop,
		},
		{
			name: "missing_liberty",
			mutate: func(t *testing.T, e env, o *Options) {
				require.NoError(t, os.Remove(filepath.Join(e.root, "yosys", "LIB", "custom_cells.lib")))
			},
			wantErr: config.ErrMissingLiberty,
		},
		{
			name:    "missing_attributes",
			mutate:  func(t *testing.T, e env, o *Options) { o.AttrsJSON = "nope.json" },
			wantErr: config.ErrMissingAttributes,
		},
		{
			name:    "no_attributes_flag",
			mutate:  func(t *testing.T, e env, o *Options) { o.AttrsJSON = "" },
			wantErr: config.ErrMissingAttributes,
		},
		{
			name:    "no_sources",
			mutate:  func(t *testing.T, e env, o *Options) { o.Sources = nil },
			wantErr: ErrNoSources,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			opts := e.options()
			tt.mutate(t, e, &opts)

			_, err := New(nil, nil, nil).Run(context.Background(), opts)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			require.Equal(t, 0, e.engineRuns(t))
			require.NoFileExists(t, e.argvFile)
		})
	}
}

func TestRunUnsupportedSource(t *testing.T) {
	e := newEnv(t)
	opts := e.options()
	opts.Sources = []string{"rtl/top.v", "notes.txt"}

	_, err := New(nil, nil, nil).Run(context.Background(), opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notes.txt")
	require.Equal(t, 0, e.engineRuns(t))
}

func TestRunUsesConfiguredSources(t *testing.T) {
	e := newEnv(t)
	cfg, err := config.LoadFile(e.config)
	require.NoError(t, err)
	cfg.Sources = []string{"rtl/*.v"}
	require.NoError(t, cfg.Save(e.config))

	opts := e.options()
	opts.Sources = nil
	out, err := New(nil, nil, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	require.True(t, out.Synthesis.Rebuilt)
}

func TestPlanDoesNotRunAnything(t *testing.T) {
	e := newEnv(t)
	planned, err := New(nil, nil, nil).Plan(e.options())
	require.NoError(t, err)
	plan := planned.Plan
	require.Equal(t, filepath.Join(e.work, "silver_run_top"), planned.RunDir)
	require.Equal(t, []string{e.source}, planned.Sources.Paths())
	require.Equal(t, filepath.Join(e.work, "silver_run_top", "top_netlist.v"), plan.Artifacts.Netlist)
	require.Equal(t, "write_verilog", plan.Script[len(plan.Script)-1].Name)
	require.Equal(t, 0, e.engineRuns(t))
	require.NoDirExists(t, filepath.Join(e.work, "silver_run_top"))
}

func TestRunRelativeEnginePathFromConfig(t *testing.T) {
	e := newEnv(t)
	writeFile(t, filepath.Join(e.work, "tools", "yosys"), stubYosys, 0o755)
	cfg, err := config.LoadFile(e.config)
	require.NoError(t, err)
	cfg.Yosys = "./tools/yosys"
	require.NoError(t, cfg.Save(e.config))

	out, err := New(nil, nil, nil).Run(context.Background(), e.options())
	require.NoError(t, err)
	require.True(t, out.Synthesis.Rebuilt)
	require.Equal(t, filepath.Join(e.work, "tools", "yosys"), out.Synthesis.Command[0])
	require.Equal(t, 1, e.engineRuns(t))
}
