package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/silver-run/internal/config"
	"github.com/robert-at-pretension-io/silver-run/internal/facts"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func TestSilverRunE2E(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "silver-run")
	work := newWorkDir(t, repoRoot)
	env := testEnv(t)

	args := []string{"--attrs-json", "attrs.json", "--top", "dom_and_top", "dom_and.v", "dom_and_top.sv", "-v"}
	res := runBinary(t, bin, work, env, args...)
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)
	require.Contains(t, res.stdout, "yosys stub: running yosys_script.ys")
	require.Contains(t, res.stdout, "verify stub: ok")

	runDir := filepath.Join(work, "silver_run_dom_and_top")
	netlist, err := os.ReadFile(filepath.Join(runDir, "dom_and_top_netlist.v"))
	require.NoError(t, err)
	require.NotContains(t, string(netlist), "  wire clk;")
	require.Contains(t, string(netlist), "  wire _0_;")

	script, err := os.ReadFile(filepath.Join(runDir, "yosys_script.ys"))
	require.NoError(t, err)
	require.Contains(t, string(script), "setattr -set SILVER secret_0 dom_and_top/i:a\n")

	// fresh netlist: no engine run, verifier still runs
	res = runBinary(t, bin, work, env, args...)
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)
	require.NotContains(t, res.stdout, "yosys stub")
	require.Contains(t, res.stdout, "verify stub: ok")

	res = runBinary(t, bin, work, env, append(args, "--force-synth", "--no-verify")...)
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)
	require.Contains(t, res.stdout, "yosys stub")
	require.NotContains(t, res.stdout, "verify stub")
}

func TestSilverRunE2EFailures(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "silver-run")
	work := newWorkDir(t, repoRoot)
	env := testEnv(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"missing_top", []string{"--attrs-json", "attrs.json", "dom_and.v"}, 2, "--top"},
		{"missing_attrs_file", []string{"--attrs-json", "nope.json", "-t", "dom_and_top", "dom_and.v"}, 1, "attributes file not found"},
		{"unsupported_source", []string{"--attrs-json", "attrs.json", "-t", "dom_and_top", "attrs.json"}, 1, "unsupported source file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runBinary(t, bin, work, env, tt.args...)
			require.Equal(t, tt.wantCode, res.code)
			require.Contains(t, res.stderr, tt.wantErr)
			require.NoDirExists(t, filepath.Join(work, "silver_run_dom_and_top"))
		})
	}
}

func TestSilverRunInit(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "silver-run")
	work := t.TempDir()

	res := runBinary(t, bin, work, testEnv(t), "init")
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)
	require.Contains(t, res.stdout, "Created silver_run.json")

	cfg, err := config.LoadFile(filepath.Join(work, "silver_run.json"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig(), cfg)
}

func TestSilverPlanE2E(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "silver-plan")
	work := newWorkDir(t, repoRoot)
	env := testEnv(t)

	base := []string{"--attrs-json", "attrs.json", "--top", "dom_and_top", "dom_and.v", "dom_and_top.sv"}
	res := runBinary(t, bin, work, env, append(base, "--format", "json", "-o", "plan.json")...)
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)

	raw, err := os.ReadFile(filepath.Join(work, "plan.json"))
	require.NoError(t, err)
	var tables facts.Tables
	require.NoError(t, json.Unmarshal(raw, &tables))
	require.Len(t, tables.Sources, 2)
	require.Len(t, tables.Attributes, 5)
	require.Equal(t, []facts.PluginRow{{Name: "slang"}}, tables.Plugins)
	require.NoDirExists(t, filepath.Join(work, "silver_run_dom_and_top"))

	// drop one attribute and diff against the saved plan
	require.NoError(t, os.WriteFile(filepath.Join(work, "attrs.json"), []byte(`{"dom_and_top/i:a": "secret_0"}`), 0o644))
	res = runBinary(t, bin, work, env, append(base, "--stage", "annotate", "--delta-from", "plan.json", "--delta-out", "delta.json")...)
	require.Equal(t, 0, res.code, "stderr:\n%s", res.stderr)
	require.Equal(t, "setattr -set SILVER secret_0 dom_and_top/i:a", strings.TrimSpace(res.stdout))

	raw, err = os.ReadFile(filepath.Join(work, "delta.json"))
	require.NoError(t, err)
	var delta facts.Delta
	require.NoError(t, json.Unmarshal(raw, &delta))
	require.Empty(t, delta.Added.Attributes)
	require.Len(t, delta.Removed.Attributes, 4)
}

func newWorkDir(t *testing.T, repoRoot string) string {
	t.Helper()
	work := t.TempDir()
	design := filepath.Join(repoRoot, "testdata", "designs", "dom_and")
	for _, name := range []string{"dom_and.v", "dom_and_top.sv", "attrs.json"} {
		data, err := os.ReadFile(filepath.Join(design, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(work, name), data, 0o644))
	}
	return work
}

func testEnv(t *testing.T) []string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	repoRoot := findRepoRoot(t)
	home := t.TempDir()
	return append(os.Environ(),
		"SILVER_ROOT="+filepath.Join(stubRoot, "silver"),
		"SILVER_E2E_NETLIST="+filepath.Join(repoRoot, "testdata", "designs", "dom_and", "netlist.v"),
		"PATH="+filepath.Join(stubRoot, "tools")+string(os.PathListSeparator)+os.Getenv("PATH"),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
	)
}

func runBinary(t *testing.T, bin, dir string, env []string, args ...string) result {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := result{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("%s failed to start: %v", filepath.Base(bin), err)
		}
		res.code = exitErr.ExitCode()
	}
	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}

func buildBinary(t *testing.T, repoRoot, name string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/"+name)
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build %s failed: %v\n%s", name, err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, "testdata", "designs", "dom_and", "attrs.json")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
