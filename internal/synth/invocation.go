package synth

// ScriptFile is the script name inside the run directory.
const ScriptFile = "yosys_script.ys"

// LogFile receives engine output in quiet mode.
const LogFile = "yosys.log"

// InvocationOptions control the engine command line.
type InvocationOptions struct {
	Binary string // defaults to "yosys"
	Quiet  bool

	// Script is the script path relative to the run directory. Defaults to ScriptFile.
	Script string
}

// Invocation returns the engine argv for plan. Plugins are command-line
// modules, never script commands.
func Invocation(plan Plan, opts InvocationOptions) []string {
	bin := opts.Binary
	if bin == "" {
		bin = "yosys"
	}
	script := opts.Script
	if script == "" {
		script = ScriptFile
	}
	argv := []string{bin, "-Q", "-T"}
	if opts.Quiet {
		argv = append(argv, "-q", "-l", LogFile)
	}
	if plan.Plugins.GHDL {
		argv = append(argv, "-m", "ghdl")
	}
	if plan.Plugins.Slang {
		argv = append(argv, "-m", "slang")
	}
	return append(argv, "-s", script)
}
