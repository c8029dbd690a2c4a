package synth

import "strings"

// Stage groups commands by their role in the flow. Stages appear in the script
// in the order of the constants below.
type Stage string

const (
	StageRead      Stage = "read"
	StageLibrary   Stage = "library"
	StagePrepare   Stage = "prepare"
	StageNormalize Stage = "normalize"
	StageAnnotate  Stage = "annotate"
	StageFlatten   Stage = "flatten"
	StageSynth     Stage = "synth"
	StagePreSplit  Stage = "presplit"
	StageMap       Stage = "map"
	StagePostMap   Stage = "postmap"
	StageStrip     Stage = "strip"
	StageFinalize  Stage = "finalize"
	StageExport    Stage = "export"
)

// StageOrder returns every stage in script order.
func StageOrder() []Stage {
	return []Stage{
		StageRead, StageLibrary, StagePrepare, StageNormalize, StageAnnotate,
		StageFlatten, StageSynth, StagePreSplit, StageMap, StagePostMap,
		StageStrip, StageFinalize, StageExport,
	}
}

// Command is one Yosys script command.
type Command struct {
	Stage Stage    `json:"stage"`
	Name  string   `json:"name"`
	Args  []string `json:"args"`
}

// String renders the command as a script line.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// HasArg reports whether arg appears among the command's arguments.
func (c Command) HasArg(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// Script is an ordered command sequence. It is only appended to while being built.
type Script []Command

func (s *Script) add(stage Stage, name string, args ...string) {
	if args == nil {
		args = []string{}
	}
	*s = append(*s, Command{Stage: stage, Name: name, Args: args})
}

func (s *Script) log(stage Stage, msg string) {
	s.add(stage, "log", append([]string{"-stdout", "***"}, strings.Fields(msg)...)...)
}

// purge appends the cleanup pass that runs after most transformations.
func (s *Script) purge(stage Stage) {
	s.add(stage, "opt_clean", "-purge")
}

// Lines returns the script lines.
func (s Script) Lines() []string {
	lines := make([]string, len(s))
	for i, c := range s {
		lines[i] = c.String()
	}
	return lines
}

// Text returns the script as written to the script file.
func (s Script) Text() string {
	return strings.Join(s.Lines(), "\n")
}

// Index returns the position of the first command at or after from that
// satisfies match, or -1.
func (s Script) Index(from int, match func(Command) bool) int {
	for i := from; i < len(s); i++ {
		if match(s[i]) {
			return i
		}
	}
	return -1
}

// InStage returns the commands of one stage in order.
func (s Script) InStage(stage Stage) []Command {
	var out []Command
	for _, c := range s {
		if c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

// Named matches commands by name and, optionally, required arguments.
func Named(name string, args ...string) func(Command) bool {
	return func(c Command) bool {
		if c.Name != name {
			return false
		}
		for _, a := range args {
			if !c.HasArg(a) {
				return false
			}
		}
		return true
	}
}
