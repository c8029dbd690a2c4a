// Package synth builds the Yosys command script that turns classified sources
// into a liberty-mapped netlist for the SILVER verifier.
package synth

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/robert-at-pretension-io/silver-run/internal/source"
)

// Mode selects how much optimization the flow performs.
type Mode string

const (
	ModeNone    Mode = "none"    // keep hierarchy, light cleanup only
	ModeFlatten Mode = "flatten" // flatten after annotation
	ModeFull    Mode = "full"    // flatten plus the aggressive opt rounds
)

// ParseMode validates a mode name. An empty name means ModeFlatten.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeFlatten, nil
	case ModeNone, ModeFlatten, ModeFull:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown optimization mode %q", s)
}

func (m Mode) flatten() bool { return m == ModeFlatten || m == ModeFull }
func (m Mode) full() bool    { return m == ModeFull }

// SVFrontend selects the SystemVerilog reader.
type SVFrontend string

const (
	FrontendSlang   SVFrontend = "slang"
	FrontendBuiltin SVFrontend = "builtin"
)

// Param is a top-level parameter override passed to prep.
type Param struct {
	Name  string
	Value string
}

// Define is a preprocessor define. Value is used only when HasValue is set.
type Define struct {
	Name     string
	Value    string
	HasValue bool
}

func (d Define) flag() string {
	if d.HasValue {
		return "-D" + d.Name + "=" + d.Value
	}
	return "-D" + d.Name
}

// Attribute sets AttributeName to Value on the objects matched by Select.
type Attribute struct {
	Select string
	Value  string
}

// DefaultAttributeName is the attribute SILVER reads share/role annotations from.
const DefaultAttributeName = "SILVER"

// Config is everything the builder needs. It is not modified by Build.
type Config struct {
	Sources source.Classification

	// Top is the top module. Empty requests automatic top detection.
	Top string

	Parameters    []Param
	Defines       []Define
	Attributes    []Attribute
	AttributeName string

	Mode       Mode
	SVFrontend SVFrontend

	Liberty     string
	Netlist     string
	JSONNetlist string // defaults to Netlist with a .json suffix
}

// Artifacts are the files the engine is expected to write.
type Artifacts struct {
	Netlist     string
	JSONNetlist string
}

// Plugins are engine modules that must be loaded on the command line.
type Plugins struct {
	GHDL  bool
	Slang bool
}

// Plan is a built script with its declared outputs.
type Plan struct {
	Script    Script
	Artifacts Artifacts
	Plugins   Plugins
}

var (
	ErrNoSources = errors.New("no source files")
	ErrNoLiberty = errors.New("liberty library path not set")
	ErrNoNetlist = errors.New("netlist output path not set")

	// ErrWhitespace means a path or value would be split into several script words.
	ErrWhitespace = errors.New("script argument contains whitespace")
)

var (
	verilogReaderArgs = []string{"-noautowire", "-defer", "-noassert", "-noassume", "-nolatches"}
	slangReaderArgs   = []string{"--extern-modules", "--best-effort-hierarchy"}
	ghdlArgs          = []string{"--std=08"}

	synthArgs        = []string{"-noabc", "-noshare"}
	writeVerilogArgs = []string{"-noexpr", "-nodec", "-simple-lhs"}

	// abcScript is handed to abc verbatim. Spaces must be commas inside -script.
	abcScript = strings.ReplaceAll(
		"+strash;&get -n; &fraig -x; &put; scorr; dc2; strash; &get -n; &dch -f; &nf; &put", " ", ",")

	// strippedAttributes never reach the exported netlist.
	strippedAttributes = []struct {
		module bool
		name   string
	}{
		{true, "top"}, {false, "top"},
		{true, "src"}, {false, "src"},
		{true, "keep_hierarchy"}, {false, "keep_hierarchy"},
		{true, "keep"}, {false, "dont_touch"},
		{true, "dont_touch"}, {false, "keep"},
	}
)

// Build assembles the synthesis script for cfg. Nothing is executed and the
// filesystem is not touched.
func Build(cfg Config) (Plan, error) {
	if len(cfg.Sources.Files) == 0 {
		return Plan{}, ErrNoSources
	}
	if cfg.Liberty == "" {
		return Plan{}, ErrNoLiberty
	}
	if cfg.Netlist == "" {
		return Plan{}, ErrNoNetlist
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return Plan{}, err
	}
	frontend := cfg.SVFrontend
	if frontend == "" {
		frontend = FrontendSlang
	}
	if frontend != FrontendSlang && frontend != FrontendBuiltin {
		return Plan{}, fmt.Errorf("unknown SystemVerilog front end %q", frontend)
	}
	attrName := cfg.AttributeName
	if attrName == "" {
		attrName = DefaultAttributeName
	}
	artifacts := Artifacts{Netlist: cfg.Netlist, JSONNetlist: cfg.JSONNetlist}
	if artifacts.JSONNetlist == "" {
		artifacts.JSONNetlist = strings.TrimSuffix(cfg.Netlist, filepath.Ext(cfg.Netlist)) + ".json"
	}

	if err := checkWords(cfg, artifacts); err != nil {
		return Plan{}, err
	}

	var s Script
	addReaders(&s, cfg, frontend)

	s.add(StageLibrary, "read_liberty", "-lib", cfg.Liberty)

	var prep []string
	if cfg.Top != "" {
		prep = append(prep, "-top", cfg.Top)
	} else {
		prep = append(prep, "-auto-top")
	}
	for _, p := range cfg.Parameters {
		prep = append(prep, "-chparam", p.Name, p.Value)
	}
	s.add(StagePrepare, "prep", prep...)

	s.add(StageNormalize, "async2sync")
	s.add(StageNormalize, "memory_map")
	s.purge(StageNormalize)
	s.add(StageNormalize, "check", "-assert")

	for _, a := range cfg.Attributes {
		s.add(StageAnnotate, "setattr", "-set", attrName, a.Value, a.Select)
	}

	if mode.flatten() {
		s.add(StageFlatten, "flatten")
		s.purge(StageFlatten)
	}

	s.log(StageSynth, "Starting synthesis")
	s.add(StageSynth, "synth", synthArgs...)
	s.purge(StageSynth)
	s.log(StageSynth, "Synthesis completed.")

	s.add(StagePreSplit, "splitnets", "-driver")
	s.purge(StagePreSplit)

	s.purge(StageMap)
	s.log(StageMap, "Running DFF library mapping")
	s.add(StageMap, "dfflibmap", "-liberty", cfg.Liberty)
	s.purge(StageMap)
	s.log(StageMap, "Running ABC")
	s.add(StageMap, "abc", "-liberty", cfg.Liberty, "-script", abcScript)
	s.purge(StageMap)
	s.purge(StageMap)
	s.add(StageMap, "check", "-mapped", "-assert")

	s.add(StagePostMap, "insbuf")
	if mode.full() {
		addFullOpt(&s, StagePostMap)
	}
	s.add(StagePostMap, "setundef", "-zero")
	if mode.full() {
		s.add(StagePostMap, "opt", "-full", "-purge")
	} else {
		s.purge(StagePostMap)
	}
	s.add(StagePostMap, "opt", "-purge")
	s.add(StagePostMap, "flatten")
	s.add(StagePostMap, "opt", "-purge")
	s.add(StagePostMap, "check", "-assert", "-noinit", "-mapped")

	for _, attr := range strippedAttributes {
		if attr.module {
			s.add(StageStrip, "setattr", "-mod", "-unset", attr.name)
		} else {
			s.add(StageStrip, "setattr", "-unset", attr.name)
		}
	}

	if mode.full() {
		addFullOpt(&s, StageFinalize)
	} else {
		s.purge(StageFinalize)
	}
	s.add(StageFinalize, "splitnets", "-driver")
	if mode.full() {
		s.add(StageFinalize, "opt", "-full", "-purge")
	} else {
		s.purge(StageFinalize)
	}

	s.add(StageExport, "write_json", artifacts.JSONNetlist)
	s.add(StageExport, "stat", "-liberty", cfg.Liberty)
	s.add(StageExport, "check", "-assert", "-mapped", "-noinit", "-initdrv")
	s.add(StageExport, "write_verilog", append(append([]string{}, writeVerilogArgs...), artifacts.Netlist)...)

	return Plan{
		Script:    s,
		Artifacts: artifacts,
		Plugins: Plugins{
			GHDL:  cfg.Sources.NeedsVHDLPlugin,
			Slang: frontend == FrontendSlang && cfg.Sources.NeedsSystemVerilogPlugin,
		},
	}, nil
}

// addReaders emits one reader per Verilog/SystemVerilog file in source order,
// then a single ghdl elaboration covering every VHDL file.
func addReaders(s *Script, cfg Config, frontend SVFrontend) {
	defines := make([]string, 0, len(cfg.Defines))
	for _, d := range cfg.Defines {
		defines = append(defines, d.flag())
	}

	var vhdl []string
	for _, f := range cfg.Sources.Files {
		switch f.Dialect {
		case source.SystemVerilog:
			if frontend == FrontendSlang {
				s.add(StageRead, "read_slang", join(slangReaderArgs, defines, []string{f.Path})...)
			} else {
				s.add(StageRead, "read_verilog", join(verilogReaderArgs, defines, []string{"-sv", f.Path})...)
			}
		case source.Verilog:
			s.add(StageRead, "read_verilog", join(verilogReaderArgs, defines, []string{f.Path})...)
		case source.VHDL:
			vhdl = append(vhdl, f.Path)
		}
	}
	if len(vhdl) > 0 {
		s.add(StageRead, "ghdl", join(ghdlArgs, vhdl, []string{"-e"})...)
	}
}

// checkWords rejects paths and values that Yosys would split on whitespace.
// Attribute selections are exempt: "w:a %co" is a multi-word selection.
func checkWords(cfg Config, artifacts Artifacts) error {
	type word struct{ what, value string }
	words := []word{
		{"liberty", cfg.Liberty},
		{"netlist", artifacts.Netlist},
		{"json netlist", artifacts.JSONNetlist},
		{"top", cfg.Top},
	}
	for _, f := range cfg.Sources.Files {
		words = append(words, word{"source", f.Path})
	}
	for _, p := range cfg.Parameters {
		words = append(words, word{"parameter " + p.Name, p.Value})
	}
	for _, d := range cfg.Defines {
		words = append(words, word{"define " + d.Name, d.Value})
	}
	for _, a := range cfg.Attributes {
		words = append(words, word{"attribute " + a.Select, a.Value})
	}
	for _, w := range words {
		if strings.ContainsFunc(w.value, unicode.IsSpace) {
			return fmt.Errorf("%w: %s %q", ErrWhitespace, w.what, w.value)
		}
	}
	return nil
}

func addFullOpt(s *Script, stage Stage) {
	s.add(stage, "opt", "-full", "-purge")
	s.add(stage, "opt", "-full", "-fine", "-purge")
	s.add(stage, "opt", "-full", "-fine", "-sat", "-purge")
	s.add(stage, "opt", "-full", "-purge")
}

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
