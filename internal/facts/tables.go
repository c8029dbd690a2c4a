package facts

import (
	"github.com/robert-at-pretension-io/silver-run/internal/source"
	"github.com/robert-at-pretension-io/silver-run/internal/synth"
)

// Tables is the relational view of a synthesis plan. Each slice is a
// relation with flat rows, so two plans can be compared row by row.
type Tables struct {
	Sources    []SourceRow    `json:"sources"`
	Commands   []CommandRow   `json:"commands"`
	Attributes []AttributeRow `json:"attributes"`
	Artifacts  []ArtifactRow  `json:"artifacts"`
	Plugins    []PluginRow    `json:"plugins"`
}

type SourceRow struct {
	Path    string `json:"path"`
	Dialect string `json:"dialect"`
	Order   int    `json:"order"`
}

type CommandRow struct {
	Stage string `json:"stage"`
	Line  string `json:"line"`
	Index int    `json:"index"`
}

// AttributeRow is one role annotation set in the annotate stage.
type AttributeRow struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Select string `json:"select"`
}

type ArtifactRow struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type PluginRow struct {
	Name string `json:"name"`
}

// BuildTables flattens a classification and the plan built from it.
func BuildTables(sources source.Classification, plan synth.Plan) Tables {
	out := emptyTables()

	for i, f := range sources.Files {
		out.Sources = append(out.Sources, SourceRow{Path: f.Path, Dialect: f.Dialect.String(), Order: i})
	}

	for i, cmd := range plan.Script {
		out.Commands = append(out.Commands, CommandRow{Stage: string(cmd.Stage), Line: cmd.String(), Index: i})
		if cmd.Stage == synth.StageAnnotate && cmd.Name == "setattr" && len(cmd.Args) == 4 && cmd.Args[0] == "-set" {
			out.Attributes = append(out.Attributes, AttributeRow{Name: cmd.Args[1], Value: cmd.Args[2], Select: cmd.Args[3]})
		}
	}

	out.Artifacts = append(out.Artifacts,
		ArtifactRow{Kind: "netlist", Path: plan.Artifacts.Netlist},
		ArtifactRow{Kind: "json", Path: plan.Artifacts.JSONNetlist},
	)

	if plan.Plugins.GHDL {
		out.Plugins = append(out.Plugins, PluginRow{Name: "ghdl"})
	}
	if plan.Plugins.Slang {
		out.Plugins = append(out.Plugins, PluginRow{Name: "slang"})
	}
	return out
}

func emptyTables() Tables {
	return Tables{
		Sources:    []SourceRow{},
		Commands:   []CommandRow{},
		Attributes: []AttributeRow{},
		Artifacts:  []ArtifactRow{},
		Plugins:    []PluginRow{},
	}
}
