// Package policy checks a built synthesis script against ordering rules
// before the engine is started.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/silver-run/internal/synth"
)

//go:embed pipeline.rego
var pipelineModule string

// Engine evaluates the pipeline rules.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Violation is one broken rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the violations found, sorted by rule then message.
type Result struct {
	Violations []Violation `json:"violations"`
}

// OK reports whether the script passed every rule.
func (r *Result) OK() bool {
	return r == nil || len(r.Violations) == 0
}

// Input is the document the rules see.
type Input struct {
	StageOrder []synth.Stage   `json:"stage_order"`
	Commands   []synth.Command `json:"commands"`
}

// New prepares the embedded rules.
func New(ctx context.Context) (*Engine, error) {
	query, err := rego.New(
		rego.Module("pipeline.rego", pipelineModule),
		rego.Query("data.silver.pipeline.violations"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing pipeline query: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate runs the rules against script.
func (e *Engine) Evaluate(ctx context.Context, script synth.Script) (*Result, error) {
	input, err := structToMap(Input{StageOrder: synth.StageOrder(), Commands: script})
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}

	result := &Result{}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:    getString(vmap, "rule"),
					Message: getString(vmap, "message"),
				})
			}
		}
	}
	sort.Slice(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
	return result, nil
}
