package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclConfigFile mirrors Config for decoding silver_run.hcl.
type hclConfigFile struct {
	Root          string       `hcl:"root,optional"`
	Yosys         string       `hcl:"yosys,optional"`
	Liberty       string       `hcl:"liberty,optional"`
	Mode          string       `hcl:"mode,optional"`
	SVFrontend    string       `hcl:"sv_frontend,optional"`
	AttributeName string       `hcl:"attribute_name,optional"`
	Sources       []string     `hcl:"sources,optional"`
	Parameters    cty.Value    `hcl:"parameters,optional"`
	Defines       cty.Value    `hcl:"defines,optional"`
	Quiet         *bool        `hcl:"quiet,optional"`
	Timing        bool         `hcl:"timing,optional"`
	TimingPath    string       `hcl:"timing_path,optional"`
	Verifier      *hclVerifier `hcl:"verifier,block"`
}

type hclVerifier struct {
	Debug   bool   `hcl:"debug,optional"`
	Verbose *bool  `hcl:"verbose,optional"`
	InsFile string `hcl:"ins_file,optional"`
	LibFile string `hcl:"lib_file,optional"`
}

// loadHCL decodes an HCL configuration file. Attribute names use the HCL
// snake_case convention; values are the same as in the JSON form.
func loadHCL(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var raw hclConfigFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	cfg := &Config{
		Root:          raw.Root,
		Yosys:         raw.Yosys,
		Liberty:       raw.Liberty,
		Mode:          raw.Mode,
		SVFrontend:    raw.SVFrontend,
		AttributeName: raw.AttributeName,
		Sources:       raw.Sources,
		Quiet:         raw.Quiet,
		Timing:        raw.Timing,
		TimingPath:    raw.TimingPath,
	}
	if raw.Verifier != nil {
		cfg.Verifier = VerifierConfig{
			Debug:   raw.Verifier.Debug,
			Verbose: raw.Verifier.Verbose,
			InsFile: raw.Verifier.InsFile,
			LibFile: raw.Verifier.LibFile,
		}
	}

	params, err := ctyScalars(raw.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%s: parameters: %w", path, err)
	}
	for name, v := range params {
		if v == nil {
			return nil, fmt.Errorf("%s: parameter %q has no value", path, name)
		}
		if cfg.Parameters == nil {
			cfg.Parameters = make(map[string]Scalar)
		}
		cfg.Parameters[name] = *v
	}

	defines, err := ctyScalars(raw.Defines)
	if err != nil {
		return nil, fmt.Errorf("%s: defines: %w", path, err)
	}
	if len(defines) > 0 {
		cfg.Defines = defines
	}

	return cfg, nil
}

// ctyScalars converts an HCL object or map of scalars. A null entry maps to nil.
func ctyScalars(v cty.Value) (map[string]*Scalar, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", ty.FriendlyName())
	}

	out := make(map[string]*Scalar)
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		name := k.AsString()
		if ev.IsNull() {
			out[name] = nil
			continue
		}
		if !ev.IsKnown() {
			return nil, fmt.Errorf("%q: value is not known", name)
		}
		var s Scalar
		switch ev.Type() {
		case cty.String:
			s = Scalar(ev.AsString())
		case cty.Number:
			s = Scalar(ev.AsBigFloat().Text('f', -1))
		case cty.Bool:
			if ev.True() {
				s = "1"
			} else {
				s = "0"
			}
		default:
			return nil, fmt.Errorf("%q: expected a scalar, got %s", name, ev.Type().FriendlyName())
		}
		out[name] = &s
	}
	return out, nil
}
