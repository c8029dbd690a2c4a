package source

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Dialect identifies the front-end reader a source file needs.
type Dialect int

const (
	SystemVerilog Dialect = iota
	Verilog
	VHDL
)

func (d Dialect) String() string {
	switch d {
	case SystemVerilog:
		return "sv"
	case Verilog:
		return "v"
	case VHDL:
		return "vhdl"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// ErrUnsupportedSource is returned for files whose extension maps to no reader.
var ErrUnsupportedSource = errors.New("unsupported source file type")

// SourceFile is a classified source. Path is absolute.
type SourceFile struct {
	Path    string
	Dialect Dialect
}

// Classification is the ordered result of classifying a source list.
type Classification struct {
	Files []SourceFile

	// NeedsVHDLPlugin is set when any VHDL file is present (ghdl plugin).
	NeedsVHDLPlugin bool

	// NeedsSystemVerilogPlugin is set when any SystemVerilog file is present (slang plugin).
	NeedsSystemVerilogPlugin bool
}

// DialectOf maps a file extension to its dialect. Matching is case-sensitive.
func DialectOf(path string) (Dialect, error) {
	switch filepath.Ext(path) {
	case ".sv":
		return SystemVerilog, nil
	case ".v":
		return Verilog, nil
	case ".vhd", ".vhdl":
		return VHDL, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
}

// Classify assigns a dialect to every path, keeping the input order.
// Relative paths are resolved against baseDir.
func Classify(paths []string, baseDir string) (Classification, error) {
	var c Classification
	for _, p := range paths {
		d, err := DialectOf(p)
		if err != nil {
			return Classification{}, err
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		c.Files = append(c.Files, SourceFile{Path: filepath.Clean(p), Dialect: d})
		switch d {
		case VHDL:
			c.NeedsVHDLPlugin = true
		case SystemVerilog:
			c.NeedsSystemVerilogPlugin = true
		}
	}
	return c, nil
}

// Paths returns the classified paths in order.
func (c Classification) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// ByDialect returns the files of one dialect, in order.
func (c Classification) ByDialect(d Dialect) []SourceFile {
	var out []SourceFile
	for _, f := range c.Files {
		if f.Dialect == d {
			out = append(out, f)
		}
	}
	return out
}
