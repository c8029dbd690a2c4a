// Package netlist post-processes the structural Verilog netlist written by Yosys.
//
// Yosys declares every net as a plain wire/reg and, in some export modes, also
// as a typed port. The verifier rejects the pair as a redeclaration, so the
// fixer drops the wire/reg line when it directly follows the port line for the
// same name and bit range.
package netlist

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/robert-at-pretension-io/silver-run/internal/fsutil"
)

// Report summarizes one fixer pass.
type Report struct {
	Ports   int // port declarations seen
	Removed int // duplicate declarations dropped
}

// Fixer removes port/net declaration duplicates. The zero value is usable.
type Fixer struct {
	Logger *slog.Logger
}

// FixLines runs a single forward pass over lines and returns the kept lines.
// Only the line immediately after a port declaration is considered.
func FixLines(lines []string) []string {
	out, _ := Fixer{}.fixLines(lines)
	return out
}

// Fix applies FixLines to newline-separated text. A trailing newline is kept.
func Fix(text string) string {
	return strings.Join(FixLines(strings.Split(text, "\n")), "\n")
}

func (f Fixer) fixLines(lines []string) ([]string, Report) {
	var rep Report
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		out = append(out, line)
		port, ok := matchPort(line)
		if !ok {
			continue
		}
		rep.Ports++
		if i+1 >= len(lines) {
			break
		}
		if isRedecl(port, lines[i+1]) {
			rep.Removed++
			if f.Logger != nil {
				f.Logger.Debug("dropping duplicate declaration",
					"direction", port.Direction, "name", port.Name, "range", port.Range, "line", i+2)
			}
			i++
		}
	}
	return out, rep
}

// FixFile rewrites path in place.
func (f Fixer) FixFile(path string) (Report, error) {
	return f.FixFileTo(path, path)
}

// FixFileTo reads src, fixes it and writes the result to dst.
func (f Fixer) FixFileTo(src, dst string) (Report, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return Report{}, fmt.Errorf("read netlist: %w", err)
	}
	lines, rep := f.fixLines(strings.Split(string(data), "\n"))
	if err := fsutil.WriteFileAtomic(dst, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return Report{}, fmt.Errorf("write netlist: %w", err)
	}
	return rep, nil
}
