package netlist

import (
	"regexp"
	"strings"
)

var (
	// Pattern: input|output|inout [wire|reg] [[hi:lo]] <name> ;
	portPattern = regexp.MustCompile(`^\s*(input|output|inout)\s+((wire|reg)\s+)?(\[\s*\d+\s*:\s*\d+\s*\]\s*)?(\S+)\s*;`)
)

// portDecl is a port declaration recognized on one line.
type portDecl struct {
	Direction string
	Kind      string // "wire", "reg" or ""
	Range     string // "[7:0]" as written, or ""
	Name      string
}

// matchPort returns the port declaration on line, if any.
func matchPort(line string) (portDecl, bool) {
	m := portPattern.FindStringSubmatch(line)
	if m == nil {
		return portDecl{}, false
	}
	return portDecl{
		Direction: m[1],
		Kind:      m[3],
		Range:     strings.TrimSpace(m[4]),
		Name:      strings.TrimSpace(m[5]),
	}, true
}

// regexpSpace is the set \s matches in a regexp.
const regexpSpace = " \t\n\f\r"

// isRedecl reports whether line starts with "wire|reg [range] name ;" repeating p.
// The range is compared verbatim, so "[7:0]" never matches "[ 7:0 ]".
func isRedecl(p portDecl, line string) bool {
	rest := strings.TrimLeft(line, regexpSpace)
	switch {
	case strings.HasPrefix(rest, "wire"):
		rest = rest[len("wire"):]
	case strings.HasPrefix(rest, "reg"):
		rest = rest[len("reg"):]
	default:
		return false
	}
	rest = strings.TrimLeft(rest, regexpSpace)
	if p.Range != "" {
		var ok bool
		if rest, ok = strings.CutPrefix(rest, p.Range); !ok {
			return false
		}
		rest = strings.TrimLeft(rest, regexpSpace)
	}
	rest, ok := strings.CutPrefix(rest, p.Name)
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(rest, regexpSpace), ";")
}
