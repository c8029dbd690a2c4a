package runner

import (
	"fmt"

	"github.com/robert-at-pretension-io/silver-run/internal/fsutil"
	"github.com/robert-at-pretension-io/silver-run/internal/source"
)

// Rebuild reasons reported by NeedsRebuild. A stale result is "stale:<path>".
const (
	ReasonForced  = "forced"
	ReasonMissing = "missing"
	ReasonFresh   = "fresh"
	reasonStale   = "stale:"
)

// NeedsRebuild decides whether the netlist must be synthesized again. It is
// rebuilt when forced, when it does not exist, or when any source was modified
// strictly after it.
func NeedsRebuild(netlist string, sources []source.SourceFile, force bool) (bool, string, error) {
	if force {
		return true, ReasonForced, nil
	}

	built, ok, err := fsutil.ModTime(netlist)
	if err != nil {
		return false, "", fmt.Errorf("stat netlist: %w", err)
	}
	if !ok {
		return true, ReasonMissing, nil
	}

	for _, src := range sources {
		mod, ok, err := fsutil.ModTime(src.Path)
		if err != nil {
			return false, "", fmt.Errorf("stat source: %w", err)
		}
		if !ok {
			return false, "", fmt.Errorf("stat source: %s does not exist", src.Path)
		}
		if mod.After(built) {
			return true, reasonStale + src.Path, nil
		}
	}
	return false, ReasonFresh, nil
}
