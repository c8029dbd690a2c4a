package facts

// Delta captures added and removed rows between two plan snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
// Command rows are keyed by stage and text, so a command that only moved is
// not reported.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the snapshots were identical.
func (d Delta) Empty() bool {
	return d.Added.rows() == 0 && d.Removed.rows() == 0
}

func (t Tables) rows() int {
	return len(t.Sources) + len(t.Commands) + len(t.Attributes) + len(t.Artifacts) + len(t.Plugins)
}

func diffTables(from, to Tables) Tables {
	return Tables{
		Sources: diffRows(from.Sources, to.Sources, func(r SourceRow) string {
			return r.Path + "|" + r.Dialect
		}),
		Commands: diffRows(from.Commands, to.Commands, func(r CommandRow) string {
			return r.Stage + "|" + r.Line
		}),
		Attributes: diffRows(from.Attributes, to.Attributes, func(r AttributeRow) string {
			return r.Name + "|" + r.Select + "|" + r.Value
		}),
		Artifacts: diffRows(from.Artifacts, to.Artifacts, func(r ArtifactRow) string {
			return r.Kind + "|" + r.Path
		}),
		Plugins: diffRows(from.Plugins, to.Plugins, func(r PluginRow) string {
			return r.Name
		}),
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}
