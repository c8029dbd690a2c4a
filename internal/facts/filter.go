package facts

// FilterTablesByStages keeps only the command rows of the given stages.
// Attribute rows survive only when the annotate stage is kept. Other
// relations are untouched.
func FilterTablesByStages(tables Tables, stages map[string]bool) Tables {
	out := tables
	out.Commands = []CommandRow{}
	for _, row := range tables.Commands {
		if stages[row.Stage] {
			out.Commands = append(out.Commands, row)
		}
	}
	if !stages["annotate"] {
		out.Attributes = []AttributeRow{}
	}
	return out
}

// FilterDeltaByStages applies FilterTablesByStages to both sides of a delta.
func FilterDeltaByStages(delta Delta, stages map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByStages(delta.Added, stages),
		Removed: FilterTablesByStages(delta.Removed, stages),
	}
}
