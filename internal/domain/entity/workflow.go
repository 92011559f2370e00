package entity

// Workflow describes one approval chain: an ordered set of level
// definitions, optionally partitioned by a secondary dimension such as a
// cost-centre type. Definitions are provisioned out-of-band and read-only
// at runtime.
type Workflow struct {
	ID          string     `json:"id"`
	EntityType  string     `json:"entity_type"`
	Partitioned bool       `json:"partitioned"`
	Levels      []LevelDef `json:"levels"`
}

// LevelDef binds one level of a workflow to the role that must act on it.
// Partition is set iff the workflow is partitioned; at most one LevelDef
// exists per (level, partition) pair.
type LevelDef struct {
	Level         int     `json:"level"`
	Role          string  `json:"role"`
	Partition     string  `json:"partition,omitempty"`
	ApprovalLimit float64 `json:"approval_limit,omitempty"` // advisory, not enforced
}

// LevelsForRole returns the level definitions bound to the given role.
func (w *Workflow) LevelsForRole(role string) []LevelDef {
	var defs []LevelDef
	for _, d := range w.Levels {
		if d.Role == role {
			defs = append(defs, d)
		}
	}
	return defs
}

// MaxLevel returns the highest defined level, 0 for an empty workflow.
func (w *Workflow) MaxLevel() int {
	max := 0
	for _, d := range w.Levels {
		if d.Level > max {
			max = d.Level
		}
	}
	return max
}
