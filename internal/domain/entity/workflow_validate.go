package entity

import "fmt"

// Validate checks the structural invariants of a workflow definition:
// levels numbered 1..N with no gaps, level 0 never defined, at most one
// definition per (level, partition) pair, and partitions present iff the
// workflow is partitioned.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(w.Levels) == 0 {
		return fmt.Errorf("workflow %s has no levels", w.ID)
	}

	seen := make(map[[2]string]bool, len(w.Levels))
	levels := make(map[int]bool, len(w.Levels))
	max := 0
	for _, d := range w.Levels {
		if d.Level < 1 {
			return fmt.Errorf("workflow %s: level %d is reserved", w.ID, d.Level)
		}
		if d.Role == "" {
			return fmt.Errorf("workflow %s: level %d has no role", w.ID, d.Level)
		}
		if w.Partitioned && d.Partition == "" {
			return fmt.Errorf("workflow %s: level %d missing partition", w.ID, d.Level)
		}
		if !w.Partitioned && d.Partition != "" {
			return fmt.Errorf("workflow %s: level %d has partition on unpartitioned workflow", w.ID, d.Level)
		}
		key := [2]string{fmt.Sprintf("%d", d.Level), d.Partition}
		if seen[key] {
			return fmt.Errorf("workflow %s: duplicate definition for level %d partition %q", w.ID, d.Level, d.Partition)
		}
		seen[key] = true
		levels[d.Level] = true
		if d.Level > max {
			max = d.Level
		}
	}

	for l := 1; l <= max; l++ {
		if !levels[l] {
			return fmt.Errorf("workflow %s: gap at level %d", w.ID, l)
		}
	}

	return nil
}
