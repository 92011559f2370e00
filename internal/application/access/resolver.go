// Package access computes which workflow levels a role may act on,
// intersecting partition-scoped roles with their assigned partitions.
package access

import (
	"context"
	"fmt"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/application/registry"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// Resolver answers "which level definitions may this role act on".
type Resolver struct {
	registry    *registry.Registry
	assignments port.AssignmentStore
}

// NewResolver creates an access resolver.
func NewResolver(reg *registry.Registry, assignments port.AssignmentStore) *Resolver {
	return &Resolver{
		registry:    reg,
		assignments: assignments,
	}
}

// EligibleLevels returns the level definitions the role may act on in the
// workflow. For partitioned workflows the result is further restricted to
// the actor's assigned partitions unless the role acts workflow-wide.
// approval.ErrAccessDenied when the role matches no definition at all.
func (r *Resolver) EligibleLevels(ctx context.Context, workflowID, role, actorID string) ([]entity.LevelDef, error) {
	wf, err := r.registry.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	defs := wf.LevelsForRole(role)
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: role %s in workflow %s", approval.ErrAccessDenied, role, workflowID)
	}

	if !wf.Partitioned {
		return defs, nil
	}

	scoped, partitions, err := r.assignments.RolePartitions(ctx, role, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve role partitions: %w", err)
	}
	if !scoped {
		return defs, nil
	}

	allowed := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		allowed[p] = true
	}

	var filtered []entity.LevelDef
	for _, d := range defs {
		if allowed[d.Partition] {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: role %s has no assigned partitions in workflow %s",
			approval.ErrAccessDenied, role, workflowID)
	}

	return filtered, nil
}

// ActorPartitions exposes the raw assignment lookup for callers that need
// the partition filter itself, e.g. the pending-list query.
func (r *Resolver) ActorPartitions(ctx context.Context, role, actorID string) (bool, []string, error) {
	return r.assignments.RolePartitions(ctx, role, actorID)
}
