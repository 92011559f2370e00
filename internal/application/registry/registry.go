// Package registry resolves workflow level definitions. It caches
// definitions in memory and exposes explicit invalidation instead of
// re-fetching configuration on every call; provisioning happens
// out-of-band and calls Invalidate after a change.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// Registry is a read-through cache over the workflow store.
type Registry struct {
	store port.WorkflowStore

	mu    sync.RWMutex
	cache map[string]*entity.Workflow
}

// New creates a registry backed by the given store.
func New(store port.WorkflowStore) *Registry {
	return &Registry{
		store: store,
		cache: make(map[string]*entity.Workflow),
	}
}

// Get returns the full workflow definition, loading and validating it on
// first access.
func (r *Registry) Get(ctx context.Context, workflowID string) (*entity.Workflow, error) {
	r.mu.RLock()
	wf, ok := r.cache[workflowID]
	r.mu.RUnlock()
	if ok {
		return wf, nil
	}

	wf, err := r.store.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", approval.ErrWorkflowMisconfigured, err)
	}

	r.mu.Lock()
	r.cache[workflowID] = wf
	r.mu.Unlock()

	return wf, nil
}

// Resolve returns the level definition for (workflowID, level, partition).
// approval.ErrWorkflowNotFound for an unknown workflow;
// approval.ErrLevelNotFound when no definition matches, which is how the
// engine detects an exhausted chain. Partition is ignored for
// unpartitioned workflows.
func (r *Registry) Resolve(ctx context.Context, workflowID string, level int, partition string) (*entity.LevelDef, error) {
	wf, err := r.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	for i := range wf.Levels {
		d := &wf.Levels[i]
		if d.Level != level {
			continue
		}
		if wf.Partitioned && d.Partition != partition {
			continue
		}
		return d, nil
	}

	return nil, fmt.Errorf("%w: workflow %s level %d partition %q",
		approval.ErrLevelNotFound, workflowID, level, partition)
}

// Invalidate drops a cached workflow so the next read reloads it. Called
// by provisioning after a definition change.
func (r *Registry) Invalidate(workflowID string) {
	r.mu.Lock()
	delete(r.cache, workflowID)
	r.mu.Unlock()
}

// InvalidateAll empties the cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]*entity.Workflow)
	r.mu.Unlock()
}
