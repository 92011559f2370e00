package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// countingStore tracks how often each workflow is loaded.
type countingStore struct {
	workflows map[string]*entity.Workflow
	loads     map[string]int
}

func newCountingStore(workflows ...*entity.Workflow) *countingStore {
	s := &countingStore{
		workflows: make(map[string]*entity.Workflow),
		loads:     make(map[string]int),
	}
	for _, wf := range workflows {
		s.workflows[wf.ID] = wf
	}
	return s
}

func (s *countingStore) GetByID(_ context.Context, workflowID string) (*entity.Workflow, error) {
	s.loads[workflowID]++
	wf, ok := s.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", approval.ErrWorkflowNotFound, workflowID)
	}
	return wf, nil
}

func validWorkflow() *entity.Workflow {
	return &entity.Workflow{
		ID:         "wf-1",
		EntityType: "invoice",
		Levels: []entity.LevelDef{
			{Level: 1, Role: "clerk"},
			{Level: 2, Role: "manager"},
		},
	}
}

func TestRegistry_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("caches after first load", func(t *testing.T) {
		store := newCountingStore(validWorkflow())
		reg := New(store)

		for i := 0; i < 3; i++ {
			wf, err := reg.Get(ctx, "wf-1")
			require.NoError(t, err)
			assert.Equal(t, "wf-1", wf.ID)
		}
		assert.Equal(t, 1, store.loads["wf-1"])
	})

	t.Run("unknown workflow", func(t *testing.T) {
		reg := New(newCountingStore())
		_, err := reg.Get(ctx, "missing")
		assert.ErrorIs(t, err, approval.ErrWorkflowNotFound)
	})

	t.Run("invalid definition surfaces as misconfigured", func(t *testing.T) {
		broken := &entity.Workflow{
			ID:         "wf-broken",
			EntityType: "invoice",
			Levels: []entity.LevelDef{
				{Level: 1, Role: "clerk"},
				{Level: 3, Role: "manager"}, // gap at 2
			},
		}
		reg := New(newCountingStore(broken))
		_, err := reg.Get(ctx, "wf-broken")
		assert.ErrorIs(t, err, approval.ErrWorkflowMisconfigured)
	})

	t.Run("invalidate forces a reload", func(t *testing.T) {
		store := newCountingStore(validWorkflow())
		reg := New(store)

		_, err := reg.Get(ctx, "wf-1")
		require.NoError(t, err)
		reg.Invalidate("wf-1")
		_, err = reg.Get(ctx, "wf-1")
		require.NoError(t, err)

		assert.Equal(t, 2, store.loads["wf-1"])
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("finds the level definition", func(t *testing.T) {
		reg := New(newCountingStore(validWorkflow()))
		def, err := reg.Resolve(ctx, "wf-1", 2, "")
		require.NoError(t, err)
		assert.Equal(t, "manager", def.Role)
	})

	t.Run("level past the chain reports level not found", func(t *testing.T) {
		reg := New(newCountingStore(validWorkflow()))
		_, err := reg.Resolve(ctx, "wf-1", 3, "")
		assert.ErrorIs(t, err, approval.ErrLevelNotFound)
	})

	t.Run("partition routes to its own role", func(t *testing.T) {
		partitioned := &entity.Workflow{
			ID:          "wf-part",
			EntityType:  "purchase",
			Partitioned: true,
			Levels: []entity.LevelDef{
				{Level: 1, Role: "hw_lead", Partition: "hardware"},
				{Level: 1, Role: "sw_lead", Partition: "software"},
				{Level: 2, Role: "cfo", Partition: "hardware"},
				{Level: 2, Role: "cfo", Partition: "software"},
			},
		}
		reg := New(newCountingStore(partitioned))

		def, err := reg.Resolve(ctx, "wf-part", 1, "software")
		require.NoError(t, err)
		assert.Equal(t, "sw_lead", def.Role)

		_, err = reg.Resolve(ctx, "wf-part", 1, "services")
		assert.ErrorIs(t, err, approval.ErrLevelNotFound)
	})

	t.Run("partition is ignored on unpartitioned workflows", func(t *testing.T) {
		reg := New(newCountingStore(validWorkflow()))
		def, err := reg.Resolve(ctx, "wf-1", 1, "anything")
		require.NoError(t, err)
		assert.Equal(t, "clerk", def.Role)
	})
}
