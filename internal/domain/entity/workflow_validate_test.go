package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		wf      Workflow
		wantErr bool
	}{
		{
			name: "valid three level chain",
			wf: Workflow{
				ID:         "wf-1",
				EntityType: "claim",
				Levels: []LevelDef{
					{Level: 1, Role: "lead"},
					{Level: 2, Role: "finance"},
					{Level: 3, Role: "director"},
				},
			},
		},
		{
			name: "valid partitioned chain",
			wf: Workflow{
				ID:          "wf-2",
				EntityType:  "purchase",
				Partitioned: true,
				Levels: []LevelDef{
					{Level: 1, Role: "hw", Partition: "hardware"},
					{Level: 1, Role: "sw", Partition: "software"},
					{Level: 2, Role: "cfo", Partition: "hardware"},
					{Level: 2, Role: "cfo", Partition: "software"},
				},
			},
		},
		{
			name:    "missing id",
			wf:      Workflow{Levels: []LevelDef{{Level: 1, Role: "x"}}},
			wantErr: true,
		},
		{
			name:    "no levels",
			wf:      Workflow{ID: "wf-3"},
			wantErr: true,
		},
		{
			name: "level zero is reserved",
			wf: Workflow{
				ID:     "wf-4",
				Levels: []LevelDef{{Level: 0, Role: "x"}},
			},
			wantErr: true,
		},
		{
			name: "gap in the chain",
			wf: Workflow{
				ID: "wf-5",
				Levels: []LevelDef{
					{Level: 1, Role: "a"},
					{Level: 3, Role: "b"},
				},
			},
			wantErr: true,
		},
		{
			name: "duplicate level partition pair",
			wf: Workflow{
				ID: "wf-6",
				Levels: []LevelDef{
					{Level: 1, Role: "a"},
					{Level: 1, Role: "b"},
				},
			},
			wantErr: true,
		},
		{
			name: "partitioned level without partition",
			wf: Workflow{
				ID:          "wf-7",
				Partitioned: true,
				Levels:      []LevelDef{{Level: 1, Role: "a"}},
			},
			wantErr: true,
		},
		{
			name: "partition on unpartitioned workflow",
			wf: Workflow{
				ID:     "wf-8",
				Levels: []LevelDef{{Level: 1, Role: "a", Partition: "hw"}},
			},
			wantErr: true,
		},
		{
			name: "level without role",
			wf: Workflow{
				ID:     "wf-9",
				Levels: []LevelDef{{Level: 1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wf.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkflow_LevelsForRole(t *testing.T) {
	wf := Workflow{
		ID: "wf-1",
		Levels: []LevelDef{
			{Level: 1, Role: "lead"},
			{Level: 2, Role: "finance"},
			{Level: 3, Role: "lead"},
		},
	}

	assert.Len(t, wf.LevelsForRole("lead"), 2)
	assert.Len(t, wf.LevelsForRole("finance"), 1)
	assert.Empty(t, wf.LevelsForRole("nobody"))
	assert.Equal(t, 3, wf.MaxLevel())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusVerification.IsTerminal())

	assert.True(t, StatusVerification.IsValid())
	assert.False(t, Status("LIMBO").IsValid())
}
