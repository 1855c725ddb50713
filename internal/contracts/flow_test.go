package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowStateTransitions(t *testing.T) {
	tests := []struct {
		from FlowState
		to   FlowState
		want bool
	}{
		{FlowPending, FlowRunning, true},
		{FlowPending, FlowCancelled, true},
		{FlowPending, FlowCompleted, false},
		{FlowRunning, FlowCompleted, true},
		{FlowRunning, FlowFailed, true},
		{FlowRunning, FlowCancelled, true},
		{FlowRunning, FlowPending, false},
		{FlowCompleted, FlowFailed, false},
		{FlowFailed, FlowRunning, false},
		{FlowCancelled, FlowCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJobStateTransitions(t *testing.T) {
	assert.True(t, JobPending.CanTransitionTo(JobRunning))
	assert.True(t, JobPending.CanTransitionTo(JobSkipped))
	assert.False(t, JobPending.CanTransitionTo(JobCompleted))
	assert.True(t, JobRunning.CanTransitionTo(JobFailed))
	assert.False(t, JobCompleted.CanTransitionTo(JobRunning))

	assert.True(t, JobSkipped.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, FlowCancelled.IsTerminal())
	assert.False(t, FlowPending.IsTerminal())
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "collection", StageCollection.JobName())
	assert.Equal(t, "S2", StageRanking.ShortName())
	assert.True(t, IsValidStage("S3_SCORING"))
	assert.False(t, IsValidStage("S4_RANKER"))
	assert.Len(t, AllStages(), 4)
}
