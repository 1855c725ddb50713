package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"

	"github.com/wonny/canslim-screener/internal/contracts"
)

func TestJobSummary(t *testing.T) {
	tests := []struct {
		name string
		job  contracts.JobExecution
		want string
	}{
		{
			name: "collection counts",
			job:  contracts.JobExecution{Result: json.RawMessage(`{"date":"2026-10-16","processed":3,"succeeded":2,"failed":1,"error_count":1}`)},
			want: "processed=3 succeeded=2 failed=1 error_count=1",
		},
		{
			name: "ranking counts",
			job:  contracts.JobExecution{Result: json.RawMessage(`{"date":"2026-10-16","total":500,"updated":500}`)},
			want: "total=500 updated=500",
		},
		{
			name: "error wins",
			job:  contracts.JobExecution{Error: "benchmark unavailable", Result: json.RawMessage(`{"processed":1}`)},
			want: "benchmark unavailable",
		},
		{name: "no result", job: contracts.JobExecution{}, want: ""},
		{name: "bad json", job: contracts.JobExecution{Result: json.RawMessage(`[1,2]`)}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jobSummary(&tt.job))
		})
	}
}

func TestJobDuration(t *testing.T) {
	start := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	j := &contracts.JobExecution{
		StartedAt:   null.TimeFrom(start),
		CompletedAt: null.TimeFrom(start.Add(1500 * time.Millisecond)),
	}
	assert.Equal(t, "1.5s", jobDuration(j))

	j.CompletedAt = null.Time{}
	assert.Equal(t, "-", jobDuration(j))
}

func TestSplitSymbols(t *testing.T) {
	assert.Nil(t, splitSymbols(""))
	assert.Equal(t, []string{"AAPL", "NVDA"}, splitSymbols(" aapl, NVDA,,aapl"))
}
