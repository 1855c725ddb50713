package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSummaryCapped(t *testing.T) {
	var s ErrorSummary
	for i := 0; i < 25; i++ {
		s.Record(fmt.Sprintf("SYM%02d", i), errors.New("fetch failed"))
	}

	capped := s.Capped(MaxReportedErrors)
	assert.Equal(t, 25, capped.ErrorCount)
	require.Len(t, capped.Errors, 10)
	assert.Equal(t, "SYM00", capped.Errors[0].Symbol)
	assert.Len(t, s.Errors, 25, "original keeps the full list")
}

func TestErrorSummaryCappedEmpty(t *testing.T) {
	capped := ErrorSummary{}.Capped(MaxReportedErrors)
	assert.NotNil(t, capped.Errors)
	assert.Empty(t, capped.Errors)
}

func TestReportCappedKeepsCounts(t *testing.T) {
	r := &CollectionReport{Processed: 12, Succeeded: 0, Failed: 12}
	for i := 0; i < 12; i++ {
		r.Record(fmt.Sprintf("S%d", i), ErrInsufficientHistory)
	}

	capped := r.Capped(MaxReportedErrors).(*CollectionReport)
	assert.Equal(t, 12, capped.Failed)
	assert.Equal(t, 12, capped.ErrorCount)
	assert.Len(t, capped.Errors, 10)
	assert.Len(t, r.Errors, 12)
	assert.Equal(t, StageCollection, capped.Stage())
}
