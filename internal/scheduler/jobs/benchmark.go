package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/canslim-screener/internal/flow"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// BenchmarkRefreshJob refreshes the configured benchmark indices
// ⭐ SSOT: 벤치마크 갱신 스케줄은 이 Job에서만
type BenchmarkRefreshJob struct {
	runner   FlowRunner
	symbols  []string
	schedule string
	logger   *logger.Logger
	now      clock
}

func NewBenchmarkRefreshJob(runner FlowRunner, symbols []string, schedule string, log *logger.Logger) *BenchmarkRefreshJob {
	return &BenchmarkRefreshJob{
		runner:   runner,
		symbols:  symbols,
		schedule: schedule,
		logger:   log,
		now:      time.Now,
	}
}

func (j *BenchmarkRefreshJob) Name() string {
	return BenchmarkRefreshJobName
}

func (j *BenchmarkRefreshJob) Schedule() string {
	return j.schedule
}

func (j *BenchmarkRefreshJob) Run(ctx context.Context) error {
	j.logger.WithField("symbols", j.symbols).Info("Starting scheduled benchmark refresh")

	flowID, err := j.runner.RunBenchmark(ctx, flow.BenchmarkRequest{
		Symbols: j.symbols,
		AsOf:    j.now(),
	})
	if err != nil {
		return fmt.Errorf("benchmark flow %s: %w", flowID, err)
	}

	j.logger.WithField("flow_id", flowID).Info("Scheduled benchmark refresh completed")
	return nil
}
