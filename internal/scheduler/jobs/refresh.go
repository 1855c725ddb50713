package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/flow"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// ScreenerRefreshJob runs collection, ranking and scoring for today's market date
// ⭐ SSOT: 스크리너 갱신 스케줄은 이 Job에서만
type ScreenerRefreshJob struct {
	runner         FlowRunner
	source         string
	includeScoring bool
	schedule       string
	loc            *time.Location
	logger         *logger.Logger
	now            clock
}

func NewScreenerRefreshJob(
	runner FlowRunner,
	source string,
	includeScoring bool,
	schedule string,
	loc *time.Location,
	log *logger.Logger,
) *ScreenerRefreshJob {
	return &ScreenerRefreshJob{
		runner:         runner,
		source:         source,
		includeScoring: includeScoring,
		schedule:       schedule,
		loc:            loc,
		logger:         log,
		now:            time.Now,
	}
}

func (j *ScreenerRefreshJob) Name() string {
	return ScreenerRefreshJobName
}

func (j *ScreenerRefreshJob) Schedule() string {
	return j.schedule
}

func (j *ScreenerRefreshJob) Run(ctx context.Context) error {
	asOf := contracts.MarketDate(j.now(), j.loc)
	j.logger.WithFields(map[string]interface{}{
		"source": j.source,
		"date":   contracts.DateKey(asOf),
	}).Info("Starting scheduled screener refresh")

	flowID, err := j.runner.RunRefresh(ctx, flow.RefreshRequest{
		Source:         j.source,
		AsOf:           asOf,
		IncludeScoring: j.includeScoring,
	})
	if err != nil {
		return fmt.Errorf("screener flow %s: %w", flowID, err)
	}

	j.logger.WithField("flow_id", flowID).Info("Scheduled screener refresh completed")
	return nil
}
