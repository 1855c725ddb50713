package jobs

import (
	"context"
	"time"

	"github.com/wonny/canslim-screener/internal/flow"
)

// FlowRunner runs flows to completion (implemented by flow.Service)
type FlowRunner interface {
	RunRefresh(ctx context.Context, req flow.RefreshRequest) (string, error)
	RunBenchmark(ctx context.Context, req flow.BenchmarkRequest) (string, error)
}

// Job names
const (
	BenchmarkRefreshJobName = "benchmark_refresh"
	ScreenerRefreshJobName  = "screener_refresh"
)

type clock func() time.Time
