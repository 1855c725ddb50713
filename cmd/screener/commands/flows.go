package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/flow"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "벤치마크 지수 가중 성과 갱신",
	Long: `벤치마크 갱신 flow를 실행합니다 (Job 0).

지수별 1/3/6/9/12개월 수익률과 가중 성과(0.4·3M + 0.2·(6M+9M+12M))를 저장하고,
기본 지수의 시장 상태(Risk-On/Neutral/Risk-Off) 스냅샷을 기록합니다.

Example:
  go run ./cmd/screener benchmark
  go run ./cmd/screener benchmark --symbols ^GSPC,^IXIC`,
	RunE: runBenchmark,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "스크리너 갱신 (수집 → 랭킹 → 점수)",
	Long: `스크리너 갱신 flow를 실행합니다 (Job 1~3).

--source 와 --symbols 는 합집합으로 처리됩니다.
--date 를 생략하면 MARKET_TIMEZONE 기준 오늘 날짜를 사용합니다.

Example:
  go run ./cmd/screener refresh --source sp500
  go run ./cmd/screener refresh --symbols AAPL,NVDA --date 2026-10-16 --market risk_on
  go run ./cmd/screener refresh --source nasdaq100 --no-scoring`,
	RunE: runRefresh,
}

var (
	flowSymbols   string
	refreshSource string
	refreshDate   string
	refreshMarket string
	noScoring     bool
	waitProgress  bool
)

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(refreshCmd)

	benchmarkCmd.Flags().StringVar(&flowSymbols, "symbols", "", "쉼표로 구분된 지수 심볼 (default: 설정의 벤치마크 목록)")

	refreshCmd.Flags().StringVar(&refreshSource, "source", "", "유니버스 소스 (sp500, nasdaq100, all, 설정 목록 이름)")
	refreshCmd.Flags().StringVar(&flowSymbols, "symbols", "", "쉼표로 구분된 종목 심볼")
	refreshCmd.Flags().StringVar(&refreshDate, "date", "", "기준일 YYYY-MM-DD (default: 오늘)")
	refreshCmd.Flags().StringVar(&refreshMarket, "market", "", "시장 상태 지정 (risk_on, neutral, risk_off)")
	refreshCmd.Flags().BoolVar(&noScoring, "no-scoring", false, "점수 단계(Job 3) 생략")
	refreshCmd.Flags().BoolVar(&waitProgress, "wait", true, "진행 상황을 job 단위로 출력")
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	return contracts.NormalizeSymbols(strings.Split(raw, ","))
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := splitSymbols(flowSymbols)
	if len(symbols) == 0 {
		symbols = a.screener.Benchmarks.Symbols
	}

	started := time.Now()
	id, err := a.service.StartBenchmark(ctx, flow.BenchmarkRequest{Symbols: symbols, AsOf: started})
	if err != nil {
		return err
	}
	PrintFlowHeader("Benchmark Refresh", id, map[string]string{
		"Symbols": strings.Join(symbols, ","),
	})

	return followFlow(ctx, a, id, started, waitProgress)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := flow.RefreshRequest{
		Source:         refreshSource,
		Symbols:        splitSymbols(flowSymbols),
		AsOf:           a.today(),
		IncludeScoring: !noScoring,
	}
	if req.Source == "" && len(req.Symbols) == 0 {
		req.Source = a.screener.Universe.DefaultSource
	}
	if refreshDate != "" {
		if req.AsOf, err = contracts.ParseDate(refreshDate); err != nil {
			return err
		}
	}
	if refreshMarket != "" {
		if req.MarketCondition, err = contracts.ParseMarketCondition(refreshMarket); err != nil {
			return err
		}
	}

	started := time.Now()
	id, err := a.service.StartRefresh(ctx, req)
	if err != nil {
		return err
	}
	PrintFlowHeader("Screener Refresh", id, map[string]string{
		"Source":  req.Source,
		"Symbols": strings.Join(req.Symbols, ","),
		"Date":    contracts.DateKey(req.AsOf),
		"Market":  string(req.MarketCondition),
		"Scoring": fmt.Sprintf("%t", req.IncludeScoring),
	})

	return followFlow(ctx, a, id, started, waitProgress)
}

// followFlow waits for a background flow, printing job transitions when progress is set.
// Ctrl+C requests cancellation; the current stage still runs to completion.
func followFlow(ctx context.Context, a *app, id string, started time.Time, progress bool) error {
	// 상태 조회는 취소 신호와 무관하게 계속
	bg := context.WithoutCancel(ctx)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	cancelled := false
	lastJob := ""
	for {
		f, err := a.service.Status(bg, id)
		if err != nil {
			return err
		}

		if progress && f.CurrentJob != "" && f.CurrentJob != lastJob {
			lastJob = f.CurrentJob
			fmt.Printf("[%s] %s (%d/%d)\n", time.Now().Format("15:04:05"), lastJob, f.CompletedJobs+1, f.TotalJobs)
		}

		if f.State.IsTerminal() {
			a.service.Wait()
			// 최종 상태 재조회 (skip된 job 포함)
			if f, err = a.service.Status(bg, id); err != nil {
				return err
			}
			fmt.Println()
			PrintFlowStatus(f)
			PrintFlowCompletion(f, started)
			if f.State == contracts.FlowFailed {
				return fmt.Errorf("flow %s failed: %s", id, f.Error)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				fmt.Println("\n⏹  Cancelling flow (current stage will finish)...")
				if err := a.service.Cancel(bg, id); err != nil {
					a.log.WithError(err).Warn("Cancel failed")
				}
			}
			<-ticker.C
		case <-ticker.C:
		}
	}
}
