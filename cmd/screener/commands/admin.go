package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/data/repos"
	"github.com/wonny/canslim-screener/internal/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "flow 실행 이력 조회/취소",
	Long: `flow 실행 기록을 조회하거나 실행 중인 flow를 취소합니다.

Example:
  go run ./cmd/screener flows list --limit 5
  go run ./cmd/screener flows show <flow_id>
  go run ./cmd/screener flows cancel <flow_id>`,
}

var (
	flowsListCmd = &cobra.Command{
		Use:   "list",
		Short: "최근 flow 목록",
		RunE:  listFlows,
	}

	flowsShowCmd = &cobra.Command{
		Use:   "show [flow_id]",
		Short: "flow 상세 (job별 결과)",
		Args:  cobra.ExactArgs(1),
		RunE:  showFlow,
	}

	flowsCancelCmd = &cobra.Command{
		Use:   "cancel [flow_id]",
		Short: "flow 취소 요청",
		Long: `실행 중인 flow의 취소를 요청합니다.

현재 단계는 끝까지 실행되고, 남은 job은 skipped로 기록됩니다.`,
		Args: cobra.ExactArgs(1),
		RunE: cancelFlow,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "PostgreSQL 스키마 생성",
		Long: `스크리너 테이블을 생성합니다 (IF NOT EXISTS, 반복 실행 가능).

Example:
  go run ./cmd/screener migrate`,
		RunE: runMigrate,
	}

	marketCmd = &cobra.Command{
		Use:   "market",
		Short: "시장 상태 조회/지정",
	}

	marketShowCmd = &cobra.Command{
		Use:   "show",
		Short: "최신 시장 상태",
		RunE:  showMarket,
	}

	marketSetCmd = &cobra.Command{
		Use:   "set [risk_on|neutral|risk_off]",
		Short: "시장 상태 수동 지정",
		Long: `기본 벤치마크에 대해 수동 시장 상태 스냅샷을 기록합니다.

다음 점수 단계(Job 3)부터 M 점수에 반영됩니다.`,
		Args: cobra.ExactArgs(1),
		RunE: setMarket,
	}
)

var flowsLimit int

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.AddCommand(flowsListCmd)
	flowsCmd.AddCommand(flowsShowCmd)
	flowsCmd.AddCommand(flowsCancelCmd)

	flowsListCmd.Flags().IntVar(&flowsLimit, "limit", flow.DefaultRecentLimit, "조회 개수")

	rootCmd.AddCommand(migrateCmd)

	rootCmd.AddCommand(marketCmd)
	marketCmd.AddCommand(marketShowCmd)
	marketCmd.AddCommand(marketSetCmd)
}

func listFlows(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	flows, err := a.service.Recent(ctx, flowsLimit)
	if err != nil {
		return err
	}
	if len(flows) == 0 {
		fmt.Println("No flows recorded")
		return nil
	}
	for _, f := range flows {
		fmt.Printf("%s  %-8s  %-10s  %s  %d/%d\n",
			stateIcon(f.State), f.Name, f.State, f.ID,
			f.CompletedJobs, f.TotalJobs)
	}
	return nil
}

func showFlow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := a.service.Status(ctx, args[0])
	if err != nil {
		return err
	}
	PrintFlowStatus(f)
	return nil
}

func cancelFlow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.Cancel(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("⏹  Cancellation requested: %s\n", args[0])
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if memoryStore {
		return fmt.Errorf("migrate requires STORE=postgres")
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.db == nil {
		return fmt.Errorf("migrate requires STORE=postgres")
	}
	if err := a.db.Migrate(ctx, repos.Schema()); err != nil {
		return err
	}
	fmt.Println("✅ Schema is up to date")
	return nil
}

func showMarket(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.snapshots.Latest(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  (source=%s, %s)\n",
		snap.Symbol, snap.Condition, snap.Source,
		snap.RecordedAt.In(a.loc).Format("2006-01-02 15:04 MST"))
	if snap.Source != "manual" {
		fmt.Printf("   close=%.2f  sma50=%.2f  sma200=%.2f\n", snap.Close, snap.SMA50, snap.SMA200)
	}
	return nil
}

func setMarket(cmd *cobra.Command, args []string) error {
	condition, err := contracts.ParseMarketCondition(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := &contracts.MarketSnapshot{
		Symbol:     strings.ToUpper(a.cfg.Screener.BenchmarkSymbol),
		Condition:  condition,
		Source:     "manual",
		RecordedAt: time.Now().UTC(),
	}
	if err := a.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	fmt.Printf("✅ Market condition set: %s (%s)\n", condition, snap.Symbol)
	return nil
}
