package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	screenerConfigPath string
	memoryStore        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "CAN SLIM 스크리너 - 미국 주식 랭킹 배치 파이프라인",
	Long: `CAN SLIM Screener CLI

벤치마크 성과 → 종목 수집(RS) → 백분위 랭킹 → CAN SLIM 점수.
각 단계는 flow/job 상태로 기록되며 재실행 시 같은 날짜 결과를 덮어씁니다.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener migrate
  go run ./cmd/screener benchmark
  go run ./cmd/screener refresh --source sp500 --date 2026-10-16
  go run ./cmd/screener api --with-scheduler`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&screenerConfigPath, "config", "", "screener YAML config (default: SCREENER_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "use in-memory storage instead of PostgreSQL")
}
