package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/canslim-screener/internal/api"
	"github.com/wonny/canslim-screener/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                    - Health check
  POST /api/flows/refresh         - 스크리너 갱신 flow 시작 (202)
  POST /api/flows/benchmark       - 벤치마크 갱신 flow 시작 (202)
  GET  /api/flows                 - 최근 flow 목록
  GET  /api/flows/{id}            - flow 상태 + job 상세
  POST /api/flows/{id}/cancel     - flow 취소
  GET  /api/flows/{id}/stream     - 진행상황 websocket
  GET  /api/screener              - 날짜별 점수 목록
  GET  /api/screener/{symbol}     - 종목 점수
  GET  /api/benchmarks[/{symbol}] - 벤치마크 성과
  GET  /api/market                - 최신 시장 상태

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== CAN SLIM Screener API Server ===")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	flowHandler := handlers.NewFlowHandler(a.service, a.loc, a.log)
	screenerHandler := handlers.NewScreenerHandler(a.symbols, a.benchmarks, a.snapshots, a.log)
	router := api.NewRouter(flowHandler, screenerHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	if withScheduler && a.screener.Schedules.Enabled {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 실행 중인 flow는 a.Close()에서 완료까지 대기
	a.log.Info("Server stopped")
	return nil
}
