package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/api"
	"github.com/wonny/wuxing-quant/internal/api/handlers"
	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/contracts"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 간지/시그널/자산 프로필 조회 엔드포인트 제공
- 백테스트 실행 및 WebSocket 스트리밍 제공

Endpoints:
  GET  /health                   - Health check
  GET  /api/pillars              - 간지 조회 (?date=&hour=)
  GET  /api/signal               - 시그널 계산 (?date=&symbols=)
  GET  /api/signal/history       - 저장된 시그널 (?date=)
  GET  /api/profiles             - 자산 프로필 목록
  GET  /api/profile/{asset}      - 자산 프로필 + 월별 전망
  POST /api/backtest             - 백테스트 실행
  POST /api/backtest/sweep       - 파라미터 비교
  GET  /api/backtest/runs        - 저장된 백테스트 목록
  GET  /api/backtest/runs/{id}   - 백테스트 상세
  GET  /ws/backtest              - 백테스트 스트리밍

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --db`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiStrategy string
	apiCSVDir   string
	apiUseDB    bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().StringVar(&apiStrategy, "strategy", "", "전략 YAML 파일")
	apiCmd.Flags().StringVar(&apiCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
	apiCmd.Flags().BoolVar(&apiUseDB, "db", false, "PostgreSQL 사용 (bars, 시그널, 백테스트 이력)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Wuxing Quant API Server ===")

	// 1. Dependencies (config, logger, DB, Redis)
	a, err := newApp(cmd.Context(), appOptions{
		strategyFile: apiStrategy,
		csvDir:       apiCSVDir,
		useDB:        apiUseDB,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port":     a.cfg.Port,
		"env":      a.cfg.Env,
		"database": a.db != nil,
		"redis":    a.redis.Enabled(),
	}).Info("Initializing API server")

	// 2. Backtest defaults
	defaults, err := a.backtestDefaults()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	// 3. Optional repositories
	var signalRepo contracts.SignalRepository
	var runs handlers.RunLister
	if a.db != nil {
		signalRepo = a.signalRepo()
		runs = audit.NewRepository(a.db.Pool)
	}

	// 4. Create handlers
	cycleHandler := handlers.NewCycleHandler(a.calculator(), a.signaler(), signalRepo, a.cfg.Signal.Symbols, a.location, log).
		WithPrices(a.source())
	backtestHandler := handlers.NewBacktestHandler(a.engine(), runs, defaults, a.location, log)

	// 5. Create router and server
	router := api.NewRouter(cycleHandler, backtestHandler, log)
	server := api.New(a.cfg, log, router)

	// 6. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	PrintList([]string{
		"GET  /health",
		"GET  /api/pillars",
		"GET  /api/signal",
		"GET  /api/signal/history",
		"GET  /api/profiles",
		"GET  /api/profile/{asset}",
		"POST /api/backtest",
		"POST /api/backtest/sweep",
		"GET  /api/backtest/runs",
		"GET  /ws/backtest",
	})
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
