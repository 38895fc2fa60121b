package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/backtest"
	"github.com/wonny/wuxing-quant/internal/contracts"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 프레임워크",
	Long: `과거 일봉 데이터로 오행 시그널 전략을 시뮬레이션합니다.

백테스팅은 다음을 검증합니다:
- 전략 수익률 (총/연환산)
- 리스크 지표 (Sharpe, MDD, VaR/CVaR)
- 승률 및 거래 횟수

Example:
  go run ./cmd/quant backtest run --symbols AAPL,MSFT --from 2023-01-01 --to 2024-01-01
  go run ./cmd/quant backtest sweep --symbols AAPL --fractions 0.05,0.1,0.2
  go run ./cmd/quant backtest runs --limit 10`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 백테스트를 실행합니다.

Flags:
  --symbols     종목 목록 (콤마 구분, 기본: 전략 파일 또는 SIGNAL_SYMBOLS)
  --from        시작 날짜 (YYYY-MM-DD, 포함)
  --to          종료 날짜 (YYYY-MM-DD, 미포함)
  --capital     초기 자본
  --fraction    매수 시 현금 대비 투자 비율 (0, 1]
  --penalty     약화 페널티 사용 (SELL 시그널 활성화)
  --strategy    전략 YAML 파일
  --csv-dir     CSV 일봉 디렉토리 (DB 미사용 시)
  --db          PostgreSQL bars 테이블 사용

Example:
  go run ./cmd/quant backtest run --symbols AAPL --from 2023-01-01
  go run ./cmd/quant backtest run --strategy config/strategy/wuxing_v1.yaml --db
  go run ./cmd/quant backtest run --symbols 005930 --csv-dir ./data --penalty`,
		RunE: runBacktest,
	}

	backtestSweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "투자 비율별 백테스트 비교",
		Long: `같은 데이터로 여러 투자 비율을 병렬 실행하고 결과를 비교합니다.

Example:
  go run ./cmd/quant backtest sweep --symbols AAPL --fractions 0.05,0.1,0.2,0.5`,
		RunE: runBacktestSweep,
	}

	backtestRunsCmd = &cobra.Command{
		Use:   "runs [run_id]",
		Short: "저장된 백테스트 조회",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listBacktestRuns,
	}

	// Flags
	backtestSymbols   string
	backtestFrom      string
	backtestTo        string
	backtestCapital   float64
	backtestFraction  float64
	backtestPenalty   bool
	backtestStrategy  string
	backtestCSVDir    string
	backtestUseDB     bool
	backtestJSON      bool
	backtestFractions string
	backtestRunsLimit int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestSweepCmd)
	backtestCmd.AddCommand(backtestRunsCmd)

	for _, c := range []*cobra.Command{backtestRunCmd, backtestSweepCmd} {
		c.Flags().StringVar(&backtestSymbols, "symbols", "", "종목 목록 (콤마 구분)")
		c.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
		c.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 미포함)")
		c.Flags().Float64Var(&backtestCapital, "capital", 0, "초기 자본 (기본: 전략/환경 설정)")
		c.Flags().BoolVar(&backtestPenalty, "penalty", false, "약화 페널티 사용")
		c.Flags().StringVar(&backtestStrategy, "strategy", "", "전략 YAML 파일")
		c.Flags().StringVar(&backtestCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
		c.Flags().BoolVar(&backtestUseDB, "db", false, "PostgreSQL bars 테이블 사용")
		c.Flags().BoolVar(&backtestJSON, "json", false, "결과를 JSON으로 출력")
	}
	backtestRunCmd.Flags().Float64Var(&backtestFraction, "fraction", 0, "투자 비율 (기본: 0.10)")
	backtestSweepCmd.Flags().StringVar(&backtestFractions, "fractions", "0.05,0.1,0.2", "비교할 투자 비율 (콤마 구분)")

	backtestRunsCmd.Flags().IntVar(&backtestRunsLimit, "limit", 20, "조회 개수")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, cfg, err := initBacktest(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if backtestFraction != 0 {
		cfg.PositionFraction = backtestFraction
	}

	if !backtestJSON {
		printBacktestHeader(cfg)
		fmt.Println("🚀 Starting backtest...")
	}

	result, err := a.engine().Run(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if backtestJSON {
		return writeJSON(result)
	}
	printBacktestResult(result)
	return nil
}

func runBacktestSweep(cmd *cobra.Command, args []string) error {
	a, cfg, err := initBacktest(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	variants, err := parseFractions(backtestFractions)
	if err != nil {
		return err
	}

	if !backtestJSON {
		printBacktestHeader(cfg)
		fmt.Printf("🔀 Variants: %d\n\n", len(variants))
	}

	results, err := a.engine().Sweep(cmd.Context(), cfg, variants)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if backtestJSON {
		return writeJSON(results)
	}

	widths := []int{12, 14, 10, 10, 8, 8, 7}
	PrintTableHeader([]string{"Variant", "Final Equity", "Return", "Ann.Ret", "Sharpe", "MDD", "Trades"}, widths)
	for _, r := range results {
		m := r.Result.Metrics
		PrintTableRow([]string{
			r.Variant.Name,
			formatMoney(r.Result.FinalEquity),
			formatPct(m[contracts.MetricTotalReturn]),
			formatPct(m[contracts.MetricAnnualizedReturn]),
			fmt.Sprintf("%.2f", m[contracts.MetricSharpeRatio]),
			formatPct(m[contracts.MetricMaxDrawdown]),
			fmt.Sprintf("%d", int(m[contracts.MetricTradeCount])),
		}, widths)
	}
	fmt.Println()
	return nil
}

func listBacktestRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{useDB: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.db == nil {
		return fmt.Errorf("stored runs need DATABASE_URL")
	}
	repo := audit.NewRepository(a.db.Pool)

	if len(args) == 1 {
		run, err := repo.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(run)
	}

	runs, err := repo.ListRuns(cmd.Context(), backtestRunsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintInfo("No stored runs")
		return nil
	}

	widths := []int{36, 16, 10, 14, 10}
	PrintTableHeader([]string{"Run ID", "Created", "Strategy", "Final Equity", "Return"}, widths)
	for _, run := range runs {
		PrintTableRow([]string{
			run.RunID,
			run.CreatedAt.In(a.location).Format("2006-01-02 15:04"),
			run.StrategyID,
			formatMoney(run.FinalEquity),
			formatPct(run.Metrics[contracts.MetricTotalReturn]),
		}, widths)
	}
	return nil
}

// initBacktest builds the app and merges command flags onto the strategy defaults
func initBacktest(cmd *cobra.Command) (*app, backtest.Config, error) {
	a, err := newApp(cmd.Context(), appOptions{
		strategyFile: backtestStrategy,
		csvDir:       backtestCSVDir,
		useDB:        backtestUseDB,
	})
	if err != nil {
		return nil, backtest.Config{}, err
	}

	cfg, err := a.backtestDefaults()
	if err != nil {
		a.Close()
		return nil, backtest.Config{}, err
	}

	if backtestSymbols != "" {
		cfg.Symbols = splitSymbols(backtestSymbols)
	}
	if backtestFrom != "" {
		if cfg.StartDate, err = parseDay(backtestFrom, a.location); err != nil {
			a.Close()
			return nil, backtest.Config{}, err
		}
	}
	if backtestTo != "" {
		if cfg.EndDate, err = parseDay(backtestTo, a.location); err != nil {
			a.Close()
			return nil, backtest.Config{}, err
		}
	}
	if backtestCapital != 0 {
		cfg.InitialCapital = backtestCapital
	}
	if backtestPenalty {
		cfg.WeakeningPenalty = true
	}

	if err := cfg.Validate(); err != nil {
		a.Close()
		return nil, backtest.Config{}, err
	}
	return a, cfg, nil
}

// parseFractions turns "0.05,0.1" into one variant per fraction
func parseFractions(s string) ([]backtest.Variant, error) {
	var variants []backtest.Variant
	for _, part := range splitSymbols(s) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("invalid fraction %q (want 0 < f <= 1)", part)
		}
		variants = append(variants, backtest.Variant{
			Name:             "fraction=" + part,
			PositionFraction: f,
		})
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("at least one fraction is required")
	}
	return variants, nil
}

func printBacktestHeader(cfg backtest.Config) {
	fmt.Println("=== Wuxing Quant Backtest ===")
	fmt.Println()
	PrintKeyValue("Strategy", cfg.StrategyID, 10)
	PrintKeyValue("Symbols", strings.Join(cfg.Symbols, ", "), 10)
	PrintKeyValue("Period", dateOrOpen(cfg.StartDate)+" ~ "+dateOrOpen(cfg.EndDate), 10)
	PrintKeyValue("Capital", formatMoney(cfg.InitialCapital), 10)
	PrintKeyValue("Fraction", formatPct(cfg.PositionFraction), 10)
	PrintKeyValue("Penalty", strconv.FormatBool(cfg.WeakeningPenalty), 10)
	fmt.Println()
}

func printBacktestResult(result *backtest.Result) {
	fmt.Println("\n✅ Backtest Completed")
	PrintDoubleSeparator()
	fmt.Println()

	fmt.Println("📊 Summary")
	PrintKeyValue("Run ID", result.RunID, 16)
	PrintKeyValue("Processed days", strconv.Itoa(len(result.Points)), 16)
	PrintKeyValue("Duration", result.Duration.String(), 16)
	if len(result.Skipped) > 0 {
		PrintKeyValue("Skipped", strings.Join(result.Skipped, ", "), 16)
	}
	fmt.Println()

	fmt.Println("💰 Performance")
	PrintKeyValue("Initial Capital", formatMoney(result.InitialCapital), 16)
	PrintKeyValue("Final Equity", formatMoney(result.FinalEquity), 16)
	PrintKeyValue("Cash", formatMoney(result.Cash), 16)
	fmt.Println()

	fmt.Println("📉 Metrics")
	for _, key := range contracts.MetricKeys {
		v := result.Metrics[key]
		switch key {
		case contracts.MetricSharpeRatio:
			PrintKeyValue(key, fmt.Sprintf("%.2f", v), 18)
		case contracts.MetricTradeCount:
			PrintKeyValue(key, strconv.Itoa(int(v)), 18)
		default:
			PrintKeyValue(key, formatPct(v), 18)
		}
	}
	fmt.Println()

	fmt.Println("⚠️  Tail Risk")
	PrintKeyValue("VaR 95 / 99", formatPct(result.Risk.VaR95)+" / "+formatPct(result.Risk.VaR99), 16)
	PrintKeyValue("CVaR 95 / 99", formatPct(result.Risk.CVaR95)+" / "+formatPct(result.Risk.CVaR99), 16)
	PrintKeyValue("Sortino", fmt.Sprintf("%.2f", result.Risk.Sortino), 16)
	fmt.Println()

	if len(result.OpenPositions) > 0 {
		fmt.Println("📦 Open Positions")
		widths := []int{10, 10, 12, 12}
		PrintTableHeader([]string{"Symbol", "Shares", "Entry", "Entry Date"}, widths)
		for _, p := range result.OpenPositions {
			PrintTableRow([]string{
				p.Symbol,
				strconv.FormatInt(p.Shares, 10),
				fmt.Sprintf("%.2f", p.EntryPrice),
				contracts.DateKey(p.EntryDate),
			}, widths)
		}
		fmt.Println()
	}

	// 최근 10일
	fmt.Println("📈 Equity Curve (Last 10 Days)")
	start := len(result.Points) - 10
	if start < 0 {
		start = 0
	}
	for _, point := range result.Points[start:] {
		fmt.Printf("   %s: %s (%+.2f%%)\n",
			contracts.DateKey(point.Date),
			formatMoney(point.Equity),
			point.Return*100)
	}
	fmt.Println()
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
