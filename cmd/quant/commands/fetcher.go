package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/s0_data/collector"
	"github.com/wonny/wuxing-quant/internal/s0_data/quality"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "데이터 수집 도구",
	Long: `Naver Finance에서 일봉 데이터를 수집하고 품질을 검사합니다.

이 명령어는:
- 차트 API (실패 시 일별 시세 페이지)에서 OHLCV 수집
- 품질 게이트 검사 (종가/OHLC/거래량 커버리지, 중복, 공백 기간)
- CSV 파일 또는 PostgreSQL bars 테이블에 저장

Example:
  go run ./cmd/quant fetcher prices --symbols 005930,000660 --from 2023-01-01
  go run ./cmd/quant fetcher prices --incremental --db
  go run ./cmd/quant fetcher check --symbols 005930`,
}

var (
	fetcherPricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "일봉 수집 실행",
		Long: `지정된 종목의 일봉을 수집해 저장합니다.

Flags:
  --symbols      종목 목록 (콤마 구분, 기본: SIGNAL_SYMBOLS)
  --from         시작 날짜 (YYYY-MM-DD, 기본: 1년 전)
  --to           종료 날짜 (YYYY-MM-DD, 포함, 기본: 오늘)
  --workers      동시 수집 개수 (기본: COLLECT_WORKERS)
  --incremental  저장된 마지막 날짜 이후만 수집
  --strict       품질 게이트 미통과 시 저장하지 않음
  --min-score    품질 점수 기준 (기본: 0.90)

Example:
  go run ./cmd/quant fetcher prices --symbols 005930 --from 2020-01-01 --csv-dir ./data
  go run ./cmd/quant fetcher prices --incremental --strict --db`,
		RunE: runFetcherPrices,
	}

	fetcherCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "저장된 일봉 품질 검사",
		RunE:  runFetcherCheck,
	}

	// Fetcher flags
	fetcherSymbols     string
	fetcherFrom        string
	fetcherTo          string
	fetcherWorkers     int
	fetcherIncremental bool
	fetcherStrict      bool
	fetcherMinScore    float64
	fetcherCSVDir      string
	fetcherUseDB       bool
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherPricesCmd)
	fetcherCmd.AddCommand(fetcherCheckCmd)

	for _, c := range []*cobra.Command{fetcherPricesCmd, fetcherCheckCmd} {
		c.Flags().StringVar(&fetcherSymbols, "symbols", "", "종목 목록 (콤마 구분)")
		c.Flags().Float64Var(&fetcherMinScore, "min-score", 0, "품질 점수 기준 (0~1)")
		c.Flags().StringVar(&fetcherCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
		c.Flags().BoolVar(&fetcherUseDB, "db", false, "PostgreSQL bars 테이블 사용")
	}
	fetcherPricesCmd.Flags().StringVar(&fetcherFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	fetcherPricesCmd.Flags().StringVar(&fetcherTo, "to", "", "종료 날짜 (YYYY-MM-DD, 포함)")
	fetcherPricesCmd.Flags().IntVar(&fetcherWorkers, "workers", 0, "동시 수집 개수")
	fetcherPricesCmd.Flags().BoolVar(&fetcherIncremental, "incremental", false, "증분 수집")
	fetcherPricesCmd.Flags().BoolVar(&fetcherStrict, "strict", false, "품질 게이트 강제")
}

func runFetcherPrices(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{csvDir: fetcherCSVDir, useDB: fetcherUseDB})
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.cfg.Signal.Symbols
	if fetcherSymbols != "" {
		symbols = splitSymbols(fetcherSymbols)
	}

	to := today(a.location)
	if fetcherTo != "" {
		if to, err = parseDay(fetcherTo, a.location); err != nil {
			return err
		}
	}
	from := to.AddDate(-1, 0, 0)
	if fetcherFrom != "" {
		if from, err = parseDay(fetcherFrom, a.location); err != nil {
			return err
		}
	}
	if from.After(to) {
		return fmt.Errorf("--from %s is after --to %s", fetcherFrom, fetcherTo)
	}

	workers := a.cfg.Collect.Workers
	if fetcherWorkers > 0 {
		workers = fetcherWorkers
	}

	fmt.Printf("=== Wuxing Quant Data Fetcher ===\n\n")
	PrintKeyValue("Symbols", strings.Join(symbols, ", "), 8)
	PrintKeyValue("Period", dateOrOpen(from)+" ~ "+dateOrOpen(to), 8)
	PrintKeyValue("Workers", fmt.Sprintf("%d", workers), 8)
	PrintKeyValue("Mode", fetchMode(), 8)
	fmt.Println()

	col := a.collector(quality.NewGate(quality.Config{MinQualityScore: fetcherMinScore}))

	start := time.Now()
	results, err := col.CollectPrices(cmd.Context(), symbols, from, to, collector.Config{
		Workers:     workers,
		Incremental: fetcherIncremental,
		Strict:      fetcherStrict,
	})
	if err != nil {
		return fmt.Errorf("collect prices: %w", err)
	}

	failed := 0
	for i, r := range results {
		msg := fmt.Sprintf("%s: %d fetched, %d saved", r.Symbol, r.Fetched, r.Saved)
		if r.Report != nil {
			msg += fmt.Sprintf(", quality %.2f", r.Report.QualityScore)
		}
		if r.Error != nil {
			failed++
			msg += " ❌ " + r.Error.Error()
		}
		PrintProgress("Collect", msg, i+1, len(results))
	}

	fmt.Println()
	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d/%d symbols failed", failed, len(results)))
		if failed == len(results) {
			return fmt.Errorf("all symbols failed")
		}
		return nil
	}
	PrintSuccess(fmt.Sprintf("Collected %d symbols in %.2fs", len(results), time.Since(start).Seconds()))
	return nil
}

func runFetcherCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{csvDir: fetcherCSVDir, useDB: fetcherUseDB})
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.cfg.Signal.Symbols
	if fetcherSymbols != "" {
		symbols = splitSymbols(fetcherSymbols)
	}
	gate := quality.NewGate(quality.Config{MinQualityScore: fetcherMinScore})

	widths := []int{10, 7, 7, 8, 8, 6, 6}
	PrintTableHeader([]string{"Symbol", "Bars", "Score", "MaxGap", "Dupes", "Pass", ""}, widths)

	rejected := 0
	for _, symbol := range symbols {
		bars, err := a.store.Bars(cmd.Context(), symbol, time.Time{}, time.Time{})
		if err != nil {
			PrintTableRow([]string{symbol, "-", "-", "-", "-", "❌", err.Error()}, widths)
			rejected++
			continue
		}

		report := gate.Check(symbol, bars)
		pass := "✅"
		if !report.Passed {
			pass = "❌"
			rejected++
		}
		PrintTableRow([]string{
			symbol,
			fmt.Sprintf("%d", report.Bars),
			fmt.Sprintf("%.2f", report.QualityScore),
			fmt.Sprintf("%d", report.LargestGap),
			fmt.Sprintf("%d", report.Duplicates),
			pass,
			strings.Join(report.Issues, "; "),
		}, widths)
	}

	fmt.Println()
	if rejected > 0 {
		return fmt.Errorf("%d/%d symbols failed the quality gate", rejected, len(symbols))
	}
	PrintSuccess("All symbols passed the quality gate")
	return nil
}

func fetchMode() string {
	mode := "full"
	if fetcherIncremental {
		mode = "incremental"
	}
	if fetcherStrict {
		mode += ", strict"
	}
	return mode
}
