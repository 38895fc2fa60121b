package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/s2_signals"
)

// signalCmd represents the signal command
var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "일일 시그널 조회",
	Long: `지정한 날짜의 간지와 오행 시그널을 계산합니다.

기준(reference)은 해당 날짜 자정, 비교(comparison)는 하루 전 자정의 오행 강도입니다.
시그널은 날짜로만 결정되므로 모든 종목에 같은 결과가 나옵니다.

Example:
  go run ./cmd/quant signal
  go run ./cmd/quant signal --date 2024-02-10 --symbols AAPL,TSLA
  go run ./cmd/quant signal --save --db
  go run ./cmd/quant signal --symbols 005930 --technicals --csv-dir ./data`,
	RunE: runSignal,
}

var (
	signalDate       string
	signalSymbols    string
	signalStrategy   string
	signalSave       bool
	signalUseDB      bool
	signalJSON       bool
	signalTechnicals bool
	signalCSVDir     string
)

func init() {
	rootCmd.AddCommand(signalCmd)

	signalCmd.Flags().StringVar(&signalDate, "date", "", "날짜 (YYYY-MM-DD, 기본: 오늘)")
	signalCmd.Flags().StringVar(&signalSymbols, "symbols", "", "종목 목록 (콤마 구분, 기본: SIGNAL_SYMBOLS)")
	signalCmd.Flags().StringVar(&signalStrategy, "strategy", "", "전략 YAML 파일")
	signalCmd.Flags().BoolVar(&signalSave, "save", false, "daily_signals 테이블에 저장")
	signalCmd.Flags().BoolVar(&signalUseDB, "db", false, "PostgreSQL 사용")
	signalCmd.Flags().BoolVar(&signalJSON, "json", false, "결과를 JSON으로 출력")
	signalCmd.Flags().BoolVar(&signalTechnicals, "technicals", false, "MA/RSI/볼린저 지표 함께 출력")
	signalCmd.Flags().StringVar(&signalCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
}

func runSignal(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{
		strategyFile: signalStrategy,
		csvDir:       signalCSVDir,
		useDB:        signalUseDB || signalSave,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	date := today(a.location)
	if signalDate != "" {
		if date, err = parseDay(signalDate, a.location); err != nil {
			return err
		}
	}

	symbols := a.cfg.Signal.Symbols
	if signalSymbols != "" {
		symbols = splitSymbols(signalSymbols)
	}

	signaler := a.signaler()
	snapshots := make([]contracts.DailySignal, 0, len(symbols))
	for _, symbol := range symbols {
		snapshots = append(snapshots, signaler.Snapshot(date, symbol))
	}

	if signalSave {
		repo := a.signalRepo()
		if repo == nil {
			return fmt.Errorf("--save needs DATABASE_URL")
		}
		if err := repo.SaveAll(cmd.Context(), snapshots); err != nil {
			return fmt.Errorf("save signals: %w", err)
		}
	}

	if signalJSON {
		return writeJSON(snapshots)
	}
	if len(snapshots) == 0 {
		PrintInfo("No symbols")
		return nil
	}

	sig := snapshots[0].Signal
	fmt.Println("=== Wuxing Daily Signal ===")
	fmt.Println()
	PrintKeyValue("Date", contracts.DateKey(date), 10)
	PrintKeyValue("Pillars", snapshots[0].Pillars, 10)
	PrintKeyValue("Today", sig.Reference.String(), 10)
	PrintKeyValue("Yesterday", sig.Comparison.String(), 10)
	fmt.Println()

	if len(sig.Reasons) > 0 {
		fmt.Println("🔎 Reasons")
		reasons := make([]string, 0, len(sig.Reasons))
		for _, r := range sig.Reasons {
			reasons = append(reasons, r.String())
		}
		PrintList(reasons)
		fmt.Println()
	}

	widths := []int{12, 6, 10, 8}
	PrintTableHeader([]string{"Symbol", "Action", "Confidence", "Score"}, widths)
	for _, ds := range snapshots {
		PrintTableRow([]string{
			ds.Symbol,
			string(ds.Signal.Action),
			fmt.Sprintf("%.2f", ds.Signal.Confidence),
			fmt.Sprintf("%+d", ds.Signal.Strength),
		}, widths)
	}
	fmt.Println()

	if signalTechnicals {
		printTechnicals(cmd, a, date, symbols)
	}

	if signalSave {
		PrintSuccess(fmt.Sprintf("Saved %d signals for %s (%s)", len(snapshots), contracts.DateKey(date), strings.Join(symbols, ", ")))
	}
	return nil
}

// technicalLookback covers MA50 with room for non-trading days
const technicalLookback = 120

// printTechnicals shows indicators over the bars before and on date
func printTechnicals(cmd *cobra.Command, a *app, date time.Time, symbols []string) {
	fmt.Println("📐 Technicals")
	widths := []int{12, 10, 10, 10, 7, 22}
	PrintTableHeader([]string{"Symbol", "MA5", "MA20", "MA50", "RSI14", "Bollinger(20)"}, widths)

	source := a.source()
	for _, symbol := range symbols {
		bars, err := source.Bars(cmd.Context(), symbol, date.AddDate(0, 0, -technicalLookback), date.AddDate(0, 0, 1))
		if err != nil {
			PrintTableRow([]string{symbol, "-", "-", "-", "-", err.Error()}, widths)
			continue
		}

		tech := s2_signals.ComputeTechnicals(bars.Closes())
		PrintTableRow([]string{
			symbol,
			fmt.Sprintf("%.2f", tech.MA5),
			fmt.Sprintf("%.2f", tech.MA20),
			fmt.Sprintf("%.2f", tech.MA50),
			fmt.Sprintf("%.1f", tech.RSI14),
			fmt.Sprintf("%.2f / %.2f", tech.BBLower, tech.BBUpper),
		}, widths)
	}
	fmt.Println()
}
