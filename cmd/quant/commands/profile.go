package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/profile"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile [asset]",
	Short: "자산 사주 프로필",
	Long: `자산의 출시일 간지로 오행 프로필과 월별 전망을 계산합니다.

--symbol을 주면 저장된 일봉으로 실제 월별 수익률 통계와
전망 대비 정확도(1 - |실제 승률 - 기대 승률|)를 함께 출력합니다.
인자가 없으면 내장 자산 목록을 보여줍니다.

Example:
  go run ./cmd/quant profile
  go run ./cmd/quant profile gold
  go run ./cmd/quant profile btc --symbol BTC-USD --csv-dir ./data
  go run ./cmd/quant profile compare sse gold btc --csv-dir ./data`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfile,
}

var (
	profileSymbol string
	profileCSVDir string
	profileUseDB  bool
	profileJSON   bool
)

// profileCompareCmd correlates several assets against their default tickers
var profileCompareCmd = &cobra.Command{
	Use:   "compare [assets...]",
	Short: "자산별 월/오행 패턴 비교",
	Long: `각 자산의 기본 종목 일봉으로 전망-실적 상관을 계산하고
월별 평균과 월 오행별 평균 수익률을 비교합니다.
인자가 없으면 내장 자산 전체를 비교합니다.`,
	RunE: runProfileCompare,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileCompareCmd)

	profileCmd.Flags().StringVar(&profileSymbol, "symbol", "", "월별 통계에 사용할 종목")
	profileCmd.PersistentFlags().StringVar(&profileCSVDir, "csv-dir", "", "CSV 일봉 디렉토리")
	profileCmd.PersistentFlags().BoolVar(&profileUseDB, "db", false, "PostgreSQL bars 테이블 사용")
	profileCmd.PersistentFlags().BoolVar(&profileJSON, "json", false, "결과를 JSON으로 출력")
}

func runProfile(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		widths := []int{6, 16, 12}
		PrintTableHeader([]string{"Key", "Name", "Launch"}, widths)
		for _, asset := range profile.Assets() {
			PrintTableRow([]string{asset.Key, asset.Name, asset.LaunchDate.Format("2006-01-02")}, widths)
		}
		return nil
	}

	asset, err := profile.Lookup(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), appOptions{csvDir: profileCSVDir, useDB: profileUseDB})
	if err != nil {
		return err
	}
	defer a.Close()

	p := profile.Analyze(a.calculator(), asset)
	outlook := profile.Forecast(p)

	var season *audit.Seasonality
	var corr *profile.Correlation
	if profileSymbol != "" {
		s, err := loadSeasonality(cmd.Context(), a, profileSymbol)
		if err != nil {
			return err
		}
		c := profile.Correlate(p, s)
		season, corr = &s, &c
	}

	if profileJSON {
		return writeJSON(map[string]interface{}{
			"profile":     p,
			"outlook":     outlook,
			"seasonality": season,
			"correlation": corr,
		})
	}

	fmt.Printf("=== %s Profile ===\n\n", asset.Name)
	PrintKeyValue("Launch", asset.LaunchDate.Format("2006-01-02"), 10)
	PrintKeyValue("Pillars", p.Pillars.String(), 10)
	PrintKeyValue("Strength", p.Strength.String(), 10)
	PrintKeyValue("Dominant", p.Dominant.String(), 10)
	PrintKeyValue("Weakest", p.Weakest.String(), 10)
	PrintKeyValue("Balance", fmt.Sprintf("%.2f", p.Balance), 10)
	PrintKeyValue("Stems", fmt.Sprintf("yang %d / yin %d (%s)", p.Stems.Yang, p.Stems.Yin, p.Stems.Nature), 10)
	PrintKeyValue("Season", p.Branches.DominantSeason.String(), 10)
	PrintKeyValue("Behavior", fmt.Sprintf("volatility %s, trend %s, risk %s",
		p.Behavior.Volatility, p.Behavior.TrendStrength, p.Behavior.RiskLevel), 10)
	fmt.Println()

	fmt.Println("📅 Monthly Outlook")
	widths := []int{5, 7, 7, 12, 7, 7, 7, 7}
	PrintTableHeader([]string{"Month", "Branch", "Elem", "Relation", "Return", "Vol", "Win", "Conf"}, widths)
	for _, mo := range outlook.Months {
		PrintTableRow([]string{
			fmt.Sprintf("%d", int(mo.Month)),
			mo.Glyph,
			mo.Element.String(),
			mo.Relation.String(),
			fmt.Sprintf("%.2f", mo.Scores.Return),
			fmt.Sprintf("%.2f", mo.Scores.Volatility),
			fmt.Sprintf("%.2f", mo.Scores.WinRate),
			fmt.Sprintf("%.2f", mo.Scores.Confidence),
		}, widths)
	}
	fmt.Printf("\n   Best: %s, Worst: %s\n\n", outlook.Best, outlook.Worst)

	if season != nil {
		fmt.Printf("📈 %s Monthly Returns (%d periods)\n", profileSymbol, season.Periods)
		if len(season.Months) == 0 {
			PrintWarning("not enough month-end closes")
			return nil
		}
		widths := []int{9, 5, 8, 8, 8, 7}
		PrintTableHeader([]string{"Month", "N", "Mean", "Median", "StdDev", "Win"}, widths)
		for _, ms := range season.Months {
			PrintTableRow([]string{
				ms.Month.String()[:3],
				fmt.Sprintf("%d", ms.Count),
				formatPct(ms.Mean),
				formatPct(ms.Median),
				formatPct(ms.StdDev),
				fmt.Sprintf("%.0f%%", ms.WinRate*100),
			}, widths)
		}
		fmt.Printf("\n   Best: %s, Worst: %s\n", season.BestMonth, season.WorstMonth)
		fmt.Printf("   Outlook agrees on best month: %s\n\n", strings.ToLower(fmt.Sprint(season.BestMonth == outlook.Best)))
		printCorrelation(*corr)
	}
	return nil
}

func loadSeasonality(ctx context.Context, a *app, symbol string) (audit.Seasonality, error) {
	bars, err := a.source().Bars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return audit.Seasonality{}, fmt.Errorf("load %s: %w", symbol, err)
	}
	return audit.MonthlySeasonality(bars), nil
}

func printCorrelation(c profile.Correlation) {
	fmt.Println("🎯 Predicted vs Actual")
	widths := []int{5, 12, 8, 8, 8, 7}
	PrintTableHeader([]string{"Month", "Relation", "ExpWin", "ActWin", "Acc", "Conf"}, widths)
	for _, mc := range c.Months {
		PrintTableRow([]string{
			mc.Month.String()[:3],
			mc.Relation.String(),
			fmt.Sprintf("%.0f%%", mc.Expected.WinRate*100),
			fmt.Sprintf("%.0f%%", mc.Actual.WinRate*100),
			fmt.Sprintf("%.2f", mc.Accuracy),
			fmt.Sprintf("%.2f", mc.Confidence),
		}, widths)
	}
	fmt.Printf("\n   Mean accuracy: %.2f\n\n", c.MeanAccuracy)

	if len(c.Seasons) == 0 {
		return
	}
	fmt.Println("🍂 Seasonal Patterns")
	widths = []int{8, 4, 8, 7, 8, 6, 6}
	PrintTableHeader([]string{"Season", "N", "Return", "Win", "StdDev", "Best", "Worst"}, widths)
	for _, sp := range c.Seasons {
		PrintTableRow([]string{
			sp.Season.String(),
			fmt.Sprintf("%d", sp.Months),
			formatPct(sp.AvgReturn),
			fmt.Sprintf("%.0f%%", sp.AvgWinRate*100),
			formatPct(sp.ReturnStd),
			sp.BestMonth.String()[:3],
			sp.WorstMonth.String()[:3],
		}, widths)
	}
	fmt.Println()
}

func runProfileCompare(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, asset := range profile.Assets() {
			args = append(args, asset.Key)
		}
	}

	a, err := newApp(cmd.Context(), appOptions{csvDir: profileCSVDir, useDB: profileUseDB})
	if err != nil {
		return err
	}
	defer a.Close()

	correlations := make([]profile.Correlation, 0, len(args))
	for _, key := range args {
		asset, err := profile.Lookup(key)
		if err != nil {
			return err
		}
		s, err := loadSeasonality(cmd.Context(), a, asset.Symbol)
		if err != nil {
			return err
		}
		correlations = append(correlations, profile.Correlate(profile.Analyze(a.calculator(), asset), s))
	}
	cmp := profile.Compare(correlations)

	if profileJSON {
		return writeJSON(cmp)
	}

	fmt.Println("=== Asset Comparison ===")
	fmt.Println()
	widths := []int{6, 10, 9, 9, 8, 6, 6}
	PrintTableHeader([]string{"Asset", "Symbol", "Dominant", "Return", "Acc", "Best", "Worst"}, widths)
	for _, c := range cmp.Assets {
		PrintTableRow([]string{
			c.Asset.Key,
			c.Asset.Symbol,
			c.Dominant.String(),
			formatPct(c.MeanReturn),
			fmt.Sprintf("%.2f", c.MeanAccuracy),
			monthAbbr(c.BestMonth),
			monthAbbr(c.WorstMonth),
		}, widths)
	}
	fmt.Println()

	fmt.Println("📅 Month Averages")
	widths = []int{5, 7, 7, 7, 8, 7}
	PrintTableHeader([]string{"Month", "Branch", "Elem", "Assets", "Return", "Win"}, widths)
	for _, ma := range cmp.Months {
		PrintTableRow([]string{
			ma.Month.String()[:3],
			ma.Glyph,
			ma.Element.String(),
			fmt.Sprintf("%d", ma.Assets),
			formatPct(ma.AvgReturn),
			fmt.Sprintf("%.0f%%", ma.AvgWinRate*100),
		}, widths)
	}
	fmt.Println()

	fmt.Println("🌿 Month Element Averages")
	widths = []int{7, 7, 8}
	PrintTableHeader([]string{"Elem", "Months", "Return"}, widths)
	for _, ea := range cmp.Elements {
		PrintTableRow([]string{ea.Element.String(), fmt.Sprintf("%d", ea.Months), formatPct(ea.AvgReturn)}, widths)
	}
	fmt.Printf("\n   Best: %s, Worst: %s\n", monthAbbr(cmp.BestMonth), monthAbbr(cmp.WorstMonth))
	return nil
}

// monthAbbr renders zero as "-" for assets without history
func monthAbbr(m time.Month) string {
	if m == 0 {
		return "-"
	}
	return m.String()[:3]
}
