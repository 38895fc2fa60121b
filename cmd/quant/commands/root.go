package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Wuxing Quant - 간지/오행 기반 시그널 백테스터",
	Long: `Wuxing Quant Unified CLI

날짜의 간지(年月日時)를 오행 강도로 변환해 매매 시그널을 만들고,
과거 일봉으로 백테스트합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant signal --date 2024-02-10
  go run ./cmd/quant backtest run --symbols AAPL --from 2023-01-01
  go run ./cmd/quant fetcher prices --symbols 005930 --incremental
  go run ./cmd/quant profile gold
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
