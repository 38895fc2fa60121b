package contracts

// Metrics maps a statistic name to its value
type Metrics map[string]float64

// Metric keys
const (
	MetricTotalReturn      = "total_return"
	MetricAnnualizedReturn = "annualized_return"
	MetricVolatility       = "volatility"
	MetricSharpeRatio      = "sharpe_ratio"
	MetricMaxDrawdown      = "max_drawdown"
	MetricWinRate          = "win_rate"
	MetricTradeCount       = "trade_count"
)

// MetricKeys lists the keys in display order
var MetricKeys = []string{
	MetricTotalReturn,
	MetricAnnualizedReturn,
	MetricVolatility,
	MetricSharpeRatio,
	MetricMaxDrawdown,
	MetricWinRate,
	MetricTradeCount,
}

// Get returns the value and whether it was present
func (m Metrics) Get(key string) (float64, bool) {
	v, ok := m[key]
	return v, ok
}

// RiskReport holds tail-risk statistics over period returns
type RiskReport struct {
	VaR95       float64 `json:"var_95"`
	VaR99       float64 `json:"var_99"`
	CVaR95      float64 `json:"cvar_95"`
	CVaR99      float64 `json:"cvar_99"`
	Sortino     float64 `json:"sortino"`
	BestPeriod  float64 `json:"best_period"`
	WorstPeriod float64 `json:"worst_period"`
	Samples     int     `json:"samples"`
}
