package s2_signals

import (
	"github.com/markcheno/go-talib"
)

// Technicals is an indicator snapshot taken at the last bar of a close series.
// Values are 0 when the series is too short for the window.
type Technicals struct {
	MA5     float64 `json:"ma5"`
	MA20    float64 `json:"ma20"`
	MA50    float64 `json:"ma50"`
	RSI14   float64 `json:"rsi14"`
	BBUpper float64 `json:"bb_upper"`
	BBMid   float64 `json:"bb_middle"`
	BBLower float64 `json:"bb_lower"`
}

// ComputeTechnicals calculates MA5/20/50, RSI(14) and Bollinger(20, 2σ)
// ⭐ SSOT: 기술적 지표 계산은 여기서만
func ComputeTechnicals(closes []float64) Technicals {
	var tech Technicals

	tech.MA5 = lastSMA(closes, 5)
	tech.MA20 = lastSMA(closes, 20)
	tech.MA50 = lastSMA(closes, 50)

	if len(closes) > 14 {
		rsi := talib.Rsi(closes, 14)
		tech.RSI14 = rsi[len(rsi)-1]
	}

	if len(closes) >= 20 {
		upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, 0)
		n := len(closes) - 1
		tech.BBUpper, tech.BBMid, tech.BBLower = upper[n], middle[n], lower[n]
	}

	return tech
}

func lastSMA(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	sma := talib.Sma(closes, period)
	return sma[len(sma)-1]
}
