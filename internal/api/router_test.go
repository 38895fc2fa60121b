package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/api/handlers"
	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/backtest"
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/s2_signals"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

type memSource map[string]contracts.PriceSeries

func (m memSource) Bars(_ context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	bars, ok := m[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return bars.Between(from, to), nil
}

type memRuns struct {
	runs []audit.RunRecord
}

func (m *memRuns) SaveRun(_ context.Context, run audit.RunRecord) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*audit.RunRecord, error) {
	for i := range m.runs {
		if m.runs[i].RunID == id {
			return &m.runs[i], nil
		}
	}
	return nil, audit.ErrRunNotFound
}

func (m *memRuns) ListRuns(_ context.Context, limit int) ([]audit.RunRecord, error) {
	if limit > len(m.runs) {
		limit = len(m.runs)
	}
	return m.runs[:limit], nil
}

func testSeries(n int) contracts.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make(contracts.PriceSeries, n)
	for i := range out {
		c := 100 + float64(i%7)
		out[i] = contracts.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

// risingSeries closes higher every day, so every calendar month wins
func risingSeries(n int) contracts.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make(contracts.PriceSeries, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = contracts.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

func newTestRouter(t *testing.T) (http.Handler, *memRuns) {
	t.Helper()
	log := logger.Nop()

	calc := cycle.NewCalculator()
	signaler := s2_signals.NewDateSignaler(calc, s2_signals.NewGenerator())
	runs := &memRuns{}

	source := memSource{"AAA": testSeries(60), "BBB": testSeries(30), "GC=F": risingSeries(400)}
	engine := backtest.NewEngine(source, log).WithStore(runs)

	defaults := backtest.DefaultConfig()
	defaults.Symbols = []string{"AAA"}

	cycleHandler := handlers.NewCycleHandler(calc, signaler, nil, []string{"AAA", "BBB"}, time.UTC, log).
		WithPrices(source)
	backtestHandler := handlers.NewBacktestHandler(engine, runs, defaults, time.UTC, log)
	return NewRouter(cycleHandler, backtestHandler, log), runs
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetPillars(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantText   string
	}{
		{"midnight", "/api/pillars?date=1900-01-01", http.StatusOK, "甲子 甲子 甲子 甲子"},
		{"with hour", "/api/pillars?date=1900-01-01&hour=5", http.StatusOK, "甲子 甲子 甲子 丙寅"},
		{"bad date", "/api/pillars?date=01/01/1900", http.StatusBadRequest, ""},
		{"bad hour", "/api/pillars?date=1900-01-01&hour=24", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "GET", tt.target, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantText == "" {
				return
			}
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantText, resp["text"])
		})
	}
}

func TestGetSignals(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, "GET", "/api/signal?date=2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Date    string                  `json:"date"`
		Signals []contracts.DailySignal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03-05", resp.Date)
	require.Len(t, resp.Signals, 2)
	assert.Equal(t, "AAA", resp.Signals[0].Symbol)
	assert.Equal(t, cycle.NewCalculator().Compute(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)).String(), resp.Signals[0].Pillars)

	rec = do(t, h, "GET", "/api/signal?date=2024-03-05&symbols=X", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Signals, 1)
	assert.Equal(t, "X", resp.Signals[0].Symbol)

	// 저장소 미설정
	rec = do(t, h, "GET", "/api/signal/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetProfile(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, "GET", "/api/profile/gold", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Profile struct {
			Dominant string `json:"dominant"`
		} `json:"profile"`
		Outlook struct {
			Months []json.RawMessage `json:"months"`
		} `json:"outlook"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Wood", resp.Profile.Dominant)
	assert.Len(t, resp.Outlook.Months, 12)

	rec = do(t, h, "GET", "/api/profile/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "GET", "/api/profiles", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetProfile_Correlation(t *testing.T) {
	h, _ := newTestRouter(t)

	var resp struct {
		Symbol      string `json:"symbol"`
		Seasonality struct {
			Months []json.RawMessage `json:"months"`
		} `json:"seasonality"`
		Correlation struct {
			Months []struct {
				Month    int     `json:"month"`
				Relation string  `json:"relation"`
				Accuracy float64 `json:"accuracy"`
				Expected struct {
					WinRate    float64 `json:"win_rate"`
					Confidence float64 `json:"confidence"`
				} `json:"expected"`
				Confidence float64 `json:"confidence"`
			} `json:"months"`
			Seasons      []json.RawMessage `json:"seasons"`
			MeanWinRate  float64           `json:"mean_win_rate"`
			MeanAccuracy float64           `json:"mean_accuracy"`
		} `json:"correlation"`
	}

	rec := do(t, h, "GET", "/api/profile/gold?history=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "GC=F", resp.Symbol)
	assert.Len(t, resp.Seasonality.Months, 12)
	require.Len(t, resp.Correlation.Months, 12)
	assert.Len(t, resp.Correlation.Seasons, 4)
	assert.InDelta(t, 1.0, resp.Correlation.MeanWinRate, 1e-9)

	// 모든 달이 올랐으므로 정확도는 기대 승률 그 자체
	for _, mc := range resp.Correlation.Months {
		assert.InDelta(t, mc.Expected.WinRate, mc.Accuracy, 1e-9, "month %d", mc.Month)
		assert.InDelta(t, mc.Expected.Confidence*mc.Accuracy, mc.Confidence, 1e-9, "month %d", mc.Month)
	}

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"explicit symbol", "/api/profile/gold?symbol=GC%3DF", http.StatusOK},
		{"path symbol", "/api/profile/gold?symbol=..%2Fsecret", http.StatusBadRequest},
		{"no history", "/api/profile/gold?symbol=ZZZ", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "GET", tt.target, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestGetProfile_NoPriceSource(t *testing.T) {
	calc := cycle.NewCalculator()
	signaler := s2_signals.NewDateSignaler(calc, s2_signals.NewGenerator())
	ch := handlers.NewCycleHandler(calc, signaler, nil, nil, time.UTC, logger.Nop())

	req := httptest.NewRequest("GET", "/api/profile/gold?symbol=GC%3DF", nil)
	req = mux.SetURLVars(req, map[string]string{"asset": "gold"})
	rec := httptest.NewRecorder()
	ch.GetProfile(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// 가격 없이도 기본 프로필은 제공
	req = mux.SetURLVars(httptest.NewRequest("GET", "/api/profile/gold", nil), map[string]string{"asset": "gold"})
	rec = httptest.NewRecorder()
	ch.GetProfile(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompareProfiles(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, "GET", "/api/profiles/compare?assets=gold", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Assets   []json.RawMessage `json:"assets"`
		Months   []json.RawMessage `json:"months"`
		Elements []struct {
			Element string `json:"element"`
			Months  int    `json:"months"`
		} `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 1)
	assert.Len(t, resp.Months, 12)

	months := 0
	for _, e := range resp.Elements {
		months += e.Months
	}
	assert.Equal(t, 12, months)

	// sse 기본 종목(000001.SS) 데이터 없음
	rec = do(t, h, "GET", "/api/profiles/compare?assets=gold,sse", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, "GET", "/api/profiles/compare?assets=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunBacktest(t *testing.T) {
	h, runs := newTestRouter(t)

	rec := do(t, h, "POST", "/api/backtest", map[string]interface{}{
		"symbols":         []string{"AAA", "BBB"},
		"initial_capital": 50000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result backtest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 50000.0, result.InitialCapital)
	assert.Len(t, result.EquityCurve, 61)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, result.RunID, runs.runs[0].RunID)

	// persisted run lookup
	rec = do(t, h, "GET", "/api/backtest/runs/"+result.RunID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, "GET", "/api/backtest/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, "GET", "/api/backtest/runs?limit=5", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunBacktest_Errors(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{"bad date", map[string]interface{}{"start_date": "2023/01/01"}, http.StatusBadRequest},
		{"reversed dates", map[string]interface{}{"start_date": "2023-02-01", "end_date": "2023-01-01"}, http.StatusBadRequest},
		{"zero capital", map[string]interface{}{"initial_capital": 0}, http.StatusBadRequest},
		{"bad fraction", map[string]interface{}{"position_fraction": 1.5}, http.StatusBadRequest},
		{"path symbol", map[string]interface{}{"symbols": []string{"../../etc/x"}}, http.StatusBadRequest},
		{"zero sell threshold", map[string]interface{}{"sell_threshold": 0}, http.StatusBadRequest},
		{"positive sell threshold", map[string]interface{}{"buy_threshold": 2, "sell_threshold": 3}, http.StatusBadRequest},
		{"negative buy threshold", map[string]interface{}{"buy_threshold": -1}, http.StatusBadRequest},
		{"no data", map[string]interface{}{"symbols": []string{"NOPE"}}, http.StatusUnprocessableEntity},
		{"window without bars", map[string]interface{}{"start_date": "2030-01-01"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/backtest", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	req := httptest.NewRequest("POST", "/api/backtest", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSweep(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, "POST", "/api/backtest/sweep", map[string]interface{}{
		"variants": []map[string]interface{}{
			{"name": "small", "position_fraction": 0.05},
			{"name": "large", "position_fraction": 0.2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []backtest.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "small", results[0].Variant.Name)
	assert.Equal(t, 0.2, results[1].Result.Config.PositionFraction)

	rec = do(t, h, "POST", "/api/backtest/sweep", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSweep_PartialThresholds(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, "POST", "/api/backtest/sweep", map[string]interface{}{
		"variants": []map[string]interface{}{
			{"name": "eager", "thresholds": map[string]interface{}{"buy": 2}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []backtest.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)

	want := s2_signals.DefaultThresholds()
	want.Buy = 2
	assert.Equal(t, want, results[0].Result.Config.Thresholds)
	for _, tr := range results[0].Result.Trades {
		assert.NotEqual(t, contracts.ActionSell, tr.Action)
	}

	rec = do(t, h, "POST", "/api/backtest/sweep", map[string]interface{}{
		"variants": []map[string]interface{}{
			{"name": "flipped", "thresholds": map[string]interface{}{"sell": 1}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "flipped")
}

func TestGetSignals_RejectsPathSymbol(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, "GET", "/api/signal?symbols=../secret", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamBacktest(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/backtest?symbols=BBB&capital=10000"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	points := 0
	var summary handlers.StreamMessage
	for {
		var msg handlers.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
		switch msg.Type {
		case "point":
			require.NotNil(t, msg.Point)
			points++
		case "summary":
			summary = msg
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	assert.Equal(t, 30, points)
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, summary.Result, "metrics")
}

func TestStreamBacktest_RejectsBadRequest(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/backtest"
	for _, query := range []string{"?capital=abc", "?symbols=..%2F..%2Fetc%2Fsecret"} {
		_, resp, err := websocket.DefaultDialer.Dial(base+query, nil)
		require.Error(t, err, query)
		require.NotNil(t, resp, query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestStreamBacktest_NoData(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/backtest?symbols=NOPE"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg handlers.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Error)
}
