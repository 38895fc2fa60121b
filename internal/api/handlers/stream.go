package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

const (
	writeWait   = 10 * time.Second
	maxInterval = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one websocket frame of the equity stream
type StreamMessage struct {
	Type   string                  `json:"type"` // point | summary | error
	Point  *contracts.EquityPoint  `json:"point,omitempty"`
	Trades []contracts.TradeRecord `json:"trades,omitempty"`
	RunID  string                  `json:"run_id,omitempty"`
	Result map[string]interface{}  `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// StreamBacktest runs a backtest and replays its equity curve point by point
// GET /ws/backtest?symbols=A,B&start_date=&end_date=&capital=&interval_ms=
func (h *BacktestHandler) StreamBacktest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := BacktestRequest{
		Symbols:   splitList(q.Get("symbols")),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
	if cs := q.Get("capital"); cs != "" {
		capital, err := strconv.ParseFloat(cs, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'capital'")
			return
		}
		req.InitialCapital = &capital
	}

	var interval time.Duration
	if is := q.Get("interval_ms"); is != "" {
		ms, err := strconv.Atoi(is)
		if err != nil || ms < 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'interval_ms'")
			return
		}
		interval = time.Duration(ms) * time.Millisecond
		if interval > maxInterval {
			interval = maxInterval
		}
	}

	// 업그레이드 전에 검증해야 HTTP 에러 코드로 응답 가능
	cfg, err := h.config(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := func(msg StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	result, err := h.engine.Run(ctx, cfg)
	if err != nil {
		h.logger.WithError(err).Warn("Streamed backtest failed")
		_ = send(StreamMessage{Type: "error", Error: err.Error()})
		return
	}

	tradesByDate := make(map[string][]contracts.TradeRecord)
	for _, t := range result.Trades {
		key := contracts.DateKey(t.Date)
		tradesByDate[key] = append(tradesByDate[key], t)
	}

	for i := range result.Points {
		point := result.Points[i]
		msg := StreamMessage{
			Type:   "point",
			Point:  &point,
			Trades: tradesByDate[contracts.DateKey(point.Date)],
		}
		if err := send(msg); err != nil {
			h.logger.WithError(err).Debug("Stream client gone")
			return
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}

	_ = send(StreamMessage{
		Type:  "summary",
		RunID: result.RunID,
		Result: map[string]interface{}{
			"final_equity":   result.FinalEquity,
			"metrics":        result.Metrics,
			"risk":           result.Risk,
			"open_positions": result.OpenPositions,
			"skipped":        result.Skipped,
		},
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}
