package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/wuxing-quant/internal/api/handlers"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(cycleHandler *handlers.CycleHandler, backtestHandler *handlers.BacktestHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Cycle endpoints
	api.HandleFunc("/pillars", cycleHandler.GetPillars).Methods("GET")
	api.HandleFunc("/signal", cycleHandler.GetSignals).Methods("GET")
	api.HandleFunc("/signal/history", cycleHandler.GetStoredSignals).Methods("GET")
	api.HandleFunc("/profiles", cycleHandler.ListProfiles).Methods("GET")
	api.HandleFunc("/profiles/compare", cycleHandler.CompareProfiles).Methods("GET")
	api.HandleFunc("/profile/{asset}", cycleHandler.GetProfile).Methods("GET")

	// Backtest endpoints
	api.HandleFunc("/backtest", backtestHandler.RunBacktest).Methods("POST")
	api.HandleFunc("/backtest/sweep", backtestHandler.RunSweep).Methods("POST")
	api.HandleFunc("/backtest/runs", backtestHandler.ListRuns).Methods("GET")
	api.HandleFunc("/backtest/runs/{id}", backtestHandler.GetRun).Methods("GET")

	// Websocket
	r.HandleFunc("/ws/backtest", backtestHandler.StreamBacktest).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "wuxing-quant-api",
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// websocket upgrade needs the raw writer (http.Hijacker)
			if r.URL.Path == "/ws/backtest" {
				next.ServeHTTP(w, r)
				log.WithFields(map[string]interface{}{
					"path":     r.URL.Path,
					"duration": time.Since(start),
				}).Debug("Websocket session closed")
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
