package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/canslim-screener/internal/api/handlers"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(flows *handlers.FlowHandler, screener *handlers.ScreenerHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Flow endpoints
	api.HandleFunc("/flows", flows.List).Methods("GET")
	api.HandleFunc("/flows/refresh", flows.Refresh).Methods("POST")
	api.HandleFunc("/flows/benchmark", flows.Benchmark).Methods("POST")
	api.HandleFunc("/flows/{id}", flows.Get).Methods("GET")
	api.HandleFunc("/flows/{id}/cancel", flows.Cancel).Methods("POST")
	api.HandleFunc("/flows/{id}/stream", flows.Stream).Methods("GET")

	// Screener endpoints
	api.HandleFunc("/screener", screener.List).Methods("GET")
	api.HandleFunc("/screener/{symbol}", screener.Get).Methods("GET")
	api.HandleFunc("/benchmarks", screener.ListBenchmarks).Methods("GET")
	api.HandleFunc("/benchmarks/{symbol}", screener.GetBenchmark).Methods("GET")
	api.HandleFunc("/market", screener.MarketCondition).Methods("GET")

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
		"service": "canslim-screener-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
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
