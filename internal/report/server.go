package report

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// FloorState is the live view the report server reads from.
type FloorState interface {
	Accounts() []domain.Account
	Prices() map[string]int64
}

// NewRouter creates a chi router serving health, live portfolio
// snapshots, and Prometheus metrics, with request logging.
func NewRouter(state FloorState, initialCash int64, metrics http.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/snapshots", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, BuildAll(state.Accounts(), state.Prices(), initialCash))
	})

	r.Get("/snapshots/{trader_id}", func(w http.ResponseWriter, r *http.Request) {
		traderID := chi.URLParam(r, "trader_id")
		for _, acc := range state.Accounts() {
			if acc.TraderID == traderID {
				WriteJSON(w, http.StatusOK, Build(acc, state.Prices(), initialCash))
				return
			}
		}
		WriteError(w, http.StatusNotFound, "not_found", "no such trader")
	})

	r.Method(http.MethodGet, "/metrics", metrics)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{Error: errorCode, Message: message})
}
