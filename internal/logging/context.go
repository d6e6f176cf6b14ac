package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace/run ID.
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger from context, falling back to Default().
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext returns a context carrying the given logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// RunContext creates a logger context for one simulation run.
func RunContext(runID, mode, symbol string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"run_id": runID,
		"mode":   mode,
		"symbol": symbol,
	}).WithComponent("run")
}

// BatchContext creates a logger context for a batch sweep.
func BatchContext(runID string, combinations int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"run_id":       runID,
		"combinations": combinations,
	}).WithComponent("batch")
}

// PortfolioContext creates a logger context for a portfolio run.
func PortfolioContext(runID string, symbols []string, totalCapital float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"run_id":        runID,
		"symbols":       symbols,
		"total_capital": totalCapital,
	}).WithComponent("portfolio")
}

// MarketDataContext creates a logger context for bar/beta/membership lookups.
func MarketDataContext(symbol string, startDate, endDate time.Time) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":     symbol,
		"start_date": startDate.Format("2006-01-02"),
		"end_date":   endDate.Format("2006-01-02"),
	}).WithComponent("marketdata")
}

// APIContext creates a logger context for HTTP operations.
func APIContext(method, path string, statusCode int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
	}).WithComponent("api")
}

// DatabaseContext creates a logger context for database operations.
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}

// HTTPMiddleware adds request-scoped logging to the standard net/http stack;
// gin's own middleware (internal/api) wraps this logger directly instead of
// using http.Handler, but the helper is kept for any plain-net/http tooling.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		l := Default().WithTraceID(traceID).WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
		}).WithComponent("http")

		ctx := NewContext(r.Context(), l)
		r = r.WithContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapped, r)

		l.WithDuration(time.Since(start)).WithField("status_code", wrapped.statusCode).Info("request completed")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
