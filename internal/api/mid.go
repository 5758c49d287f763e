package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Logger logs every request once it completes.
func Logger(logger *zap.Logger) Middleware {
	return func(handler Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			v, verr := GetValues(ctx)
			if verr != nil {
				return err
			}
			logger.Info("request",
				zap.String("trace_id", v.TraceID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", v.StatusCode),
				zap.Duration("took", time.Since(v.Now)),
			)
			return err
		}
	}
}

// Errors turns handler errors into JSON responses. Errors that are not
// RequestErrors are logged and hidden behind a 500.
func Errors(logger *zap.Logger) Middleware {
	return func(handler Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			var reqErr *RequestError
			if errors.As(err, &reqErr) {
				return Respond(ctx, w, ErrorResponse{Error: reqErr.Error()}, reqErr.Status)
			}

			traceID := ""
			if v, verr := GetValues(ctx); verr == nil {
				traceID = v.TraceID
			}
			logger.Error("request failed", zap.String("trace_id", traceID), zap.Error(err))
			return Respond(ctx, w, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError)
		}
	}
}

// Panics converts a panic in a handler into an error.
func Panics() Middleware {
	return func(handler Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
				}
			}()
			return handler(ctx, w, r)
		}
	}
}

// Cors sets the response headers needed for cross-origin polling.
func Cors(origin string) Middleware {
	return func(handler Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")
			return handler(ctx, w, r)
		}
	}
}
