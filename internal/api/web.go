// Package api serves the latest sync snapshot to polling HTTP clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// Handler is an HTTP handler that reports failures as errors.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

type ctxKey int

const valuesKey ctxKey = 1

// Values carries per-request state.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// GetValues returns the request values stored by App.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return nil, errors.New("web values missing from context")
	}
	return v, nil
}

// App is the router with the middleware shared by every route.
type App struct {
	mux *httptreemux.ContextMux
	mw  []Middleware
}

// NewApp builds an App. mw runs outermost first.
func NewApp(mw ...Middleware) *App {
	return &App{mux: httptreemux.NewContextMux(), mw: mw}
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Handle registers handler for method and path. Route-specific middleware
// runs inside the application middleware.
func (a *App) Handle(method, path string, handler Handler, mw ...Middleware) {
	handler = wrap(mw, handler)
	handler = wrap(a.mw, handler)

	a.mux.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now().UTC(),
		}
		ctx := context.WithValue(r.Context(), valuesKey, &v)
		_ = handler(ctx, w, r)
	})
}

func wrap(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}
	return handler
}

// Respond writes data as JSON with statusCode.
func Respond(ctx context.Context, w http.ResponseWriter, data interface{}, statusCode int) error {
	if v, err := GetValues(ctx); err == nil {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent || data == nil {
		w.WriteHeader(statusCode)
		return nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestError is an error that is safe to show to the client.
type RequestError struct {
	Err    error
	Status int
}

// NewRequestError wraps err with an HTTP status.
func NewRequestError(err error, status int) error {
	return &RequestError{Err: err, Status: status}
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
