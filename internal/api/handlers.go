package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"stakeScope/internal/model"
	"stakeScope/internal/syncer"
)

// Engine is the part of syncer.Engine the API reads and drives.
type Engine interface {
	Latest() (model.SyncSnapshot, bool)
	Stats() syncer.Stats
	ForceRefresh()
	ResetCache()
}

// Config holds what the routes need.
type Config struct {
	Engine     Engine
	Logger     *zap.Logger
	CorsOrigin string
}

// NewMux builds the HTTP handler with every route registered.
func NewMux(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := NewApp(
		Logger(logger),
		Errors(logger),
		Panics(),
	)

	var routeMW []Middleware
	if cfg.CorsOrigin != "" {
		cors := Cors(cfg.CorsOrigin)
		routeMW = append(routeMW, cors)
		preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return Respond(ctx, w, nil, http.StatusNoContent)
		}
		app.Handle(http.MethodOptions, "/*path", preflight, cors)
	}

	h := handlers{engine: cfg.Engine, logger: logger}
	app.Handle(http.MethodGet, "/v1/snapshot", h.snapshot, routeMW...)
	app.Handle(http.MethodGet, "/v1/stats", h.stats, routeMW...)
	app.Handle(http.MethodPost, "/v1/refresh", h.refresh, routeMW...)
	app.Handle(http.MethodGet, "/v1/health", h.health)

	return app
}

type handlers struct {
	engine Engine
	logger *zap.Logger
}

// snapshot returns the last delivered snapshot. Clients poll this route.
func (h handlers) snapshot(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snapshot, ok := h.engine.Latest()
	if !ok {
		return NewRequestError(errors.New("no snapshot yet"), http.StatusServiceUnavailable)
	}
	return Respond(ctx, w, snapshot, http.StatusOK)
}

func (h handlers) stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return Respond(ctx, w, h.engine.Stats(), http.StatusOK)
}

// refresh forces the next poll to notify. reset=true also drops the cache.
func (h handlers) refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	reset := false
	if raw := r.URL.Query().Get("reset"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return NewRequestError(errors.New("reset must be a boolean"), http.StatusBadRequest)
		}
		reset = parsed
	}

	if reset {
		h.engine.ResetCache()
	} else {
		h.engine.ForceRefresh()
	}

	traceID := ""
	if v, err := GetValues(ctx); err == nil {
		traceID = v.TraceID
	}
	h.logger.Info("refresh requested", zap.Bool("reset", reset), zap.String("trace_id", traceID))

	resp := struct {
		Status string `json:"status"`
		Reset  bool   `json:"reset"`
	}{
		Status: "refresh scheduled",
		Reset:  reset,
	}
	return Respond(ctx, w, resp, http.StatusAccepted)
}

func (h handlers) health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Status string `json:"status"`
	}{
		Status: "ok",
	}
	return Respond(ctx, w, resp, http.StatusOK)
}
