package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Pinger is the database check. *database.Handle satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB   Pinger
	Kind string
	Log  *zap.Logger
}

// NewHandler constructs a health Handler with the database handle and logger.
func NewHandler(db Pinger, kind string, logger *zap.Logger) *Handler {
	return &Handler{
		DB:   db,
		Kind: kind,
		Log:  logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "kind":"embedded" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Kind:     h.Kind,
	}

	if err := h.DB.Ping(ctx); err != nil {
		h.Log.Error("health-check: database ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
