package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/auditlog"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// SessionDeleter removes a server-side session by token.
type SessionDeleter interface {
	Delete(ctx context.Context, token string) error
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Sessions   SessionDeleter
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, sessions SessionDeleter, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Sessions:   sessions,
	}
}

// ServeLogout handles GET and POST /logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	// Delete the server-side session, then expire the cookie.
	if token := h.SessionMgr.Token(r); token != "" && h.Sessions != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		if err := h.Sessions.Delete(ctx, token); err != nil {
			h.Log.Warn("logout: delete session", zap.Error(err))
		}
		cancel()
	}

	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Error("logout: clear session cookie", zap.Error(err))
	}

	if u, ok := auth.CurrentUser(r); ok && h.AuditLog != nil {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}

	// HTMX handling: use HX-Redirect to force a client-side navigation to "/".
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Non-HTMX: standard redirect home.
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
