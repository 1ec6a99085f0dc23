// internal/app/store/audit/store.go
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
)

// Event categories
const (
	CategoryAuth    = "auth"
	CategoryBilling = "billing"
)

// Auth event types
const (
	EventSignUp                   = "sign_up"
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLoginFailedCaptcha       = "login_failed_captcha"
	EventOAuthLogin               = "oauth_login"
	EventOneTapLogin              = "one_tap_login"
	EventLogout                   = "logout"
)

// Billing event types
const (
	EventCheckoutStarted      = "checkout_started"
	EventSubscriptionUpdated  = "subscription_updated"
	EventSubscriptionCanceled = "subscription_canceled"
)

// Event represents an audit event.
type Event struct {
	ID        string
	Timestamp time.Time

	// Event classification
	Category  string
	EventType string

	// Who
	UserID string

	// Context
	IP        string
	UserAgent string

	// Outcome
	Success       bool
	FailureReason string

	// Additional details (varies by event type)
	Details map[string]string
}

type row struct {
	ID            string `db:"id"`
	CreatedAt     int64  `db:"created_at"`
	Category      string `db:"category"`
	EventType     string `db:"event_type"`
	UserID        string `db:"user_id"`
	IP            string `db:"ip"`
	UserAgent     string `db:"user_agent"`
	Success       bool   `db:"success"`
	FailureReason string `db:"failure_reason"`
	Details       string `db:"details"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    string
	Category  string
	EventType string
	StartTime *time.Time
	Limit     int
}

// Store manages audit event records.
type Store struct {
	h *database.Handle
}

// New creates a new audit Store.
func New(h *database.Handle) *Store {
	return &Store{h: h}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	var details string
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return err
		}
		details = string(b)
	}
	_, err := s.h.DB.NamedExecContext(ctx, `INSERT INTO audit_events
		(id, created_at, category, event_type, user_id, ip, user_agent, success, failure_reason, details)
		VALUES (:id, :created_at, :category, :event_type, :user_id, :ip, :user_agent, :success, :failure_reason, :details)`,
		row{
			ID:            event.ID,
			CreatedAt:     event.Timestamp.UTC().Unix(),
			Category:      event.Category,
			EventType:     event.EventType,
			UserID:        event.UserID,
			IP:            event.IP,
			UserAgent:     event.UserAgent,
			Success:       event.Success,
			FailureReason: event.FailureReason,
			Details:       details,
		})
	return err
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.StartTime != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.StartTime.UTC().Unix())
	}

	// Set defaults
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	q := "SELECT * FROM audit_events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []row
	if err := s.h.DB.SelectContext(ctx, &rows, s.h.Rebind(q), args...); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		e := Event{
			ID:            r.ID,
			Timestamp:     time.Unix(r.CreatedAt, 0).UTC(),
			Category:      r.Category,
			EventType:     r.EventType,
			UserID:        r.UserID,
			IP:            r.IP,
			UserAgent:     r.UserAgent,
			Success:       r.Success,
			FailureReason: r.FailureReason,
		}
		if r.Details != "" {
			_ = json.Unmarshal([]byte(r.Details), &e.Details)
		}
		events = append(events, e)
	}
	return events, nil
}

// GetByUser retrieves recent audit events for a specific user.
func (s *Store) GetByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: userID, Limit: limit})
}
