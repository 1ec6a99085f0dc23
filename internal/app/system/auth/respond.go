package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// APIError is an error with an HTTP status and a stable machine code.
// Plugins return it from Before hooks and handlers.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

// NewAPIError builds an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

var (
	errInvalidCredentials = NewAPIError(http.StatusUnauthorized, "INVALID_EMAIL_OR_PASSWORD", "Invalid email or password.")
	errUserExists         = NewAPIError(http.StatusUnprocessableEntity, "USER_ALREADY_EXISTS", "An account with this email already exists.")
	errInternal           = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something went wrong. Please try again.")
	errBackend            = NewAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Sessions are temporarily unavailable.")
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as {"code": ..., "message": ...}. Errors that are
// not an *APIError become a 500 without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := asAPIError(err)
	WriteJSON(w, apiErr.Status, map[string]string{"code": apiErr.Code, "message": apiErr.Message})
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return errInternal
}

// WantsJSON reports whether the caller is an API client rather than a
// browser form post.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// respondError answers an API caller with JSON and a browser with a 303 to
// page carrying ?error=<code>.
func respondError(w http.ResponseWriter, r *http.Request, page string, err error) {
	if WantsJSON(r) {
		WriteError(w, err)
		return
	}
	apiErr := asAPIError(err)
	http.Redirect(w, r, page+"?error="+url.QueryEscape(apiErr.Code), http.StatusSeeOther)
}

// respondOK answers an API caller with body and a browser with a 303 to dest.
func respondOK(w http.ResponseWriter, r *http.Request, dest string, body any) {
	if WantsJSON(r) {
		WriteJSON(w, http.StatusOK, body)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// SafeLocalPath returns raw if it is a same-site absolute path, else fallback.
func SafeLocalPath(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}
