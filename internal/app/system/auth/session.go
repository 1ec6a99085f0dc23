package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const tokenKey = "token"

// SessionManager reads and writes the signed session cookie. The cookie
// carries only the opaque session token; the session itself lives in the
// database.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	ttl   time.Duration
	log   *zap.Logger
}

// NewSessionManager builds the cookie store using the provided session key
// and domain. The `secure` flag controls whether cookies are marked Secure
// and which SameSite mode is used.
//
// In production (secure=true), cookies are Secure + SameSite=None.
// In local dev over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, ttl time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		return nil, errors.New("session cookie name is empty")
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.String("cookie", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, ttl: ttl, log: logger}, nil
}

// Name returns the cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// TTL returns the session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// Token returns the session token from the request cookie, or "" when the
// cookie is absent or fails verification.
func (sm *SessionManager) Token(r *http.Request) string {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var cookieErr securecookie.Error
		if errors.As(err, &cookieErr) && cookieErr.IsDecode() {
			sm.log.Debug("ignoring undecodable session cookie", zap.Error(err))
		}
		return ""
	}
	tok, _ := sess.Values[tokenKey].(string)
	return tok
}

// SetToken writes the session cookie.
func (sm *SessionManager) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
