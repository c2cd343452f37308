package api

import (
	"context"
	"crypto/sha256"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/ag3dash/server/internal/session"
)

const (
	cookieName  = "ag3dash"
	cookieIDKey = "sid"
)

// Context key for the request's session
type ctxKey string

const sessionKey ctxKey = "session"

func newCookieStore(secret string, ttl time.Duration, secure bool) *sessions.CookieStore {
	// Hash the secret so any configured string yields a 32-byte key.
	key := sha256.Sum256([]byte(secret))
	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionMiddleware resolves the browser's session from its cookie, creating
// one when absent or expired, and initializes its state before the handler
// runs.
func (s *server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A cookie that fails verification yields a fresh session here.
		cs, _ := s.cookies.Get(r, cookieName)
		id, _ := cs.Values[cookieIDKey].(string)

		// The cookie is re-sent on every request so its Max-Age slides with
		// the server-side idle TTL.
		sess, _ := s.sessions.GetOrCreate(id)
		cs.Values[cookieIDKey] = sess.ID
		if err := cs.Save(r, w); err != nil {
			log.Printf("[Session] Warning: failed to save cookie: %v", err)
		}

		if err := s.sessions.Initialize(r.Context(), sess); err != nil {
			log.Printf("[Session] Failed to initialize %s: %v", sess.ID, err)
			http.Error(w, "failed to load data: "+err.Error(), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getSession retrieves the session from request context.
func getSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey).(*session.Session)
	return sess
}
