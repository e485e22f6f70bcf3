// Package session persists the identity written at login and reads it back as
// a single snapshot for the access gate.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/paper-archive/access"
)

// Store reads and writes the identity keys for a browser session.
type Store interface {
	// Snapshot reads authToken, userRole and userPermissions in one store access.
	// A visitor without a session yields the zero Identity and no error.
	Snapshot(ctx context.Context, r *http.Request) (access.Identity, error)

	// Save replaces the identity of the session.
	Save(ctx context.Context, w http.ResponseWriter, r *http.Request, rec access.Record) error

	// Clear removes all three identity keys.
	Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// CookieOptions controls the cookies written by a store.
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

func (o CookieOptions) set(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(o.TTL.Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
