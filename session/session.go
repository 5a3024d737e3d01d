// Package session resolves who is asking. The HTTP middleware lifts the
// caller identity from request headers into the context; providers read it
// back for the orchestrator.
package session

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// ErrNoSession is terminal: callers must not retry it.
var ErrNoSession = errors.New("no active session")

type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil && s.UserID != ""
}

// ContextProvider returns the session stored by Middleware.
type ContextProvider struct{}

func (ContextProvider) GetSession(ctx context.Context) (*Session, error) {
	if s, ok := FromContext(ctx); ok {
		return s, nil
	}
	return nil, ErrNoSession
}

// StaticProvider always returns the same session. Used by the CLI.
type StaticProvider struct {
	Session Session
}

func (p StaticProvider) GetSession(context.Context) (*Session, error) {
	if p.Session.UserID == "" {
		return nil, ErrNoSession
	}
	s := p.Session
	return &s, nil
}

// FromHeaders reads X-User-ID / X-User-Email, falling back to a bearer
// token as the user id.
func FromHeaders(userID, email, authorization string) *Session {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		if token, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer "); ok {
			userID = strings.TrimSpace(token)
		}
	}
	if userID == "" {
		return nil
	}
	return &Session{UserID: userID, Email: strings.TrimSpace(email)}
}

// Middleware attaches the caller's session, if any, to the request context.
// Requests without one continue; operations that need a session fail later
// with ErrNoSession.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := FromHeaders(c.GetHeader("X-User-ID"), c.GetHeader("X-User-Email"), c.GetHeader("Authorization"))
		if s != nil {
			c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
			c.Set("user_id", s.UserID)
		}
		c.Next()
	}
}

// UserID returns the session user of the request, or "".
func UserID(c *gin.Context) string {
	if s, ok := FromContext(c.Request.Context()); ok {
		return s.UserID
	}
	return ""
}
