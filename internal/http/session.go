package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionCookie = "sf_session"

type contextKey string

const sessionKey contextKey = "session_id"

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies the signed guest-session cookie.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	log    *slog.Logger
	now    func() time.Time
}

func NewSessions(secret []byte, ttl time.Duration, secure bool, log *slog.Logger) *Sessions {
	return &Sessions{
		secret: secret,
		ttl:    ttl,
		secure: secure,
		log:    log,
		now:    time.Now,
	}
}

// Middleware puts the session id of the request into its context, starting a new session
// when the cookie is missing or invalid. Cookies past half their lifetime are renewed.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, expiresAt := s.fromRequest(r)
		if sessionID == "" {
			sessionID = uuid.NewString()
			s.issue(w, r, sessionID)
		} else if expiresAt.Sub(s.now()) < s.ttl/2 {
			s.issue(w, r, sessionID)
		}

		setLogSession(r.Context(), sessionID)
		ctx := context.WithValue(r.Context(), sessionKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) fromRequest(r *http.Request) (string, time.Time) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", time.Time{}
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || claims.SessionID == "" {
		s.log.DebugContext(r.Context(), "discarding session cookie", slog.Any("error", err))
		return "", time.Time{}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.SessionID, expiresAt
}

// Token signs a session token for sessionID.
func (s *Sessions) Token(sessionID string) (string, error) {
	now := s.now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) issue(w http.ResponseWriter, r *http.Request, sessionID string) {
	token, err := s.Token(sessionID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to sign session token", slog.Any("error", err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func getSessionFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionKey).(string); ok {
		return sessionID
	}
	return ""
}
