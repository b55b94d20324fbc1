package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveSession(s *Sessions, cookie *http.Cookie) (string, *http.Cookie) {
	var seen string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return seen, c
		}
	}
	return seen, nil
}

func TestSessions_IssuesCookieWhenMissing(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, true, logger.Discard())

	session, cookie := serveSession(s, nil)

	require.NotEmpty(t, session)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, 3600, cookie.MaxAge)

	again, renewed := serveSession(s, cookie)
	assert.Equal(t, session, again)
	assert.Nil(t, renewed, "fresh cookie should not be reissued")
}

func TestSessions_RejectsForeignSignature(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false, logger.Discard())
	other := NewSessions([]byte("another-secret"), time.Hour, false, logger.Discard())

	token, err := other.Token("hijacked")
	require.NoError(t, err)

	session, cookie := serveSession(s, &http.Cookie{Name: SessionCookie, Value: token})
	assert.NotEqual(t, "hijacked", session)
	assert.NotNil(t, cookie)
}

func TestSessions_RejectsOtherAlgorithms(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false, logger.Discard())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, sessionClaims{SessionID: "hs512"}).SignedString(testSecret)
	require.NoError(t, err)

	session, _ := serveSession(s, &http.Cookie{Name: SessionCookie, Value: token})
	assert.NotEqual(t, "hs512", session)
}

func TestSessions_ExpiredTokenStartsNewSession(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false, logger.Discard())
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := s.Token("stale")
	require.NoError(t, err)
	s.now = time.Now

	session, cookie := serveSession(s, &http.Cookie{Name: SessionCookie, Value: token})
	assert.NotEqual(t, "stale", session)
	assert.NotNil(t, cookie)
}

func TestSessions_RenewsPastHalfLifetime(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false, logger.Discard())
	s.now = func() time.Time { return time.Now().Add(-40 * time.Minute) }
	token, err := s.Token("keep-me")
	require.NoError(t, err)
	s.now = time.Now

	session, cookie := serveSession(s, &http.Cookie{Name: SessionCookie, Value: token})
	assert.Equal(t, "keep-me", session)
	require.NotNil(t, cookie)
	assert.NotEqual(t, token, cookie.Value)
}
