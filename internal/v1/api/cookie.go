package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovidtrivia/quizroom/internal/v1/session"
)

// sessionCookieName is the opaque cookie this edge issues in place of the
// teacher's Auth0 JWT (SPEC_FULL.md: "JWT/Auth0 -> opaque session cookie").
const sessionCookieName = "quiz_session_id"

const sessionCookieMaxAge = 7 * 24 * 60 * 60 // 604800s, 7 days

func (h *Handlers) setSessionCookie(c *gin.Context, sessionID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, sessionID, sessionCookieMaxAge, "/", "", h.secureCookie, true)
}

func (h *Handlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.secureCookie, true)
}

// currentSession returns the session bound to the request's cookie, if any.
func (h *Handlers) currentSession(c *gin.Context) (session.Data, bool) {
	raw, err := c.Cookie(sessionCookieName)
	if err != nil || raw == "" {
		return session.Data{}, false
	}
	return h.sessions.Get(raw)
}
