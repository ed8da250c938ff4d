package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/pkg/httputil"
)

const msgSessionExpired = "Session expired."

// RefreshToken exchanges the refresh cookie of a live session for a new access token.
// The cookie is cleared when the exchange fails.
func (h *Handler) RefreshToken(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := validateID(sessionID); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	stored, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	presented, err := httputil.GetRefreshCookie(c.Request, stored.Role)
	if err != nil || !jwtPattern.MatchString(presented) {
		httputil.ClearRefreshCookie(c.Writer, h.cookie, stored.Role)
		httputil.Error(c, h.log, domain.NewUnauthorized(msgSessionExpired))
		return
	}

	refreshed, err := h.sessions.ValidateToken(stored.Role, presented, stored.Token)
	if err != nil {
		httputil.ClearRefreshCookie(c.Writer, h.cookie, stored.Role)
		httputil.Error(c, h.log, err)
		return
	}

	httputil.Success(c, http.StatusOK, "Token refreshed successfully.", gin.H{"access_token": refreshed.AccessToken})
}
