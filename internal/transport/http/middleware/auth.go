package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/pkg/auth"
	"github.com/gizilens/backend/pkg/httputil"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
)

type AccessVerifier interface {
	VerifyAccessToken(token string, maxAge time.Duration) (*auth.Claims, error)
}

// BearerAuth validates the access token in the Authorization header and
// stores its id and role on the context.
func BearerAuth(tokens AccessVerifier, maxAge time.Duration, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := httputil.BearerToken(c.Request)
		if err != nil {
			httputil.Error(c, log, domain.NewUnauthorized("Unauthorized."))
			return
		}

		claims, err := tokens.VerifyAccessToken(token, maxAge)
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Debug("rejected access token")
			if errors.Is(err, auth.ErrTokenTooOld) {
				httputil.Error(c, log, domain.NewUnauthorized("Token exceeded maximum age"))
				return
			}
			httputil.Error(c, log, domain.NewUnauthorized("Unauthorized."))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// CurrentUser returns the id and role stored by BearerAuth.
func CurrentUser(c *gin.Context) (id, role string) {
	return c.GetString(ContextUserID), c.GetString(ContextRole)
}
