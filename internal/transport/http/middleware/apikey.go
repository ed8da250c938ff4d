package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/pkg/httputil"
)

const APIKeyHeader = "x-api-key"

// APIKey rejects requests whose x-api-key header does not match key.
func APIKey(key string, log logrus.FieldLogger) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		presented := c.GetHeader(APIKeyHeader)
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			httputil.Error(c, log, domain.NewUnauthorized("Unauthorized."))
			return
		}
		c.Next()
	}
}
