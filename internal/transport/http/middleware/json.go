package middleware

import (
	"mime"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/pkg/httputil"
)

// RequireJSON answers 415 unless the request body is declared as application/json.
func RequireJSON(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != gin.MIMEJSON {
			httputil.Error(c, log, domain.NewUnsupportedMediaType([]domain.FieldError{{
				Field:   "content-type",
				Message: `"content-type" must be application/json`,
			}}))
			return
		}
		c.Next()
	}
}
