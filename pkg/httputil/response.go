package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Details []domain.FieldError `json:"details,omitempty"`
}

func Success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Error aborts the request with err. Application errors are shown as is,
// anything else is logged and answered with a generic 500.
func Error(c *gin.Context, log logrus.FieldLogger, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		c.AbortWithStatusJSON(de.Kind.Status(), Envelope{Status: StatusFail, Message: de.Message, Details: de.Details})
		return
	}

	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Status: StatusError, Message: "Internal Server Error"})
}
