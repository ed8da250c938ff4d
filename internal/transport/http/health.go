package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gizilens/backend/pkg/httputil"
)

const healthTimeout = 2 * time.Second

// Health pings every dependency and answers 503 if any of them is down.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.WithError(err).WithField("dependency", name).Warn("health check failed")
			report[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "up"
	}

	if status != http.StatusOK {
		c.JSON(status, httputil.Envelope{Status: httputil.StatusFail, Message: "Service Unavailable", Data: report})
		return
	}
	httputil.Success(c, status, "OK", report)
}
