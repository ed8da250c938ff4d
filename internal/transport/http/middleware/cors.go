package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-Api-Key"
)

// originPattern is an allowed origin with one "*" covering any subdomain, as in
// "https://*.example.com".
type originPattern struct {
	prefix string
	suffix string
}

func (p originPattern) match(origin string) bool {
	if len(origin) <= len(p.prefix)+len(p.suffix) {
		return false
	}
	if !strings.HasPrefix(origin, p.prefix) || !strings.HasSuffix(origin, p.suffix) {
		return false
	}
	middle := origin[len(p.prefix) : len(origin)-len(p.suffix)]
	return !strings.ContainsAny(middle, "/:@")
}

// CORS allows the configured origins. A "*" entry allows any origin and an
// entry like "https://*.example.com" allows every subdomain.
func CORS(allowedOrigins []string, log logrus.FieldLogger) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	var patterns []originPattern
	for _, o := range allowedOrigins {
		switch {
		case o == "*":
			allowAll = true
		case strings.Count(o, "*") == 1:
			i := strings.Index(o, "*")
			patterns = append(patterns, originPattern{prefix: o[:i], suffix: o[i+1:]})
		default:
			allowed[o] = struct{}{}
		}
	}

	isAllowed := func(origin string) bool {
		if allowAll {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		for _, p := range patterns {
			if p.match(origin) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// No Origin header (curl, same-origin): nothing to negotiate.
		if origin != "" {
			if !isAllowed(origin) {
				log.WithFields(logrus.Fields{"origin": origin}).Warn("origin not allowed")
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "fail", "message": "Origin not allowed."})
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", corsMethods)
		c.Header("Access-Control-Allow-Headers", corsHeaders)
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
