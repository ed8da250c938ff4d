package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/transport/http/middleware"
	"github.com/gizilens/backend/pkg/httputil"
)

type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
	AccessMaxAge   time.Duration
}

// NewRouter mounts every route under /v1 plus /health.
func NewRouter(h *Handler, tokens middleware.AccessVerifier, cfg RouterConfig, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins, log))

	router.NoRoute(func(c *gin.Context) {
		httputil.Error(c, log, domain.NewNotFound("Not Found"))
	})

	router.GET("/health", h.Health)

	apiKey := middleware.APIKey(cfg.APIKey, log)
	jsonBody := middleware.RequireJSON(log)
	bearer := middleware.BearerAuth(tokens, cfg.AccessMaxAge, log)

	v1 := router.Group("/v1")

	users := v1.Group("/users")
	{
		users.POST("/client", apiKey, jsonBody, h.Register(domain.RoleClient))
		users.POST("/admin", apiKey, jsonBody, h.Register(domain.RoleAdmin))
		users.POST("/moderator", apiKey, jsonBody, h.Register(domain.RoleModerator))
		users.POST("/login", apiKey, jsonBody, h.Login)

		users.GET("", bearer, h.GetProfile)
		users.GET("/sessions", bearer, h.ListSessions)
		users.PUT("/update", bearer, jsonBody, h.Update)
		users.DELETE("/logout/:sessionId", bearer, h.Logout)
		users.DELETE("/:clientId", bearer, h.Delete)
		users.PATCH("/:clientId/undelete", bearer, h.Undelete)
	}

	v1.GET("/auths/:sessionId", apiKey, h.RefreshToken)

	return router
}
