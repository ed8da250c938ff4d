package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gizilens/backend/internal/domain"
	usersvc "github.com/gizilens/backend/internal/service/user"
	"github.com/gizilens/backend/internal/transport/http/middleware"
	"github.com/gizilens/backend/pkg/httputil"
	"github.com/gizilens/backend/pkg/useragent"
)

type registerRequest struct {
	FirstName       string `json:"first_name" binding:"omitempty,max=50,personname"`
	LastName        string `json:"last_name" binding:"omitempty,max=50,personname"`
	Email           string `json:"email" binding:"required,email,max=100"`
	Password        string `json:"password" binding:"required,min=8,max=128,strongpassword"`
	ConfirmPassword string `json:"confirm_password" binding:"omitempty,eqfield=Password"`
	Photo           string `json:"photo" binding:"omitempty,url"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=8,max=128,strongpassword"`
}

type updateRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,max=50,personname"`
	LastName  string `json:"last_name" binding:"omitempty,max=50,personname"`
	Email     string `json:"email" binding:"omitempty,email,max=100"`
	Password  string `json:"password" binding:"required,min=8,max=128,strongpassword"`
}

// Register returns a handler that creates users with the given role.
func (h *Handler) Register(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := bindJSON(c, &req); err != nil {
			httputil.Error(c, h.log, err)
			return
		}

		id, err := h.users.Register(c.Request.Context(), usersvc.RegisterInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
			Role:      role,
			Photo:     req.Photo,
		})
		if err != nil {
			httputil.Error(c, h.log, err)
			return
		}

		httputil.Success(c, http.StatusCreated, "User created successfully.", gin.H{"user_id": id})
	}
}

func (h *Handler) Login(c *gin.Context) {
	userAgent := c.Request.UserAgent()
	if userAgent == "" {
		httputil.Error(c, h.log, domain.NewUnauthorized("Unauthorized."))
		return
	}

	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	ctx := c.Request.Context()
	issued, err := h.users.Login(ctx, req.Email, req.Password, userAgent)
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	created, err := h.sessions.Create(ctx, *issued)
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	httputil.SetRefreshCookie(c.Writer, h.cookie, issued.Role, created.Token, h.sessionTTL)
	httputil.Success(c, http.StatusOK, "User logged in successfully.", gin.H{
		"session_id":   created.SessionID,
		"access_token": issued.AccessToken,
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, role := middleware.CurrentUser(c)
	if err := validateID(id); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), id, role)
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	httputil.Success(c, http.StatusOK, "User retrieved successfully.", gin.H{"user": user})
}

// ListSessions returns the caller's sessions without their tokens.
func (h *Handler) ListSessions(c *gin.Context) {
	id, _ := middleware.CurrentUser(c)
	if err := validateID(id); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), id)
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	for i := range sessions {
		sessions[i].Device = useragent.Describe(sessions[i].UserAgent)
	}

	httputil.Success(c, http.StatusOK, "Sessions retrieved successfully.", gin.H{"sessions": sessions})
}

func (h *Handler) Update(c *gin.Context) {
	id, role := middleware.CurrentUser(c)
	if err := validateID(id); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	var req updateRequest
	if err := bindJSON(c, &req); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	err := h.users.Update(c.Request.Context(), role, usersvc.UpdateInput{
		ID:        id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	httputil.Success(c, http.StatusOK, "User updated successfully.", nil)
}

func (h *Handler) Logout(c *gin.Context) {
	id, role := middleware.CurrentUser(c)
	sessionID := c.Param("sessionId")
	if err := validateID(id); err != nil {
		httputil.Error(c, h.log, err)
		return
	}
	if err := validateID(sessionID); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	if err := h.users.Logout(c.Request.Context(), role, id, sessionID); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	httputil.ClearRefreshCookie(c.Writer, h.cookie, role)
	httputil.Success(c, http.StatusOK, "User logged out successfully.", nil)
}

func (h *Handler) Delete(c *gin.Context) {
	h.adminAction(c, h.users.Delete, "User deleted successfully.")
}

func (h *Handler) Undelete(c *gin.Context) {
	h.adminAction(c, h.users.Undelete, "User undeleted successfully.")
}

func (h *Handler) adminAction(c *gin.Context, action func(ctx context.Context, callerID, callerRole, targetID string) error, message string) {
	id, role := middleware.CurrentUser(c)
	target := c.Param("clientId")
	if err := validateID(id); err != nil {
		httputil.Error(c, h.log, err)
		return
	}
	if err := validateID(target); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	if err := action(c.Request.Context(), id, role, target); err != nil {
		httputil.Error(c, h.log, err)
		return
	}

	httputil.Success(c, http.StatusOK, message, nil)
}
