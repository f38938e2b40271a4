package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/treehole/backend/internal/auth"
	apierrors "github.com/treehole/backend/internal/errors"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/middleware"
	"go.uber.org/zap"
)

type registerRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Nickname  string `json:"nickname" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Register creates an account and returns a token.
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := apierrors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	resp, err := h.auth.Register(req.StudentID, req.Nickname, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrStudentIDExists) {
			apiErr := apierrors.AlreadyExists("student id")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		logger.Log.Error("Registration failed", zap.Error(err))
		apiErr := apierrors.InternalError("failed to register")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a token.
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := apierrors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	resp, err := h.auth.Login(req.StudentID, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			apiErr := apierrors.Unauthorized("invalid credentials")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		logger.Log.Error("Login failed", zap.Error(err))
		apiErr := apierrors.InternalError("failed to log in")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user.
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
