package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarium-backend/internal/platform/httpapi"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRouter, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/register", h.Register)
	r.POST("/token", h.Token)
	r.POST("/change_password", h.ChangePassword)
	r.POST("/request_password_reset", h.RequestPasswordReset)
	r.POST("/reset_password", h.ResetPassword)
}

type RegisterIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var in RegisterIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.Register(c.Request.Context(), in.Username, in.Password, in.Email); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created"})
}

type TokenIn struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Token accepts both JSON and form bodies; the frontend posts a form.
func (h *Handler) Token(c *gin.Context) {
	var in TokenIn
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid request"))
		return
	}
	token, role, err := h.svc.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"role":         role,
	})
}

type ChangePasswordIn struct {
	Username    string `json:"username" binding:"required"`
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var in ChangePasswordIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), in.Username, in.OldPassword, in.NewPassword); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

type EmailIn struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var in EmailIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), in.Email); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset email sent"})
}

type ResetPasswordIn struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var in ResetPasswordIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), in.Token, in.NewPassword); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}
