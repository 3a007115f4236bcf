package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarium-backend/internal/platform/auth"
	"librarium-backend/internal/platform/httpapi"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRouter, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	admin := auth.RequireRole(auth.RoleAdmin)
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)

	r.GET("/profile/:username", h.Profile)
	r.GET("/users", authn, staff, h.List)
	r.POST("/admin/add_user", authn, admin, h.AddUser)
	r.POST("/admin/delete_user", authn, admin, h.DeleteUser)
	r.POST("/admin/edit_user", authn, admin, h.EditUser)
	r.POST("/change-role", authn, admin, h.ChangeRole)
}

func (h *Handler) Profile(c *gin.Context) {
	out, err := h.svc.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) List(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) AddUser(c *gin.Context) {
	var in AdminAddUserIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.AddUser(c.Request.Context(), in); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user added"})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	var in UsernameIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), in.Username); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *Handler) EditUser(c *gin.Context) {
	var in AdminEditUserIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.EditUser(c.Request.Context(), in); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func (h *Handler) ChangeRole(c *gin.Context) {
	var in RoleUpdateIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.ChangeRole(c.Request.Context(), in.Username, in.NewRole); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role changed"})
}
