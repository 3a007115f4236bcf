package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"librarium-backend/internal/platform/httpapi"
)

const (
	CtxUsernameKey = "username"
	CtxRoleKey     = "role"
)

const (
	RoleReader    = "reader"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

// RequireAuth validates Authorization: Bearer <token> and puts sub/role into
// the gin context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "invalid Authorization header"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "empty token"))
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg pinned, keeps none-alg tokens out
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "invalid claims"))
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpapi.ErrorBody(httpapi.CodeUnauthenticated, "missing sub"))
			return
		}

		role := ""
		if roleAny, hasRole := claims["role"]; hasRole {
			if roleStr, ok := roleAny.(string); ok {
				role = roleStr
			}
		}

		c.Set(CtxUsernameKey, sub)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole allows only the listed roles through. Must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, httpapi.ErrorBody(httpapi.CodeForbidden, "missing role"))
			return
		}

		role, ok := v.(string)
		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, httpapi.ErrorBody(httpapi.CodeForbidden, "invalid role"))
			return
		}

		if _, allowed := roleSet[role]; !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, httpapi.ErrorBody(httpapi.CodeForbidden, "forbidden"))
			return
		}

		c.Next()
	}
}
