package middleware

import (
	"Swan/pkg/context"
	"Swan/pkg/jwt"
	"Swan/pkg/log"
	"Swan/pkg/response"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Abort(c, http.StatusUnauthorized, "malformed Authorization header")
			return
		}

		claims, err := jwt.ParseToken(secret, jwt.TypeAccess, parts[1])
		if err != nil {
			log.L.Debug("reject token", zap.Error(err))
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(context.CtxUserID, claims.UserID)
		c.Set(context.CtxRole, claims.Role)

		c.Next()
	}
}

// AdminOnly 必须挂在 Auth 之后
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !context.IsAdmin(c) {
			response.Abort(c, http.StatusForbidden, "admin only")
			return
		}
		c.Next()
	}
}
