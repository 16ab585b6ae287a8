package context

import (
	"Swan/pkg/response"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

const RoleAdmin = "admin"

type HandlerFunc func(*gin.Context) error

func Wrap(h func(*gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c); err != nil {

			// 如果已经写过响应，直接返回
			if c.Writer.Written() {
				return
			}
			// 业务错误
			var be *response.BizError
			if errors.As(err, &be) {
				c.JSON(http.StatusOK, response.Response{
					Code: be.Code,
					Msg:  be.Msg,
					Data: be.Data,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, response.Response{
				Code: response.CodeInternal,
				Msg:  err.Error(),
			})
		}
	}
}

func GetUserID(c *gin.Context) (string, error) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", errors.New("user_id missing")
	}

	uid, ok := v.(string)
	if !ok || uid == "" {
		return "", errors.New("user_id has wrong type")
	}

	return uid, nil
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(CtxRole) == RoleAdmin
}
