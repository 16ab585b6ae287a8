package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 业务错误码
const (
	CodeInvalidParams  = 400
	CodeUnauthorized   = 401
	CodeForbidden      = 403
	CodeNotFound       = 404
	CodeRuleViolation  = 422
	CodeEthicsRejected = 429
	CodeInternal       = 500
)

type BizError struct {
	Code int
	Msg  string
	Data any
}

func (e *BizError) Error() string {
	return e.Msg
}

func NewError(code int, msg string) *BizError {
	return &BizError{
		Code: code,
		Msg:  msg,
	}
}

// WithData 附带结构化的错误详情，比如规则校验的全部问题
func (e *BizError) WithData(data any) *BizError {
	e.Data = data
	return e
}

func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.JSON(http.StatusInternalServerError, Response{
					Code: CodeInternal,
					Msg:  "internal error",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			if be, ok := err.(*BizError); ok {
				Fail(c, be.Code, be.Msg)
			} else {
				Fail(c, CodeInternal, err.Error())
			}
			c.Abort()
		}
	}
}

func Abort(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code: httpStatus,
		Msg:  msg,
		Data: nil,
	})
}
