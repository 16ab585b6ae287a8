package handler

import (
	"Swan/config"
	"Swan/middleware"
	"Swan/pkg/context"
	"Swan/pkg/response"
	"Swan/service"
	"Swan/types"

	"github.com/gin-gonic/gin"
)

type Point struct {
	Config  *config.Config
	Service service.IGamificationService
}

func (p *Point) RegisterRouter(r gin.IRouter) {
	pointGroup := r.Group("/v1/gamification")
	pointGroup.Use(middleware.Auth([]byte(p.Config.Jwt.Secret)))
	pointGroup.GET("/balance", context.Wrap(p.Balance))
	pointGroup.GET("/transactions", context.Wrap(p.GetRecords))
}

func (p *Point) Balance(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	total, err := p.Service.GetBalance(c.Request.Context(), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, gin.H{"balance": total})
	return nil
}

func (p *Point) GetRecords(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	var req types.ListTransactionsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(response.CodeInvalidParams, err.Error())
	}

	resp, err := p.Service.ListTransactions(c.Request.Context(), uid, req.Cursor, req.Limit)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, resp)
	return nil
}
