package handler

import (
	"Swan/config"
	"Swan/middleware"
	"Swan/pkg/context"
	"Swan/pkg/log"
	"Swan/pkg/response"
	"Swan/service"
	"Swan/types"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Gamification struct {
	Config   *config.Config
	Service  service.IGamificationService
	Guard    *service.EthicalGuard
	Sessions service.ISessionService
}

func (g *Gamification) RegisterRouter(r gin.IRouter) {
	authorize := middleware.Auth([]byte(g.Config.Jwt.Secret))
	group := r.Group("/v1/gamification")
	group.GET("/health", context.Wrap(g.Health))

	group.Use(authorize)
	group.POST("/actions", context.Wrap(g.ProcessAction))
	group.POST("/ethics/check", context.Wrap(g.CheckEthics))
	group.GET("/ethics/health", context.Wrap(g.EngagementHealth))
	group.GET("/status", context.Wrap(g.Status))
	group.GET("/leaderboard", context.Wrap(g.Leaderboard))
	group.POST("/achievements/check", context.Wrap(g.CheckAchievements))
	group.GET("/users/:userId/status", middleware.AdminOnly(), context.Wrap(g.UserStatus))
}

// ProcessActionResp 上报结果：防沉迷检查 + 入账结果
type ProcessActionResp struct {
	Ethics service.EthicalCheckResult `json:"ethics"`
	Award  *service.AwardResult       `json:"award,omitempty"`
}

// ProcessAction 先过防沉迷检查，通过后入账
func (g *Gamification) ProcessAction(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	var req types.ProcessActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(response.CodeInvalidParams, err.Error())
	}

	ctx := c.Request.Context()
	if err := g.Sessions.Touch(ctx, uid); err != nil {
		log.L.Warn("touch session failed", zap.String("user_id", uid), zap.Error(err))
	}
	ethics := g.Guard.CheckActionEthics(ctx, uid, req.Action)
	if !ethics.Approved {
		return response.NewError(response.CodeEthicsRejected, ethics.SupportMessage).
			WithData(ProcessActionResp{Ethics: ethics})
	}

	award, err := g.Service.AwardPoints(ctx, uid, req.Action, req.Metadata)
	if err != nil {
		return bizError(err)
	}
	if !award.Success {
		return response.NewError(response.CodeInternal, "award points failed").
			WithData(ProcessActionResp{Ethics: ethics, Award: award})
	}

	response.Success(c, ProcessActionResp{Ethics: ethics, Award: award})
	return nil
}

func (g *Gamification) CheckEthics(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	var req types.EthicsCheckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(response.CodeInvalidParams, err.Error())
	}

	response.Success(c, g.Guard.CheckActionEthics(c.Request.Context(), uid, req.Action))
	return nil
}

func (g *Gamification) EngagementHealth(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	health, err := g.Guard.CheckEngagementHealth(c.Request.Context(), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, health)
	return nil
}

func (g *Gamification) Status(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	return g.writeStatus(c, uid)
}

func (g *Gamification) UserStatus(c *gin.Context) error {
	return g.writeStatus(c, c.Param("userId"))
}

func (g *Gamification) writeStatus(c *gin.Context, uid string) error {
	status, err := g.Service.GetUserGamificationStatus(c.Request.Context(), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, status)
	return nil
}

func (g *Gamification) Leaderboard(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	var req types.LeaderboardReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(response.CodeInvalidParams, err.Error())
	}

	res, err := g.Service.GetLeaderboard(c.Request.Context(), service.LeaderboardQuery{
		Timeframe:        req.Timeframe,
		Category:         req.Category,
		Limit:            req.Limit,
		RequestingUserID: uid,
	})
	if err != nil {
		return bizError(err)
	}
	response.Success(c, res)
	return nil
}

// CheckAchievements 按已落库的数据重新评估，不接受客户端上报的动作和指标
func (g *Gamification) CheckAchievements(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}

	ids, err := g.Service.CheckForAchievements(c.Request.Context(), uid, "", nil)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, gin.H{"newly_unlocked_achievements": ids})
	return nil
}

func (g *Gamification) Health(c *gin.Context) error {
	health, err := g.Service.SystemHealth(c.Request.Context())
	if err != nil {
		return bizError(err)
	}
	response.Success(c, health)
	return nil
}

// bizError 把服务层错误翻译成业务错误码
func bizError(err error) error {
	var verr *service.RulesValidationError
	switch {
	case errors.As(err, &verr):
		return response.NewError(response.CodeRuleViolation, "rules validation failed").WithData(verr.Issues)
	case errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrInvalidPoints),
		errors.Is(err, service.ErrInvalidTimeframe):
		return response.NewError(response.CodeInvalidParams, err.Error())
	}
	return err
}
