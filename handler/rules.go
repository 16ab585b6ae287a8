package handler

import (
	"Swan/config"
	"Swan/middleware"
	"Swan/pkg/context"
	"Swan/pkg/response"
	"Swan/service"

	"github.com/gin-gonic/gin"
)

type Rules struct {
	Config  *config.Config
	Catalog *service.RulesCatalog
}

func (h *Rules) RegisterRouter(r gin.IRouter) {
	group := r.Group("/v1/gamification/rules")
	group.Use(middleware.Auth([]byte(h.Config.Jwt.Secret)), middleware.AdminOnly())
	group.GET("", context.Wrap(h.Get))
	group.PUT("", context.Wrap(h.Update))
}

// UpdateRulesReq 规则提案 + 可选的每日上限
type UpdateRulesReq struct {
	service.RulesUpdate
	EthicalConstraints *service.EthicalConstraints `json:"ethical_constraints,omitempty"`
}

type RulesResp struct {
	PointRules          map[string]service.ActionRule   `json:"point_rules"`
	LevelThresholds     []int64                         `json:"level_thresholds"`
	Achievements        []service.AchievementDefinition `json:"achievements"`
	CategoryMultipliers map[string]string               `json:"category_multipliers"`
}

func (h *Rules) Get(c *gin.Context) error {
	snap := h.Catalog.Snapshot()
	resp := RulesResp{
		PointRules:          snap.Actions,
		LevelThresholds:     snap.LevelThresholds,
		Achievements:        snap.AchievementList(),
		CategoryMultipliers: make(map[string]string, len(snap.CategoryMultipliers)),
	}
	for k, v := range snap.CategoryMultipliers {
		resp.CategoryMultipliers[k] = v.String()
	}
	response.Success(c, resp)
	return nil
}

func (h *Rules) Update(c *gin.Context) error {
	var req UpdateRulesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(response.CodeInvalidParams, err.Error())
	}

	res, err := h.Catalog.UpdateRules(req.RulesUpdate, req.EthicalConstraints)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, res)
	return nil
}
