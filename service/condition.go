package service

import (
	"Swan/models"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// AchievementContext 评估成就时能看到的用户数据
type AchievementContext struct {
	State         *models.UserGamificationState
	ActionCounts  map[string]int64
	TriggerAction string
	Metadata      map[string]any
}

func (c AchievementContext) streak() int {
	if c.State == nil {
		return 0
	}
	return c.State.CurrentStreakDays
}

type conditionEval struct {
	satisfied func(p ConditionParams, ac AchievementContext) bool
	progress  func(p ConditionParams, ac AchievementContext) int
	validate  func(p ConditionParams) error
}

var conditions = map[ConditionType]conditionEval{
	ConditionFirstActionOfType: {
		satisfied: func(p ConditionParams, ac AchievementContext) bool {
			return ac.TriggerAction == p.ActionType || ac.ActionCounts[p.ActionType] >= 1
		},
		progress: func(p ConditionParams, ac AchievementContext) int {
			if ac.ActionCounts[p.ActionType] >= 1 {
				return 100
			}
			return 0
		},
		validate: func(p ConditionParams) error {
			if p.ActionType == "" {
				return errors.New("first_action_of_type requires action_type")
			}
			return nil
		},
	},
	ConditionStreakThreshold: {
		satisfied: func(p ConditionParams, ac AchievementContext) bool {
			return ac.streak() >= p.Days
		},
		progress: func(p ConditionParams, ac AchievementContext) int {
			return percent(float64(ac.streak()), float64(p.Days))
		},
		validate: func(p ConditionParams) error {
			if p.Days <= 0 {
				return errors.New("streak_threshold requires days > 0")
			}
			return nil
		},
	},
	ConditionCumulativeCount: {
		satisfied: func(p ConditionParams, ac AchievementContext) bool {
			return ac.ActionCounts[p.ActionType] >= p.Count
		},
		progress: func(p ConditionParams, ac AchievementContext) int {
			return percent(float64(ac.ActionCounts[p.ActionType]), float64(p.Count))
		},
		validate: func(p ConditionParams) error {
			if p.ActionType == "" || p.Count <= 0 {
				return errors.New("cumulative_count_threshold requires action_type and count > 0")
			}
			return nil
		},
	},
	ConditionMetricThreshold: {
		satisfied: func(p ConditionParams, ac AchievementContext) bool {
			if p.ActionType != "" && ac.TriggerAction != p.ActionType {
				return false
			}
			v, ok := metricValue(ac.Metadata, p.Metric)
			return ok && v >= p.Threshold
		},
		// 指标只存在于单次动作的 metadata 里，没有累计进度
		progress: func(p ConditionParams, ac AchievementContext) int {
			return 0
		},
		validate: func(p ConditionParams) error {
			if p.Metric == "" {
				return errors.New("metric_threshold requires metric")
			}
			if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
				return errors.New("metric_threshold requires a finite threshold")
			}
			return nil
		},
	},
}

func (p ConditionParams) validate(t ConditionType) error {
	c, ok := conditions[t]
	if !ok {
		return fmt.Errorf("unknown condition type %q", t)
	}
	return c.validate(p)
}

// Satisfied 未知条件类型一律视为不满足
func (d AchievementDefinition) Satisfied(ac AchievementContext) bool {
	c, ok := conditions[d.ConditionType]
	if !ok {
		return false
	}
	return c.satisfied(d.ConditionParams, ac)
}

// Progress 0-100
func (d AchievementDefinition) Progress(ac AchievementContext) int {
	c, ok := conditions[d.ConditionType]
	if !ok {
		return 0
	}
	return c.progress(d.ConditionParams, ac)
}

func metricValue(metadata map[string]any, path string) (float64, bool) {
	if len(metadata) == 0 || path == "" {
		return 0, false
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return 0, false
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return 0, false
	}
	switch res.Type {
	case gjson.Number:
		return res.Num, true
	case gjson.String:
		// 客户端常把数字当字符串上报
		f := gjson.Parse(res.Str)
		if f.Type == gjson.Number {
			return f.Num, true
		}
	}
	return 0, false
}

func percent(cur, target float64) int {
	if target <= 0 {
		return 0
	}
	p := int(math.Round(cur / target * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
