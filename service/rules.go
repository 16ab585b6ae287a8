package service

import (
	"Swan/config"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

const (
	ConditionFirstActionOfType ConditionType = "first_action_of_type"
	ConditionStreakThreshold   ConditionType = "streak_threshold"
	ConditionCumulativeCount   ConditionType = "cumulative_count_threshold"
	ConditionMetricThreshold   ConditionType = "metric_threshold"
)

type ConditionType string

// ConditionParams 各条件类型只用到其中一部分字段
type ConditionParams struct {
	ActionType string  `json:"action_type,omitempty" yaml:"action_type,omitempty"`
	Days       int     `json:"days,omitempty" yaml:"days,omitempty"`
	Count      int64   `json:"count,omitempty" yaml:"count,omitempty"`
	Metric     string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Threshold  float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

type AchievementDefinition struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	PointValue      int64           `json:"point_value" yaml:"point_value"`
	Category        string          `json:"category" yaml:"category"`
	ConditionType   ConditionType   `json:"condition_type" yaml:"condition_type"`
	ConditionParams ConditionParams `json:"condition_params" yaml:"condition_params"`
}

// ActionRule 一个动作的基础分和所属分类，workout 分类的动作计入连续打卡
type ActionRule struct {
	Points   int64  `json:"points" yaml:"points"`
	Category string `json:"category" yaml:"category"`
}

func (a ActionRule) StreakEligible() bool {
	return a.Category == CategoryWorkout
}

// Rules 规则快照，发布后只读
type Rules struct {
	Actions             map[string]ActionRule
	LevelThresholds     []int64
	Achievements        map[string]AchievementDefinition
	CategoryMultipliers map[string]decimal.Decimal

	achievementOrder []string
}

func (r *Rules) Action(actionType string) (ActionRule, bool) {
	a, ok := r.Actions[actionType]
	return a, ok
}

func (r *Rules) PointValue(actionType string) int64 {
	return r.Actions[actionType].Points
}

// Level 等级从 1 开始，达到第 i 个门槛即为 i+1 级
func (r *Rules) Level(totalPoints int64) int {
	for i := len(r.LevelThresholds) - 1; i >= 0; i-- {
		if totalPoints >= r.LevelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// NextLevelPoints 下一级门槛，满级返回 0
func (r *Rules) NextLevelPoints(totalPoints int64) int64 {
	level := r.Level(totalPoints)
	if level >= len(r.LevelThresholds) {
		return 0
	}
	return r.LevelThresholds[level]
}

// LevelProgress 当前级内进度百分比，满级为 100
func (r *Rules) LevelProgress(totalPoints int64) int {
	level := r.Level(totalPoints)
	if level >= len(r.LevelThresholds) {
		return 100
	}
	cur := r.LevelThresholds[level-1]
	next := r.LevelThresholds[level]
	if totalPoints <= cur {
		return 0
	}
	p := int(math.Round(float64(totalPoints-cur) / float64(next-cur) * 100))
	if p > 100 {
		p = 100
	}
	return p
}

// CategoryMultiplier 未配置的分类为 1.0
func (r *Rules) CategoryMultiplier(category string) decimal.Decimal {
	if m, ok := r.CategoryMultipliers[category]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// AchievementList 按 ID 排序，保证评估顺序稳定
func (r *Rules) AchievementList() []AchievementDefinition {
	out := make([]AchievementDefinition, 0, len(r.achievementOrder))
	for _, id := range r.achievementOrder {
		out = append(out, r.Achievements[id])
	}
	return out
}

func (r *Rules) index() {
	r.achievementOrder = make([]string, 0, len(r.Achievements))
	for id := range r.Achievements {
		r.achievementOrder = append(r.achievementOrder, id)
	}
	sort.Strings(r.achievementOrder)
}

func (r *Rules) clone() *Rules {
	out := &Rules{
		Actions:             make(map[string]ActionRule, len(r.Actions)),
		LevelThresholds:     append([]int64(nil), r.LevelThresholds...),
		Achievements:        make(map[string]AchievementDefinition, len(r.Achievements)),
		CategoryMultipliers: make(map[string]decimal.Decimal, len(r.CategoryMultipliers)),
	}
	for k, v := range r.Actions {
		out.Actions[k] = v
	}
	for k, v := range r.Achievements {
		out.Achievements[k] = v
	}
	for k, v := range r.CategoryMultipliers {
		out.CategoryMultipliers[k] = v
	}
	return out
}

// RulesUpdate 规则变更提案，未出现的键保持原值，门槛整体替换
type RulesUpdate struct {
	PointRules          map[string]int64                 `json:"point_rules,omitempty" yaml:"point_rules,omitempty"`
	ActionCategories    map[string]string                `json:"action_categories,omitempty" yaml:"action_categories,omitempty"`
	Achievements        map[string]AchievementDefinition `json:"achievements,omitempty" yaml:"achievements,omitempty"`
	LevelThresholds     []int64                          `json:"level_thresholds,omitempty" yaml:"level_thresholds,omitempty"`
	CategoryMultipliers map[string]float64               `json:"category_multipliers,omitempty" yaml:"category_multipliers,omitempty"`
}

// EthicalConstraints 每日积分上限，防止规则把单日收益推得过高
type EthicalConstraints struct {
	MaxDailyPoints int64 `json:"max_daily_points"`
}

type RuleIssue struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// RulesValidationError 一次返回全部问题，任何一条不通过都不生效
type RulesValidationError struct {
	Issues []RuleIssue
}

func (e *RulesValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, i.Rule+": "+i.Message)
	}
	return fmt.Sprintf("rules update rejected: %s", strings.Join(msgs, "; "))
}

type RulesUpdateResult struct {
	Success      bool     `json:"success"`
	UpdatedRules []string `json:"updated_rules"`
}

type RuleLimits struct {
	MaxActionPoints      int64
	MaxAchievementPoints int64
	MaxDailyPoints       int64
}

// RulesCatalog 读走原子指针，写串行化后整体替换
type RulesCatalog struct {
	limits  RuleLimits
	mu      sync.Mutex
	current atomic.Pointer[Rules]
}

func NewRulesCatalog(limits RuleLimits, rules *Rules) *RulesCatalog {
	if rules == nil {
		rules = DefaultRules()
	}
	rules.index()
	c := &RulesCatalog{limits: limits}
	c.current.Store(rules)
	return c
}

func NewRuleLimits(conf *config.Gamification) RuleLimits {
	return RuleLimits{
		MaxActionPoints:      conf.MaxActionPoints,
		MaxAchievementPoints: conf.MaxAchievementPoints,
		MaxDailyPoints:       conf.MaxDailyPoints,
	}
}

func (c *RulesCatalog) Snapshot() *Rules {
	return c.current.Load()
}

func (c *RulesCatalog) GetPointValue(actionType string) int64 {
	return c.Snapshot().PointValue(actionType)
}

func (c *RulesCatalog) GetLevel(totalPoints int64) int {
	return c.Snapshot().Level(totalPoints)
}

func (c *RulesCatalog) GetLevelProgress(totalPoints int64) int {
	return c.Snapshot().LevelProgress(totalPoints)
}

func (c *RulesCatalog) GetNextLevelPoints(totalPoints int64) int64 {
	return c.Snapshot().NextLevelPoints(totalPoints)
}

// UpdateRules 校验通过后整体替换，读者要么看到旧规则要么看到新规则
func (c *RulesCatalog) UpdateRules(update RulesUpdate, constraints *EthicalConstraints) (*RulesUpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maxDaily := c.limits.MaxDailyPoints
	if constraints != nil && constraints.MaxDailyPoints > 0 {
		maxDaily = constraints.MaxDailyPoints
	}

	if issues := c.validate(update, maxDaily); len(issues) > 0 {
		return nil, &RulesValidationError{Issues: issues}
	}

	next := c.Snapshot().clone()
	var updated []string

	for action, points := range update.PointRules {
		rule, ok := next.Actions[action]
		if !ok {
			rule.Category = CategoryGeneral
		}
		rule.Points = points
		next.Actions[action] = rule
		updated = append(updated, "point_rules."+action)
	}
	for action, category := range update.ActionCategories {
		rule := next.Actions[action]
		rule.Category = category
		next.Actions[action] = rule
		updated = append(updated, "action_categories."+action)
	}
	for id, def := range update.Achievements {
		def.ID = id
		if def.Category == "" {
			def.Category = CategoryAchievement
		}
		next.Achievements[id] = def
		updated = append(updated, "achievements."+id)
	}
	if len(update.LevelThresholds) > 0 {
		next.LevelThresholds = append([]int64(nil), update.LevelThresholds...)
		updated = append(updated, "level_thresholds")
	}
	for category, m := range update.CategoryMultipliers {
		next.CategoryMultipliers[category] = decimal.NewFromFloat(m)
		updated = append(updated, "category_multipliers."+category)
	}

	next.index()
	sort.Strings(updated)
	c.current.Store(next)
	return &RulesUpdateResult{Success: true, UpdatedRules: updated}, nil
}

func (c *RulesCatalog) validate(update RulesUpdate, maxDaily int64) []RuleIssue {
	var issues []RuleIssue
	add := func(rule, format string, args ...any) {
		issues = append(issues, RuleIssue{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	current := c.Snapshot()
	var maxProposed int64

	for _, action := range sortedKeys(update.PointRules) {
		points := update.PointRules[action]
		if strings.TrimSpace(action) == "" {
			add("point_rules", "action name must not be empty")
			continue
		}
		if strings.HasPrefix(action, achievementReasonPrefix) {
			add("point_rules."+action, "action name is reserved")
		}
		if points <= 0 || points > c.limits.MaxActionPoints {
			add("point_rules."+action, "points must be in (0, %d], got %d", c.limits.MaxActionPoints, points)
		}
		if points > maxProposed {
			maxProposed = points
		}
	}

	for _, action := range sortedKeys(update.ActionCategories) {
		if update.ActionCategories[action] == "" {
			add("action_categories."+action, "category must not be empty")
		}
		if _, known := current.Actions[action]; !known {
			if _, proposed := update.PointRules[action]; !proposed {
				add("action_categories."+action, "unknown action")
			}
		}
	}

	for _, id := range sortedKeys(update.Achievements) {
		def := update.Achievements[id]
		key := "achievements." + id
		if strings.TrimSpace(id) == "" {
			add("achievements", "achievement id must not be empty")
			continue
		}
		if def.ID != "" && def.ID != id {
			add(key, "id %q does not match key", def.ID)
		}
		if def.Name == "" {
			add(key, "name must not be empty")
		}
		if def.PointValue <= 0 || def.PointValue > c.limits.MaxAchievementPoints {
			add(key, "point value must be in (0, %d], got %d", c.limits.MaxAchievementPoints, def.PointValue)
		}
		if err := def.ConditionParams.validate(def.ConditionType); err != nil {
			add(key, "%v", err)
		}
	}

	if len(update.LevelThresholds) > 0 {
		if update.LevelThresholds[0] != 0 {
			add("level_thresholds", "first threshold must be 0")
		}
		for i := 1; i < len(update.LevelThresholds); i++ {
			if update.LevelThresholds[i] <= update.LevelThresholds[i-1] {
				add("level_thresholds", "thresholds must be strictly increasing at index %d", i)
				break
			}
		}
	}

	for _, category := range sortedKeys(update.CategoryMultipliers) {
		m := update.CategoryMultipliers[category]
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			add("category_multipliers."+category, "multiplier must be a non-negative number")
		}
	}

	// 同一高分动作一天做三次不能超过每日上限
	if maxDaily > 0 && maxProposed*3 > maxDaily {
		add("ethical_constraints", "3 x %d exceeds max daily points %d", maxProposed, maxDaily)
	}
	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
