package config

import "time"

// Gamification 积分引擎配置
type Gamification struct {
	// RulesFile 可选的规则文件（yaml），启动时经过与 PUT /rules 相同的校验
	RulesFile            string `json:"rules_file" yaml:"rules_file"`
	Timezone             string `json:"timezone" yaml:"timezone"`
	MaxActionPoints      int64  `json:"max_action_points" yaml:"max_action_points"`
	MaxAchievementPoints int64  `json:"max_achievement_points" yaml:"max_achievement_points"`
	MaxDailyPoints       int64  `json:"max_daily_points" yaml:"max_daily_points"`
	StreakResetSpec      string `json:"streak_reset_spec" yaml:"streak_reset_spec"`
	Ethics               Ethics `json:"ethics" yaml:"ethics"`
}

// Ethics 防沉迷阈值
type Ethics struct {
	RapidActionThreshold        int            `json:"rapid_action_threshold" yaml:"rapid_action_threshold"`
	RapidActionWindow           time.Duration  `json:"rapid_action_window" yaml:"rapid_action_window"`
	EngagementCooldownMinutes   int            `json:"engagement_cooldown_minutes" yaml:"engagement_cooldown_minutes"`
	SessionLengthWarningMinutes int            `json:"session_length_warning_minutes" yaml:"session_length_warning_minutes"`
	DailyLoginWarning           int            `json:"daily_login_warning" yaml:"daily_login_warning"`
	MaxDailyActions             map[string]int `json:"max_daily_actions" yaml:"max_daily_actions"`
	// 使用健康度评估：统计天数、平均会话时长和日均动作数的上限
	HealthWindowDays      int `json:"health_window_days" yaml:"health_window_days"`
	HealthySessionMinutes int `json:"healthy_session_minutes" yaml:"healthy_session_minutes"`
	HealthyDailyActions   int `json:"healthy_daily_actions" yaml:"healthy_daily_actions"`
}

func (g *Gamification) setDefaults() {
	if g.Timezone == "" {
		g.Timezone = "Local"
	}
	if g.MaxActionPoints == 0 {
		g.MaxActionPoints = 1000
	}
	if g.MaxAchievementPoints == 0 {
		g.MaxAchievementPoints = 2000
	}
	if g.MaxDailyPoints == 0 {
		g.MaxDailyPoints = 1000
	}
	if g.StreakResetSpec == "" {
		g.StreakResetSpec = "0 0 * * *"
	}
	g.Ethics.setDefaults()
}

func (e *Ethics) setDefaults() {
	if e.RapidActionThreshold == 0 {
		e.RapidActionThreshold = 10
	}
	if e.RapidActionWindow == 0 {
		e.RapidActionWindow = 5 * time.Minute
	}
	if e.EngagementCooldownMinutes == 0 {
		e.EngagementCooldownMinutes = 30
	}
	if e.SessionLengthWarningMinutes == 0 {
		e.SessionLengthWarningMinutes = 180
	}
	if e.DailyLoginWarning == 0 {
		e.DailyLoginWarning = 20
	}
	if e.HealthWindowDays == 0 {
		e.HealthWindowDays = 7
	}
	if e.HealthySessionMinutes == 0 {
		e.HealthySessionMinutes = 120
	}
	if e.HealthyDailyActions == 0 {
		e.HealthyDailyActions = 50
	}
	if e.MaxDailyActions == nil {
		e.MaxDailyActions = map[string]int{
			"workout_completed":  3,
			"check_in_logged":    5,
			"social_interaction": 10,
		}
	}
}

// Location 日切、早起加成都按这个时区计算
func (g *Gamification) Location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func ProvideGamificationConfig(cfg *Config) *Gamification {
	return cfg.Gamification
}
