package service

import (
	"Swan/config"
	"Swan/pkg/log"
	"Swan/types"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	ReasonOK                  = "ok"
	ReasonRapidActionSequence = "rapid_action_sequence"
	ReasonDailyLimitReached   = "daily_limit_reached"
	ReasonLongSessionWarning  = "long_session_warning"

	WarningRapidActionSequence = "rapid_action_sequence"
	WarningDailyLimit          = "daily_limit"
	WarningLongSession         = "long_session"
	WarningExcessiveEngagement = "excessive_engagement"
	WarningStatsUnavailable    = "stats_unavailable"
)

const excessiveEngagementMessage = "You've been very active today. Consider taking a healthy break!"

var healthyBreakMessages = []string{
	"Take a moment to hydrate and stretch. Your body will thank you!",
	"Great progress today! Consider taking a short walk outside.",
	"Rest is part of training. Take a break and come back refreshed.",
	"Your dedication is inspiring! Remember to balance activity with recovery.",
}

// UsageStatsProvider 提供防沉迷所需的使用数据
type UsageStatsProvider interface {
	GetUsageStats(ctx context.Context, userID, actionType string) (*types.UsageStats, error)
	EngagementSummary(ctx context.Context, userID string, days int) (*types.EngagementSummary, error)
}

type EthicalCheckResult struct {
	Approved        bool     `json:"approved"`
	ReasonCode      string   `json:"reason_code"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	SupportMessage  string   `json:"support_message,omitempty"`
	Warnings        []string `json:"warnings"`
}

const (
	RecommendTakeBreaks   = "Take more frequent breaks during long sessions"
	RecommendFewerActions = "Consider reducing the frequency of actions per day"
	IssueUnhealthyPattern = "unhealthy_engagement_pattern"
)

// EngagementHealth 一段时间内的使用健康度，不健康时给出建议
type EngagementHealth struct {
	UserID          string                  `json:"user_id"`
	Healthy         bool                    `json:"healthy"`
	Issues          []string                `json:"issues"`
	Recommendations []string                `json:"recommendations"`
	Metrics         types.EngagementSummary `json:"metrics"`
}

// EthicalGuard 在入账前检查刷分和过度使用，只读，不写任何数据
type EthicalGuard struct {
	conf     config.Ethics
	stats    UsageStatsProvider
	loc      *time.Location
	now      func() time.Time
	rotation atomic.Uint64
}

func NewEthicalGuard(conf *config.Gamification, stats UsageStatsProvider) *EthicalGuard {
	return &EthicalGuard{
		conf:  conf.Ethics,
		stats: stats,
		loc:   conf.Location(),
		now:   time.Now,
	}
}

// CheckActionEthics 统计数据取不到时放行，只带 stats_unavailable 警告
func (g *EthicalGuard) CheckActionEthics(ctx context.Context, userID, actionType string) EthicalCheckResult {
	stats, err := g.stats.GetUsageStats(ctx, userID, actionType)
	if err != nil || stats == nil {
		log.L.Warn("usage stats unavailable, failing open",
			zap.String("user_id", userID), zap.String("action", actionType), zap.Error(err))
		ethicsChecks.WithLabelValues(ReasonOK).Inc()
		return EthicalCheckResult{
			Approved:   true,
			ReasonCode: ReasonOK,
			Warnings:   []string{WarningStatsUnavailable},
		}
	}

	res := g.Evaluate(*stats, actionType, g.now())
	ethicsChecks.WithLabelValues(res.ReasonCode).Inc()
	return res
}

// Evaluate 先判刷分，再判每日上限；会话时长、登录次数只出警告不拦截
func (g *EthicalGuard) Evaluate(stats types.UsageStats, actionType string, now time.Time) EthicalCheckResult {
	now = now.In(g.loc)
	warnings := make([]string, 0)

	rapid := g.recentCount(stats.RecentActionTimestamps, now) >= g.conf.RapidActionThreshold
	if rapid {
		warnings = append(warnings, WarningRapidActionSequence)
	}

	limit, limited := g.conf.MaxDailyActions[actionType]
	overDaily := limited && stats.DailyActionCount >= limit
	if overDaily {
		warnings = append(warnings, WarningDailyLimit)
	}

	longSession := stats.CurrentSessionLengthMinutes >= g.conf.SessionLengthWarningMinutes
	if longSession {
		warnings = append(warnings, WarningLongSession)
	}
	excessive := stats.DailyLoginCount >= g.conf.DailyLoginWarning
	if excessive {
		warnings = append(warnings, WarningExcessiveEngagement)
	}

	switch {
	case rapid:
		minutes := g.conf.EngagementCooldownMinutes
		return EthicalCheckResult{
			Approved:        false,
			ReasonCode:      ReasonRapidActionSequence,
			CooldownMinutes: minutes,
			CooldownSeconds: minutes * 60,
			SupportMessage:  g.nextHealthyBreak(),
			Warnings:        warnings,
		}
	case overDaily:
		seconds := secondsUntilMidnight(now)
		return EthicalCheckResult{
			Approved:        false,
			ReasonCode:      ReasonDailyLimitReached,
			CooldownMinutes: int(math.Ceil(float64(seconds) / 60)),
			CooldownSeconds: seconds,
			SupportMessage: fmt.Sprintf("You've reached your daily limit for %s. Come back tomorrow for more!",
				strings.ReplaceAll(actionType, "_", " ")),
			Warnings: warnings,
		}
	}

	res := EthicalCheckResult{Approved: true, ReasonCode: ReasonOK, Warnings: warnings}
	if longSession {
		res.ReasonCode = ReasonLongSessionWarning
		res.SupportMessage = g.nextHealthyBreak()
	}
	// 登录过多的提示优先于会话时长提示
	if excessive {
		res.SupportMessage = excessiveEngagementMessage
	}
	return res
}

// CheckEngagementHealth 平均会话时长和日均动作数都不超过阈值才算健康
func (g *EthicalGuard) CheckEngagementHealth(ctx context.Context, userID string) (*EngagementHealth, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	summary, err := g.stats.EngagementSummary(ctx, userID, g.conf.HealthWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load engagement summary: %w", err)
	}

	health := &EngagementHealth{
		UserID:          userID,
		Healthy:         true,
		Issues:          make([]string, 0),
		Recommendations: make([]string, 0),
		Metrics:         *summary,
	}
	if summary.AvgSessionMinutes > float64(g.conf.HealthySessionMinutes) {
		health.Healthy = false
		health.Recommendations = append(health.Recommendations, RecommendTakeBreaks)
	}
	if summary.AvgDailyActions > float64(g.conf.HealthyDailyActions) {
		health.Healthy = false
		health.Recommendations = append(health.Recommendations, RecommendFewerActions)
	}
	if !health.Healthy {
		health.Issues = append(health.Issues, IssueUnhealthyPattern)
	}
	engagementHealthChecks.WithLabelValues(strconv.FormatBool(health.Healthy)).Inc()
	return health, nil
}

func (g *EthicalGuard) recentCount(timestamps []time.Time, now time.Time) int {
	from := now.Add(-g.conf.RapidActionWindow)
	n := 0
	for _, ts := range timestamps {
		if ts.After(from) && !ts.After(now) {
			n++
		}
	}
	return n
}

func (g *EthicalGuard) nextHealthyBreak() string {
	i := g.rotation.Add(1) - 1
	return healthyBreakMessages[i%uint64(len(healthyBreakMessages))]
}

func secondsUntilMidnight(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return int(math.Ceil(midnight.Sub(now).Seconds()))
}
