package types

import (
	"Swan/models"
	"time"
)

// LedgerAppend 一次入账：写流水 + 原子累加余额 + 重算等级/连续天数，同一个数据库事务
type LedgerAppend struct {
	Transaction *models.PointTransaction
	// StreakDay 计入连续打卡的本地日期（2006-01-02），为空表示本次动作不影响连续天数
	StreakDay string
	Yesterday string
	Level     func(totalPoints int64) int
}

// LedgerUnlock 成就解锁：条件插入解锁记录，插入成功才写奖励流水
type LedgerUnlock struct {
	Unlock *models.UnlockedAchievement
	Append LedgerAppend
}

// LeaderboardWindow 排行榜分区，每个分区在自己的边界清零
type LeaderboardWindow struct {
	Timeframe string
	Key       string
	Start     time.Time
	End       time.Time
}

type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	UserID         string    `json:"user_id"`
	Points         int64     `json:"points"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// UsageStats 防沉迷检查所需的近期使用数据
type UsageStats struct {
	RecentActionTimestamps      []time.Time
	DailyActionCount            int
	CurrentSessionLengthMinutes int
	DailyLoginCount             int
}

// EngagementSummary 最近若干天的平均会话时长和日均动作数
type EngagementSummary struct {
	Days              int     `json:"days"`
	Sessions          int     `json:"sessions"`
	AvgSessionMinutes float64 `json:"avg_session_minutes"`
	AvgDailyActions   float64 `json:"avg_daily_actions"`
}

// LedgerOverview 系统健康统计
type LedgerOverview struct {
	ActiveUsers          int64   `json:"active_users"`
	TotalPointsAwarded   int64   `json:"total_points_awarded"`
	AchievementsUnlocked int64   `json:"achievements_unlocked"`
	AverageStreak        float64 `json:"average_streak"`
}

// ProcessActionReq 用户行为上报
type ProcessActionReq struct {
	Action   string         `json:"action" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

type EthicsCheckReq struct {
	Action string `json:"action" binding:"required"`
}

type LeaderboardReq struct {
	Timeframe string `form:"timeframe,default=weekly"`
	Category  string `form:"category,default=overall"`
	Limit     int    `form:"limit,default=10"`
}

type ListTransactionsReq struct {
	Cursor int64 `form:"cursor"`
	Limit  int   `form:"limit,default=20"`
}

type SessionResp struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}
