package dao

import (
	"Swan/config"
	"Swan/models"
	"Swan/types"
	"context"
	"time"

	"gorm.io/gorm"
)

// UsageStats 从流水表和会话表统计防沉迷所需数据
type UsageStats struct {
	db       *gorm.DB
	sessions *UserSessionDAO
	window   time.Duration
	loc      *time.Location
	Clock    func() time.Time
}

func NewUsageStats(db *gorm.DB, sessions *UserSessionDAO, conf *config.Gamification) *UsageStats {
	return &UsageStats{
		db:       db,
		sessions: sessions,
		window:   conf.Ethics.RapidActionWindow,
		loc:      conf.Location(),
		Clock:    time.Now,
	}
}

func (u *UsageStats) GetUsageStats(ctx context.Context, userID, actionType string) (*types.UsageStats, error) {
	now := u.Clock().In(u.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, u.loc)
	db := u.db.WithContext(ctx)

	// 成就奖励是系统发放的，不算用户操作
	var recent []int64
	err := db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND occurred_at >= ? AND reason_code NOT LIKE ?",
			userID, now.Add(-u.window).UnixMilli(), models.AchievementReasonPrefix+"%").
		Order("occurred_at ASC").
		Pluck("occurred_at", &recent).Error
	if err != nil {
		return nil, err
	}

	var daily int64
	err = db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND reason_code = ? AND occurred_at >= ?", userID, actionType, midnight.UnixMilli()).
		Count(&daily).Error
	if err != nil {
		return nil, err
	}

	stats := &types.UsageStats{
		RecentActionTimestamps: make([]time.Time, 0, len(recent)),
		DailyActionCount:       int(daily),
	}
	for _, ms := range recent {
		stats.RecentActionTimestamps = append(stats.RecentActionTimestamps, time.UnixMilli(ms))
	}

	sess, err := u.sessions.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess != nil && sess.EndedAt == nil {
		stats.CurrentSessionLengthMinutes = int(now.Sub(time.UnixMilli(sess.StartedUnix)).Minutes())
	}

	logins, err := u.sessions.CountSince(ctx, userID, midnight)
	if err != nil {
		return nil, err
	}
	stats.DailyLoginCount = int(logins)
	return stats, nil
}

// EngagementSummary 统计最近 days 天（含今天）的使用强度。
// 未结束的会话按最后活跃时间计时长，成就奖励不算用户动作
func (u *UsageStats) EngagementSummary(ctx context.Context, userID string, days int) (*types.EngagementSummary, error) {
	if days <= 0 {
		days = 1
	}
	now := u.Clock().In(u.loc)
	from := time.Date(now.Year(), now.Month(), now.Day()-(days-1), 0, 0, 0, 0, u.loc)
	db := u.db.WithContext(ctx)

	var actions int64
	err := db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND occurred_at >= ? AND reason_code NOT LIKE ?",
			userID, from.UnixMilli(), models.AchievementReasonPrefix+"%").
		Count(&actions).Error
	if err != nil {
		return nil, err
	}

	var sessions []models.UserSession
	err = db.Where("user_id = ? AND started_unix >= ?", userID, from.UnixMilli()).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	var total time.Duration
	for _, sess := range sessions {
		end := sess.LastSeenAt
		if sess.EndedAt != nil {
			end = *sess.EndedAt
		}
		if d := end.Sub(time.UnixMilli(sess.StartedUnix)); d > 0 {
			total += d
		}
	}

	summary := &types.EngagementSummary{
		Days:            days,
		Sessions:        len(sessions),
		AvgDailyActions: float64(actions) / float64(days),
	}
	if len(sessions) > 0 {
		summary.AvgSessionMinutes = total.Minutes() / float64(len(sessions))
	}
	return summary, nil
}
