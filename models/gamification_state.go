package models

import "time"

// UserGamificationState 用户积分状态，是流水之和的物化视图
type UserGamificationState struct {
	ID                uint64    `gorm:"primaryKey;column:id"`
	UserID            string    `gorm:"column:user_id;size:64;uniqueIndex"`
	TotalPoints       int64     `gorm:"column:total_points;not null;default:0"`
	Level             int       `gorm:"column:level;not null;default:1"`
	CurrentStreakDays int       `gorm:"column:current_streak_days;not null;default:0"`
	LastStreakDay     string    `gorm:"column:last_streak_day;size:10"` // 2006-01-02，本地日期
	LastActivityAt    time.Time `gorm:"column:last_activity_at"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (UserGamificationState) TableName() string {
	return "user_gamification_state"
}

// UnlockedAchievement (user_id, achievement_id) 唯一，保证同一成就只发一次
type UnlockedAchievement struct {
	ID            uint64    `gorm:"primaryKey;column:id"`
	UserID        string    `gorm:"column:user_id;size:64;not null;uniqueIndex:uk_user_achievement,priority:1"`
	AchievementID string    `gorm:"column:achievement_id;size:64;not null;uniqueIndex:uk_user_achievement,priority:2"`
	PointsAwarded int64     `gorm:"column:points_awarded;not null"`
	TransactionID int64     `gorm:"column:transaction_id"`
	UnlockedAt    time.Time `gorm:"column:unlocked_at"`
}

func (UnlockedAchievement) TableName() string {
	return "unlocked_achievements"
}
