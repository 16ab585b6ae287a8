package models

import "time"

// UserSession 登录会话，供防沉迷检查统计会话时长和当日登录次数
type UserSession struct {
	ID          string     `gorm:"primaryKey;column:id;size:36"`
	UserID      string     `gorm:"column:user_id;size:64;not null;index:idx_session_user_started,priority:1"`
	StartedUnix int64      `gorm:"column:started_unix;not null;index:idx_session_user_started,priority:2"` // unix 毫秒
	StartedAt   time.Time  `gorm:"column:started_at"`
	LastSeenAt  time.Time  `gorm:"column:last_seen_at"`
	EndedAt     *time.Time `gorm:"column:ended_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}
