package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PointTransaction 积分流水，只追加，不修改不删除
type PointTransaction struct {
	ID                int64             `gorm:"primaryKey;autoIncrement:false;column:id"` // 雪花ID
	UserID            string            `gorm:"column:user_id;size:64;not null;index:idx_pt_user_occurred,priority:1"`
	PointsDelta       int64             `gorm:"column:points_delta;not null"`
	ReasonCode        string            `gorm:"column:reason_code;size:128;not null;index:idx_pt_reason"`
	Category          string            `gorm:"column:category;size:64;index:idx_pt_category"`
	MultiplierApplied decimal.Decimal   `gorm:"column:multiplier_applied;type:decimal(6,2);not null"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata"`
	OccurredAt        int64             `gorm:"column:occurred_at;not null;index:idx_pt_user_occurred,priority:2;index:idx_pt_occurred"` // unix 毫秒，窗口过滤与同分排序
	CreatedAt         time.Time         `gorm:"column:created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

// AchievementReasonPrefix 成就奖励流水的 reason_code 前缀
const AchievementReasonPrefix = "achievement_unlocked:"

func AchievementReason(achievementID string) string {
	return AchievementReasonPrefix + achievementID
}
