package service

import (
	"Swan/pkg/log"
	"Swan/pkg/rocketmq"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	EventAchievementUnlocked = "achievement_unlocked"
	EventLevelUp             = "level_up"
)

type GamificationEvent struct {
	Type          string    `json:"type"`
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id,omitempty"`
	Level         int       `json:"level,omitempty"`
	Points        int64     `json:"points,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher 事务提交后尽力投递，失败只记日志
type EventPublisher interface {
	Publish(ctx context.Context, events ...GamificationEvent)
}

func NewEventPublisher(mq *rocketmq.Rocketmq) EventPublisher {
	if mq == nil {
		return noopPublisher{}
	}
	return &mqPublisher{mq: mq}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...GamificationEvent) {}

type mqPublisher struct {
	mq *rocketmq.Rocketmq
}

func (p *mqPublisher) Publish(ctx context.Context, events ...GamificationEvent) {
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := p.mq.SendMsg(ctx, e.UserID, body); err != nil {
			log.L.Warn("publish gamification event failed",
				zap.String("type", e.Type), zap.String("user_id", e.UserID), zap.Error(err))
		}
	}
}
