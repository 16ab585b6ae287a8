package dao

import (
	"Swan/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type UserSessionDAO struct {
	Repo[models.UserSession]
}

func NewUserSessionDAO(db *gorm.DB) *UserSessionDAO {
	return &UserSessionDAO{
		Repo: NewRepo[models.UserSession](db),
	}
}

// Start 新开一个会话，同一用户之前未结束的会话一并关闭
func (d *UserSessionDAO) Start(ctx context.Context, userID string, now time.Time) (*models.UserSession, error) {
	sess := &models.UserSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		StartedUnix: now.UnixMilli(),
		StartedAt:   now,
		LastSeenAt:  now,
	}
	err := d.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserSession{}).
			Where("user_id = ? AND ended_at IS NULL", userID).
			Update("ended_at", now).Error; err != nil {
			return err
		}
		return tx.Create(sess).Error
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (d *UserSessionDAO) Touch(ctx context.Context, userID string, now time.Time) error {
	return d.Db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND ended_at IS NULL", userID).
		Update("last_seen_at", now).Error
}

func (d *UserSessionDAO) End(ctx context.Context, userID, sessionID string, now time.Time) error {
	res := d.Db.WithContext(ctx).Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND ended_at IS NULL", sessionID, userID).
		Update("ended_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Latest 最近一次会话，没有时返回 nil, nil
func (d *UserSessionDAO) Latest(ctx context.Context, userID string) (*models.UserSession, error) {
	var sess models.UserSession
	err := d.Db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_unix DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (d *UserSessionDAO) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := d.Db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND started_unix >= ?", userID, since.UnixMilli()).
		Count(&count).Error
	return count, err
}
