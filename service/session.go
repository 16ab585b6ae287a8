package service

import (
	"Swan/dao"
	"Swan/models"
	"context"
	"strings"
	"time"
)

var _ ISessionService = (*SessionService)(nil)

type ISessionService interface {
	Login(ctx context.Context, userID string) (*models.UserSession, error)
	Logout(ctx context.Context, userID, sessionID string) error
	Touch(ctx context.Context, userID string) error
}

// SessionService 登录会话，会话时长和当日登录次数供防沉迷检查使用
type SessionService struct {
	Sessions *dao.UserSessionDAO
}

func (s *SessionService) Login(ctx context.Context, userID string) (*models.UserSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	return s.Sessions.Start(ctx, userID, time.Now())
}

func (s *SessionService) Logout(ctx context.Context, userID, sessionID string) error {
	return s.Sessions.End(ctx, userID, sessionID, time.Now())
}

// Touch 刷新当前会话的最后活跃时间，没有进行中的会话时什么也不做
func (s *SessionService) Touch(ctx context.Context, userID string) error {
	return s.Sessions.Touch(ctx, userID, time.Now())
}
