package service

import (
	"Swan/models"
	"Swan/types"
	"context"
	"time"
)

// DurableStore 权威数据源，dao.Ledger 实现
type DurableStore interface {
	AppendTransaction(ctx context.Context, req types.LedgerAppend) (*models.UserGamificationState, error)
	UnlockAchievement(ctx context.Context, req types.LedgerUnlock) (bool, *models.UserGamificationState, error)
	GetState(ctx context.Context, userID string) (*models.UserGamificationState, error)
	ActionCounts(ctx context.Context, userID string) (map[string]int64, error)
	UnlockedAchievements(ctx context.Context, userID string) ([]models.UnlockedAchievement, error)
	Leaderboard(ctx context.Context, window types.LeaderboardWindow, category string, limit int) ([]types.LeaderboardEntry, error)
	LeaderboardRank(ctx context.Context, window types.LeaderboardWindow, category, userID string) (*types.LeaderboardEntry, error)
	ListTransactions(ctx context.Context, userID string, cursor int64, limit int) ([]models.PointTransaction, error)
	ResetStaleStreaks(ctx context.Context, before string) (int64, error)
	Overview(ctx context.Context, since time.Time) (*types.LedgerOverview, error)
}
