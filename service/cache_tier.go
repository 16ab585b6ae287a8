package service

import (
	"Swan/dao/cache"
	"Swan/pkg/log"
	"Swan/types"
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// FastCache 可选的快速缓存层，出错不影响持久层结果
type FastCache interface {
	SetState(ctx context.Context, uid string, total int64, level, streak int) error
	GetTotalPoints(ctx context.Context, uid string) (int64, bool, error)
	AddAchievement(ctx context.Context, uid, achievementID string) error
	HasAchievement(ctx context.Context, uid, achievementID string) (bool, error)
	IncrLeaderboard(ctx context.Context, windows []types.LeaderboardWindow, category, uid string, delta int64, at time.Time) error
	Leaderboard(ctx context.Context, window types.LeaderboardWindow, category string, limit int) ([]types.LeaderboardEntry, bool, error)
	LeaderboardRank(ctx context.Context, window types.LeaderboardWindow, category, uid string) (*types.LeaderboardEntry, bool, error)
	SeedLeaderboard(ctx context.Context, window types.LeaderboardWindow, category string, entries []types.LeaderboardEntry, now time.Time) error
}

// ProvideFastCache redis 未启用时返回 nil 接口，而不是包着 nil 指针的接口
func ProvideFastCache(c *cache.GamificationCache) FastCache {
	if c == nil {
		return nil
	}
	return c
}

// cacheTier 第一次出错后永久关闭，进程内不再重试
type cacheTier struct {
	cache   FastCache
	enabled atomic.Bool
}

func newCacheTier(c FastCache) *cacheTier {
	t := &cacheTier{cache: c}
	t.enabled.Store(c != nil)
	if c != nil {
		cacheTierEnabled.Set(1)
	} else {
		cacheTierEnabled.Set(0)
	}
	return t
}

func (t *cacheTier) Enabled() bool {
	return t.enabled.Load()
}

// do 缓存关闭或本次出错返回 false
func (t *cacheTier) do(op string, fn func(c FastCache) error) bool {
	if !t.enabled.Load() {
		return false
	}
	if err := fn(t.cache); err != nil {
		t.trip(op, err)
		return false
	}
	return true
}

func (t *cacheTier) trip(op string, err error) {
	if t.enabled.CompareAndSwap(true, false) {
		cacheTierEnabled.Set(0)
		log.L.Warn("fast cache disabled after error, falling back to durable store",
			zap.String("op", op), zap.Error(err))
	}
}
