package cache

import (
	"Swan/types"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StateTTL 余额缓存的最长陈旧时间，其他实例只写数据库时以此为上限
	StateTTL       = time.Minute
	achievementTTL = 30 * 24 * time.Hour

	// BoardResync 榜单从数据库重建的最长间隔
	BoardResync = time.Minute
)

// incrLeaderboard 只在已从数据库建好的榜单上累加，未建榜时什么都不做，等下次读取时重建
// KEYS[1] zset KEYS[2] 最近活动 hash KEYS[3] 建榜标记
// ARGV[1] uid ARGV[2] delta ARGV[3] 活动时间(ms) ARGV[4] 过期时间(ms)
var incrLeaderboard = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 0 then
  return 0
end
redis.call('ZINCRBY', KEYS[1], ARGV[2], ARGV[1])
local last = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if tonumber(ARGV[3]) > last then
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
end
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
redis.call('PEXPIREAT', KEYS[2], ARGV[4])
return 1
`)

// seedLeaderboard 用数据库聚合结果整体替换榜单
// KEYS 同上；ARGV[1] 过期时间(ms) ARGV[2] 标记有效期(ms)，之后每三个一组：uid 积分 最近活动(ms)
var seedLeaderboard = redis.NewScript(`
redis.call('DEL', KEYS[1], KEYS[2])
for i = 3, #ARGV, 3 do
  redis.call('ZADD', KEYS[1], ARGV[i + 1], ARGV[i])
  redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 2])
end
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
redis.call('PEXPIREAT', KEYS[2], ARGV[1])
redis.call('SET', KEYS[3], '1', 'PX', ARGV[2])
return (#ARGV - 2) / 3
`)

// GamificationCache 积分快速缓存：余额、已解锁成就、排行榜
type GamificationCache struct {
	redis *redis.Client
}

func NewGamificationCache(rdb *redis.Client) *GamificationCache {
	if rdb == nil {
		return nil
	}
	return &GamificationCache{redis: rdb}
}

func (c *GamificationCache) stateKey(uid string) string {
	return fmt.Sprintf("gm:user:%s:state", uid)
}

func (c *GamificationCache) achievementKey(uid string) string {
	return fmt.Sprintf("gm:user:%s:achievements", uid)
}

func (c *GamificationCache) boardKey(window types.LeaderboardWindow, category string) string {
	return fmt.Sprintf("gm:lb:%s:%s:%s", window.Timeframe, window.Key, category)
}

func (c *GamificationCache) boardKeys(window types.LeaderboardWindow, category string) []string {
	key := c.boardKey(window, category)
	return []string{key, key + ":last", key + ":seeded"}
}

func boardExpireAt(window types.LeaderboardWindow) time.Time {
	return window.End.Add(24 * time.Hour)
}

// SetState 写入持久层已提交的余额，不做增量，避免缓存与流水漂移
func (c *GamificationCache) SetState(ctx context.Context, uid string, total int64, level, streak int) error {
	_, err := c.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.stateKey(uid), "total", total, "level", level, "streak", streak)
		pipe.Expire(ctx, c.stateKey(uid), StateTTL)
		return nil
	})
	return err
}

// GetTotalPoints 未命中返回 found=false
func (c *GamificationCache) GetTotalPoints(ctx context.Context, uid string) (int64, bool, error) {
	val, err := c.redis.HGet(ctx, c.stateKey(uid), "total").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (c *GamificationCache) AddAchievement(ctx context.Context, uid, achievementID string) error {
	_, err := c.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, c.achievementKey(uid), achievementID)
		pipe.Expire(ctx, c.achievementKey(uid), achievementTTL)
		return nil
	})
	return err
}

func (c *GamificationCache) HasAchievement(ctx context.Context, uid, achievementID string) (bool, error) {
	return c.redis.SIsMember(ctx, c.achievementKey(uid), achievementID).Result()
}

// IncrLeaderboard 在每个窗口的总榜和分类榜上累加
func (c *GamificationCache) IncrLeaderboard(ctx context.Context, windows []types.LeaderboardWindow, category, uid string, delta int64, at time.Time) error {
	_, err := c.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range windows {
			boards := []string{"overall"}
			if category != "" && category != "overall" {
				boards = append(boards, category)
			}
			for _, b := range boards {
				incrLeaderboard.Eval(ctx, pipe, c.boardKeys(w, b),
					uid, delta, at.UnixMilli(), boardExpireAt(w).UnixMilli())
			}
		}
		return nil
	})
	return err
}

// SeedLeaderboard entries 必须是窗口内的完整榜单；标记到期后下一次读取重新建榜
func (c *GamificationCache) SeedLeaderboard(ctx context.Context, window types.LeaderboardWindow, category string, entries []types.LeaderboardEntry, now time.Time) error {
	expireAt := boardExpireAt(window)
	ttl := BoardResync
	if left := expireAt.Sub(now); left < ttl {
		ttl = left
	}
	if ttl < time.Millisecond {
		return nil
	}

	args := make([]any, 0, 2+3*len(entries))
	args = append(args, expireAt.UnixMilli(), ttl.Milliseconds())
	for _, e := range entries {
		args = append(args, e.UserID, e.Points, e.LastActivityAt.UnixMilli())
	}
	return seedLeaderboard.Run(ctx, c.redis, c.boardKeys(window, category), args...).Err()
}

func (c *GamificationCache) seeded(ctx context.Context, window types.LeaderboardWindow, category string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.boardKeys(window, category)[2]).Result()
	return n > 0, err
}

// withActivity 补上最近活动时间，排序与数据库一致：积分降序、先到者在前、用户 ID 升序
func (c *GamificationCache) withActivity(ctx context.Context, window types.LeaderboardWindow, category string, members []redis.Z) ([]types.LeaderboardEntry, error) {
	if len(members) == 0 {
		return []types.LeaderboardEntry{}, nil
	}
	uids := make([]string, 0, len(members))
	for _, z := range members {
		uid, ok := z.Member.(string)
		if !ok {
			uid = fmt.Sprint(z.Member)
		}
		uids = append(uids, uid)
	}
	vals, err := c.redis.HMGet(ctx, c.boardKeys(window, category)[1], uids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]types.LeaderboardEntry, 0, len(members))
	for i, z := range members {
		var ms int64
		if s, ok := vals[i].(string); ok {
			ms, _ = strconv.ParseInt(s, 10, 64)
		}
		entries = append(entries, types.LeaderboardEntry{
			UserID:         uids[i],
			Points:         int64(z.Score),
			LastActivityAt: time.UnixMilli(ms),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.Before(b.LastActivityAt)
		}
		return a.UserID < b.UserID
	})
	return entries, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Leaderboard 榜单未建立时返回 found=false，由调用方回源并建榜
func (c *GamificationCache) Leaderboard(ctx context.Context, window types.LeaderboardWindow, category string, limit int) ([]types.LeaderboardEntry, bool, error) {
	ok, err := c.seeded(ctx, window, category)
	if err != nil || !ok {
		return nil, false, err
	}

	key := c.boardKey(window, category)
	top, err := c.redis.ZRevRange(ctx, key, int64(limit-1), int64(limit-1)).Result()
	if err != nil {
		return nil, false, err
	}
	// 第 limit 名的分数以上全部取出，边界上的同分成员按活动时间重新排
	lowest := "-inf"
	if len(top) == 1 {
		floor, err := c.redis.ZScore(ctx, key, top[0]).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, false, err
		}
		if err == nil {
			lowest = formatScore(floor)
		}
	}
	members, err := c.redis.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: lowest, Max: "+inf"}).Result()
	if err != nil {
		return nil, false, err
	}

	entries, err := c.withActivity(ctx, window, category, members)
	if err != nil {
		return nil, false, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, true, nil
}

// LeaderboardRank 榜单未建立 found=false；已建立但用户不在榜上返回 nil, true
func (c *GamificationCache) LeaderboardRank(ctx context.Context, window types.LeaderboardWindow, category, uid string) (*types.LeaderboardEntry, bool, error) {
	ok, err := c.seeded(ctx, window, category)
	if err != nil || !ok {
		return nil, false, err
	}

	key := c.boardKey(window, category)
	score, err := c.redis.ZScore(ctx, key, uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	s := formatScore(score)
	above, err := c.redis.ZCount(ctx, key, "("+s, "+inf").Result()
	if err != nil {
		return nil, false, err
	}
	ties, err := c.redis.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: s, Max: s}).Result()
	if err != nil {
		return nil, false, err
	}
	entries, err := c.withActivity(ctx, window, category, ties)
	if err != nil {
		return nil, false, err
	}
	for i, e := range entries {
		if e.UserID == uid {
			e.Rank = int(above) + i + 1
			return &e, true, nil
		}
	}
	return nil, true, nil
}

// Ping 健康检查
func (c *GamificationCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
