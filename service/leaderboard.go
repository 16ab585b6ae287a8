package service

import (
	"Swan/types"
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	TimeframeDaily   = "daily"
	TimeframeWeekly  = "weekly"
	TimeframeMonthly = "monthly"
	TimeframeAllTime = "all_time"

	CategoryOverall = "overall"

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

var ErrInvalidTimeframe = errors.New("invalid leaderboard timeframe")

type LeaderboardQuery struct {
	Timeframe        string
	Category         string
	Limit            int
	RequestingUserID string
}

type LeaderboardResult struct {
	Timeframe   string                   `json:"timeframe"`
	Category    string                   `json:"category"`
	PeriodKey   string                   `json:"period_key"`
	PeriodStart time.Time                `json:"period_start"`
	Entries     []types.LeaderboardEntry `json:"entries"`
	UserRank    *types.LeaderboardEntry  `json:"user_rank,omitempty"`
}

// WindowFor 当前所在的排行榜分区，周从周一开始
func WindowFor(timeframe string, now time.Time) (types.LeaderboardWindow, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch timeframe {
	case TimeframeDaily:
		return types.LeaderboardWindow{
			Timeframe: timeframe,
			Key:       day.Format(dayLayout),
			Start:     day,
			End:       day.AddDate(0, 0, 1),
		}, nil
	case TimeframeWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		year, week := start.ISOWeek()
		return types.LeaderboardWindow{
			Timeframe: timeframe,
			Key:       fmt.Sprintf("%d-W%02d", year, week),
			Start:     start,
			End:       start.AddDate(0, 0, 7),
		}, nil
	case TimeframeMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return types.LeaderboardWindow{
			Timeframe: timeframe,
			Key:       start.Format("2006-01"),
			Start:     start,
			End:       start.AddDate(0, 1, 0),
		}, nil
	case TimeframeAllTime:
		return types.LeaderboardWindow{Timeframe: timeframe, Key: "all", Start: time.UnixMilli(0)}, nil
	}
	return types.LeaderboardWindow{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
}

// cachedWindows 写缓存时同时更新的分区，all_time 只走持久层
func cachedWindows(now time.Time) []types.LeaderboardWindow {
	out := make([]types.LeaderboardWindow, 0, 3)
	for _, tf := range []string{TimeframeDaily, TimeframeWeekly, TimeframeMonthly} {
		w, _ := WindowFor(tf, now)
		out = append(out, w)
	}
	return out
}

// GetLeaderboard 优先读缓存；缓存里还没建榜时取数据库完整榜单并建榜，缓存关闭或出错时只走数据库
func (s *GamificationService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*LeaderboardResult, error) {
	if q.Timeframe == "" {
		q.Timeframe = TimeframeWeekly
	}
	if q.Category == "" {
		q.Category = CategoryOverall
	}
	if q.Limit <= 0 {
		q.Limit = defaultLeaderboardLimit
	}
	if q.Limit > maxLeaderboardLimit {
		q.Limit = maxLeaderboardLimit
	}

	now := s.clock().In(s.loc)
	window, err := WindowFor(q.Timeframe, now)
	if err != nil {
		return nil, err
	}
	cacheable := q.Timeframe != TimeframeAllTime

	res := &LeaderboardResult{
		Timeframe:   q.Timeframe,
		Category:    q.Category,
		PeriodKey:   window.Key,
		PeriodStart: window.Start,
	}

	var (
		entries []types.LeaderboardEntry
		board   []types.LeaderboardEntry
		found   bool
	)
	if cacheable {
		s.cache.do("leaderboard", func(c FastCache) error {
			var err error
			entries, found, err = c.Leaderboard(ctx, window, q.Category, q.Limit)
			return err
		})
	}
	if !found && cacheable && s.cache.Enabled() {
		// 缓存里的榜单只在从数据库完整建过之后才可信
		board, err = s.Store.Leaderboard(ctx, window, q.Category, 0)
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
		s.cache.do("seed_leaderboard", func(c FastCache) error {
			return c.SeedLeaderboard(ctx, window, q.Category, board, now)
		})
		entries, found = board[:min(len(board), q.Limit)], true
	}
	if !found {
		entries, err = s.Store.Leaderboard(ctx, window, q.Category, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
	}
	res.Entries = entries

	if q.RequestingUserID == "" {
		return res, nil
	}
	if board != nil {
		for i := range board {
			if board[i].UserID == q.RequestingUserID {
				res.UserRank = &board[i]
				break
			}
		}
		return res, nil
	}
	rank, err := s.rank(ctx, window, q.Category, q.RequestingUserID, cacheable)
	if err != nil {
		return nil, err
	}
	res.UserRank = rank
	return res, nil
}

func (s *GamificationService) rank(ctx context.Context, window types.LeaderboardWindow, category, userID string, cacheable bool) (*types.LeaderboardEntry, error) {
	var (
		entry *types.LeaderboardEntry
		found bool
	)
	if cacheable {
		s.cache.do("leaderboard_rank", func(c FastCache) error {
			var err error
			entry, found, err = c.LeaderboardRank(ctx, window, category, userID)
			return err
		})
	}
	if found {
		return entry, nil
	}
	entry, err := s.Store.LeaderboardRank(ctx, window, category, userID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard rank: %w", err)
	}
	return entry, nil
}
