package service

import (
	"Swan/config"
	"Swan/models"
	"Swan/pkg/log"
	"Swan/pkg/snowflake"
	"Swan/types"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrInvalidUser   = errors.New("invalid user id")
	ErrUnknownAction = errors.New("action has no point value")
	ErrInvalidPoints = errors.New("final points must be positive")
)

type AwardResult struct {
	Success                   bool     `json:"success"`
	PointsAwarded             int64    `json:"points_awarded"`
	Multiplier                float64  `json:"multiplier"`
	TotalPoints               int64    `json:"total_points"`
	LevelUp                   bool     `json:"level_up"`
	NewLevel                  int      `json:"new_level"`
	NewlyUnlockedAchievements []string `json:"newly_unlocked_achievements"`
	TransactionID             int64    `json:"transaction_id,string,omitempty"`
	Error                     string   `json:"error,omitempty"`
}

var _ IGamificationService = (*GamificationService)(nil)

type IGamificationService interface {
	AwardPoints(ctx context.Context, userID, actionType string, metadata map[string]any) (*AwardResult, error)
	CheckForAchievements(ctx context.Context, userID, actionType string, metadata map[string]any) ([]string, error)
	GetUserGamificationStatus(ctx context.Context, userID string) (*GamificationStatus, error)
	GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*LeaderboardResult, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	ListTransactions(ctx context.Context, userID string, cursor int64, limit int) (*types.ListPointsRecord, error)
	ResetStaleStreaks(ctx context.Context) (int64, error)
	SystemHealth(ctx context.Context) (*SystemHealth, error)
}

// GamificationService 积分入账、成就评估、状态与排行榜查询
type GamificationService struct {
	Rules  *RulesCatalog
	Store  DurableStore
	Events EventPublisher

	cache *cacheTier
	locks *userLocks
	loc   *time.Location
	clock func() time.Time
}

func NewGamificationService(conf *config.Gamification, rules *RulesCatalog, store DurableStore, fast FastCache, events EventPublisher) *GamificationService {
	if events == nil {
		events = noopPublisher{}
	}
	return &GamificationService{
		Rules:  rules,
		Store:  store,
		Events: events,
		cache:  newCacheTier(fast),
		locks:  newUserLocks(),
		loc:    conf.Location(),
		clock:  time.Now,
	}
}

func (s *GamificationService) CacheEnabled() bool {
	return s.cache.Enabled()
}

// AwardPoints 持久层写成功才算成功；缓存和成就失败都不影响本次入账
func (s *GamificationService) AwardPoints(ctx context.Context, userID, actionType string, metadata map[string]any) (*AwardResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}
	rules := s.Rules.Snapshot()
	action, ok := rules.Action(actionType)
	if !ok || action.Points <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}

	unlock := s.locks.lock(userID)
	res, events, err := s.award(ctx, rules, userID, actionType, action, metadata)
	unlock()

	if len(events) > 0 {
		s.Events.Publish(ctx, events...)
	}
	return res, err
}

func (s *GamificationService) award(ctx context.Context, rules *Rules, userID, actionType string, action ActionRule, metadata map[string]any) (*AwardResult, []GamificationEvent, error) {
	now := s.clock().In(s.loc)

	prev, err := s.Store.GetState(ctx, userID)
	if err != nil {
		return s.failed(userID, actionType, fmt.Errorf("load state: %w", err)), nil, nil
	}

	multiplier := Multiplier(effectiveStreak(prev, now), action.StreakEligible(), now.Hour(), rules.CategoryMultiplier(action.Category))
	points := FinalPoints(action.Points, multiplier)
	if points <= 0 {
		return nil, nil, fmt.Errorf("%w: %s x %s", ErrInvalidPoints, decimal.NewFromInt(action.Points), multiplier)
	}

	txn := &models.PointTransaction{
		ID:                snowflake.GenID(),
		UserID:            userID,
		PointsDelta:       points,
		ReasonCode:        actionType,
		Category:          action.Category,
		MultiplierApplied: multiplier,
		Metadata:          datatypes.JSONMap(metadata),
		OccurredAt:        now.UnixMilli(),
		CreatedAt:         now,
	}
	req := types.LedgerAppend{Transaction: txn, Level: rules.Level}
	if action.StreakEligible() {
		req.StreakDay = now.Format(dayLayout)
		req.Yesterday = now.AddDate(0, 0, -1).Format(dayLayout)
	}

	state, err := s.Store.AppendTransaction(ctx, req)
	if err != nil {
		return s.failed(userID, actionType, fmt.Errorf("append transaction: %w", err)), nil, nil
	}
	pointsAwarded.WithLabelValues(action.Category).Inc()
	s.reflect(ctx, state, txn, now)

	prevLevel := 1
	if prev != nil {
		prevLevel = rules.Level(prev.TotalPoints)
	}

	unlocked, state, events := s.evaluate(ctx, rules, state, actionType, metadata, now)
	if state.Level > prevLevel {
		events = append(events, GamificationEvent{
			Type:       EventLevelUp,
			UserID:     userID,
			Level:      state.Level,
			Points:     state.TotalPoints,
			OccurredAt: now,
		})
	}

	return &AwardResult{
		Success:                   true,
		PointsAwarded:             points,
		Multiplier:                multiplier.InexactFloat64(),
		TotalPoints:               state.TotalPoints,
		LevelUp:                   state.Level > prevLevel,
		NewLevel:                  state.Level,
		NewlyUnlockedAchievements: unlocked,
		TransactionID:             txn.ID,
	}, events, nil
}

func (s *GamificationService) failed(userID, actionType string, err error) *AwardResult {
	awardFailures.Inc()
	log.L.Error("award points failed",
		zap.String("user_id", userID), zap.String("action", actionType), zap.Error(err))
	return &AwardResult{Success: false, NewlyUnlockedAchievements: []string{}, Error: err.Error()}
}

// reflect 把持久层已提交的结果同步到缓存
func (s *GamificationService) reflect(ctx context.Context, state *models.UserGamificationState, txn *models.PointTransaction, now time.Time) {
	s.cache.do("set_state", func(c FastCache) error {
		return c.SetState(ctx, state.UserID, state.TotalPoints, state.Level, state.CurrentStreakDays)
	})
	s.cache.do("incr_leaderboard", func(c FastCache) error {
		return c.IncrLeaderboard(ctx, cachedWindows(now), txn.Category, txn.UserID, txn.PointsDelta, now)
	})
}

// CheckForAchievements 单独触发一次成就评估，出错只记日志并返回空列表
func (s *GamificationService) CheckForAchievements(ctx context.Context, userID, actionType string, metadata map[string]any) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	unlock := s.locks.lock(userID)
	rules := s.Rules.Snapshot()
	now := s.clock().In(s.loc)

	var (
		unlocked []string
		events   []GamificationEvent
	)
	state, err := s.Store.GetState(ctx, userID)
	if err != nil {
		log.L.Error("check achievements: load state", zap.String("user_id", userID), zap.Error(err))
	} else {
		if state == nil {
			state = &models.UserGamificationState{UserID: userID, Level: 1}
		}
		unlocked, _, events = s.evaluate(ctx, rules, state, actionType, metadata, now)
	}
	unlock()

	if len(events) > 0 {
		s.Events.Publish(ctx, events...)
	}
	return unlocked, nil
}

type trigger struct {
	action   string
	metadata map[string]any
}

// evaluate 调用方持有用户锁。每个解锁产生的 achievement_unlocked:<id> 作为下一轮的触发动作，
// 成就最多解锁一次，所以队列一定会耗尽
func (s *GamificationService) evaluate(ctx context.Context, rules *Rules, state *models.UserGamificationState, actionType string, metadata map[string]any, now time.Time) ([]string, *models.UserGamificationState, []GamificationEvent) {
	unlocked := make([]string, 0)
	userID := state.UserID

	owned, err := s.Store.UnlockedAchievements(ctx, userID)
	if err != nil {
		log.L.Error("check achievements: load unlocked", zap.String("user_id", userID), zap.Error(err))
		return unlocked, state, nil
	}
	counts, err := s.Store.ActionCounts(ctx, userID)
	if err != nil {
		log.L.Error("check achievements: load counts", zap.String("user_id", userID), zap.Error(err))
		return unlocked, state, nil
	}

	have := make(map[string]bool, len(owned))
	for _, a := range owned {
		have[a.AchievementID] = true
	}

	var events []GamificationEvent
	queue := []trigger{{action: actionType, metadata: metadata}}
	for len(queue) > 0 {
		tr := queue[0]
		queue = queue[1:]

		for _, def := range rules.AchievementList() {
			if have[def.ID] || s.cachedUnlock(ctx, userID, def.ID) {
				have[def.ID] = true
				continue
			}
			ac := AchievementContext{State: state, ActionCounts: counts, TriggerAction: tr.action, Metadata: tr.metadata}
			if !def.Satisfied(ac) {
				continue
			}
			// 先标记再发奖，互相引用的成就不会重复进入
			have[def.ID] = true

			next, ok := s.unlock(ctx, rules, state, def, tr.action, now)
			if !ok {
				continue
			}
			state = next
			reason := models.AchievementReason(def.ID)
			counts[reason]++
			unlocked = append(unlocked, def.ID)
			events = append(events, GamificationEvent{
				Type:          EventAchievementUnlocked,
				UserID:        userID,
				AchievementID: def.ID,
				Points:        def.PointValue,
				OccurredAt:    now,
			})
			queue = append(queue, trigger{action: reason, metadata: map[string]any{"achievement_id": def.ID}})
		}
	}
	return unlocked, state, events
}

// cachedUnlock 只信任缓存的肯定结果，否定结果以持久层为准
func (s *GamificationService) cachedUnlock(ctx context.Context, userID, achievementID string) bool {
	var hit bool
	s.cache.do("has_achievement", func(c FastCache) error {
		var err error
		hit, err = c.HasAchievement(ctx, userID, achievementID)
		return err
	})
	return hit
}

func (s *GamificationService) unlock(ctx context.Context, rules *Rules, state *models.UserGamificationState, def AchievementDefinition, triggeredBy string, now time.Time) (*models.UserGamificationState, bool) {
	category := def.Category
	if category == "" {
		category = CategoryAchievement
	}
	txn := &models.PointTransaction{
		ID:                snowflake.GenID(),
		UserID:            state.UserID,
		PointsDelta:       def.PointValue,
		ReasonCode:        models.AchievementReason(def.ID),
		Category:          category,
		MultiplierApplied: decimal.NewFromInt(1),
		Metadata:          datatypes.JSONMap{"achievement_id": def.ID, "triggered_by": triggeredBy},
		OccurredAt:        now.UnixMilli(),
		CreatedAt:         now,
	}

	inserted, next, err := s.Store.UnlockAchievement(ctx, types.LedgerUnlock{
		Unlock: &models.UnlockedAchievement{
			UserID:        state.UserID,
			AchievementID: def.ID,
			PointsAwarded: def.PointValue,
			TransactionID: txn.ID,
			UnlockedAt:    now.UTC(),
		},
		Append: types.LedgerAppend{Transaction: txn, Level: rules.Level},
	})
	if err != nil {
		log.L.Error("unlock achievement failed",
			zap.String("user_id", state.UserID), zap.String("achievement", def.ID), zap.Error(err))
		return nil, false
	}
	if !inserted {
		return nil, false
	}

	achievementsUnlocked.WithLabelValues(def.ID).Inc()
	log.L.Info("achievement unlocked",
		zap.String("user_id", state.UserID), zap.String("achievement", def.ID), zap.Int64("points", def.PointValue))

	s.cache.do("add_achievement", func(c FastCache) error {
		return c.AddAchievement(ctx, state.UserID, def.ID)
	})
	s.reflect(ctx, next, txn, now)
	return next, true
}

// GetBalance 缓存优先，未命中回源并回填
func (s *GamificationService) GetBalance(ctx context.Context, userID string) (int64, error) {
	var (
		total int64
		found bool
	)
	s.cache.do("get_total_points", func(c FastCache) error {
		var err error
		total, found, err = c.GetTotalPoints(ctx, userID)
		return err
	})
	if found {
		return total, nil
	}

	state, err := s.Store.GetState(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return 0, nil
	}
	s.cache.do("set_state", func(c FastCache) error {
		return c.SetState(ctx, userID, state.TotalPoints, state.Level, state.CurrentStreakDays)
	})
	return state.TotalPoints, nil
}

// ListTransactions 游标分页，多取一条判断是否还有下一页
func (s *GamificationService) ListTransactions(ctx context.Context, userID string, cursor int64, limit int) (*types.ListPointsRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.Store.ListTransactions(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	resp := &types.ListPointsRecord{Records: make([]types.PointRecord, 0, len(items))}
	if len(items) > limit {
		resp.HasMore = true
		items = items[:limit]
		resp.NextCursor = items[len(items)-1].ID
	}
	for _, t := range items {
		resp.Records = append(resp.Records, types.PointRecord{
			ID:         t.ID,
			Amount:     t.PointsDelta,
			Reason:     t.ReasonCode,
			Category:   t.Category,
			Multiplier: t.MultiplierApplied.StringFixed(2),
			Metadata:   t.Metadata,
			CreatedAt:  time.UnixMilli(t.OccurredAt).In(s.loc).Format("2006-01-02 15:04:05"),
		})
	}
	return resp, nil
}

// ResetStaleStreaks 最后打卡日早于昨天的用户连续天数清零
func (s *GamificationService) ResetStaleStreaks(ctx context.Context) (int64, error) {
	yesterday := s.clock().In(s.loc).AddDate(0, 0, -1).Format(dayLayout)
	n, err := s.Store.ResetStaleStreaks(ctx, yesterday)
	if err != nil {
		return 0, fmt.Errorf("reset streaks: %w", err)
	}
	return n, nil
}

type SystemHealth struct {
	types.LedgerOverview
	CacheEnabled bool      `json:"cache_enabled"`
	CheckedAt    time.Time `json:"checked_at"`
}

// SystemHealth 最近 24 小时的整体指标
func (s *GamificationService) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	now := s.clock()
	ov, err := s.Store.Overview(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load overview: %w", err)
	}
	return &SystemHealth{LedgerOverview: *ov, CacheEnabled: s.cache.Enabled(), CheckedAt: now}, nil
}
