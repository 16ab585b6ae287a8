package service

import (
	"Swan/models"
	"Swan/types"
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
)

type EarnedAchievement struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PointsAwarded int64     `json:"points_awarded"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

type AvailableAchievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointValue  int64  `json:"point_value"`
	Progress    int    `json:"progress"`
}

type GamificationStatus struct {
	UserID                string                  `json:"user_id"`
	TotalPoints           int64                   `json:"total_points"`
	Level                 int                     `json:"level"`
	LevelProgress         int                     `json:"level_progress"`
	NextLevelPoints       int64                   `json:"next_level_points"`
	CurrentStreak         int                     `json:"current_streak"`
	LastActivityAt        *time.Time              `json:"last_activity_at,omitempty"`
	EarnedAchievements    []EarnedAchievement     `json:"earned_achievements"`
	AvailableAchievements []AvailableAchievement  `json:"available_achievements"`
	WeeklyRank            *types.LeaderboardEntry `json:"weekly_rank,omitempty"`
}

// GetUserGamificationStatus 只读快照，几路查询并发执行
func (s *GamificationService) GetUserGamificationStatus(ctx context.Context, userID string) (*GamificationStatus, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	rules := s.Rules.Snapshot()
	now := s.clock().In(s.loc)
	week, _ := WindowFor(TimeframeWeekly, now)

	var (
		state  *models.UserGamificationState
		owned  []models.UnlockedAchievement
		counts map[string]int64
		rank   *types.LeaderboardEntry
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		state, err = s.Store.GetState(ctx, userID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		owned, err = s.Store.UnlockedAchievements(ctx, userID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		counts, err = s.Store.ActionCounts(ctx, userID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		rank, err = s.rank(ctx, week, CategoryOverall, userID, true)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}

	if state == nil {
		state = &models.UserGamificationState{UserID: userID, Level: 1}
	}

	status := &GamificationStatus{
		UserID:                userID,
		TotalPoints:           state.TotalPoints,
		Level:                 rules.Level(state.TotalPoints),
		LevelProgress:         rules.LevelProgress(state.TotalPoints),
		NextLevelPoints:       rules.NextLevelPoints(state.TotalPoints),
		CurrentStreak:         effectiveStreak(state, now),
		EarnedAchievements:    make([]EarnedAchievement, 0, len(owned)),
		AvailableAchievements: make([]AvailableAchievement, 0),
		WeeklyRank:            rank,
	}
	if !state.LastActivityAt.IsZero() {
		at := state.LastActivityAt
		status.LastActivityAt = &at
	}

	have := make(map[string]bool, len(owned))
	for _, a := range owned {
		have[a.AchievementID] = true
		def := rules.Achievements[a.AchievementID]
		status.EarnedAchievements = append(status.EarnedAchievements, EarnedAchievement{
			ID:            a.AchievementID,
			Name:          def.Name,
			Description:   def.Description,
			PointsAwarded: a.PointsAwarded,
			UnlockedAt:    a.UnlockedAt,
		})
	}

	// 进度用有效连续天数，断签的用户看到的是 0
	view := *state
	view.CurrentStreakDays = status.CurrentStreak
	ac := AchievementContext{State: &view, ActionCounts: counts}
	for _, def := range rules.AchievementList() {
		if have[def.ID] {
			continue
		}
		status.AvailableAchievements = append(status.AvailableAchievements, AvailableAchievement{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			PointValue:  def.PointValue,
			Progress:    def.Progress(ac),
		})
	}
	return status, nil
}
