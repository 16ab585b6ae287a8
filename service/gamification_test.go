package service

import (
	"Swan/dao"
	"Swan/models"
	"Swan/types"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerSum(t *testing.T, s *GamificationService, userID string) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, s.Store.(*dao.Ledger).Db.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points_delta), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error)
	return sum
}

func TestAwardPoints_MorningStreakScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)}
	s := newTestService(t, db, nil, clock)

	// 已连续 7 天，week_warrior 之前已拿到
	require.NoError(t, db.Create(&models.UserGamificationState{
		UserID: "u1", Level: 1, CurrentStreakDays: 7, LastStreakDay: "2026-03-09",
	}).Error)
	require.NoError(t, db.Create(&models.UnlockedAchievement{
		UserID: "u1", AchievementID: "week_warrior", PointsAwarded: 300, UnlockedAt: clock.now.Add(-24 * time.Hour),
	}).Error)

	res, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, int64(130), res.PointsAwarded)
	assert.InDelta(t, 1.3, res.Multiplier, 1e-9)
	assert.Equal(t, []string{"first_workout"}, res.NewlyUnlockedAchievements)
	assert.Equal(t, int64(180), res.TotalPoints)
	assert.NotZero(t, res.TransactionID)

	state, err := s.Store.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(180), state.TotalPoints)
	assert.Equal(t, 8, state.CurrentStreakDays)

	counts, err := s.Store.ActionCounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["workout_completed"])
	assert.Equal(t, int64(1), counts[models.AchievementReason("first_workout")])
}

func TestAwardPoints_BrokenStreakGetsNoBonus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, db, nil, clock)

	require.NoError(t, db.Create(&models.UserGamificationState{
		UserID: "u1", Level: 1, CurrentStreakDays: 20, LastStreakDay: "2026-03-01",
	}).Error)

	res, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsAwarded)

	state, err := s.Store.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentStreakDays)
}

func TestAwardPoints_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Now()})

	_, err := s.AwardPoints(ctx, "", "workout_completed", nil)
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = s.AwardPoints(ctx, "u1", "teleported", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = s.AwardPoints(ctx, "u1", models.AchievementReason("first_workout"), nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = s.Rules.UpdateRules(RulesUpdate{CategoryMultipliers: map[string]float64{CategorySocial: 0}}, nil)
	require.NoError(t, err)
	_, err = s.AwardPoints(ctx, "u1", "social_interaction", nil)
	assert.ErrorIs(t, err, ErrInvalidPoints)
}

func TestAwardPoints_LevelUp(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := newTestService(t, db, nil, &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})

	require.NoError(t, db.Create(&models.UserGamificationState{UserID: "u1", Level: 1, TotalPoints: 450}).Error)

	res, err := s.AwardPoints(ctx, "u1", "goal_achieved", nil)
	require.NoError(t, err)
	assert.True(t, res.LevelUp)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, int64(650), res.TotalPoints)
}

type failingStore struct {
	*dao.Ledger
}

func (failingStore) AppendTransaction(context.Context, types.LedgerAppend) (*models.UserGamificationState, error) {
	return nil, errors.New("disk full")
}

func TestAwardPoints_DurableFailureIsReported(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Now()})
	s.Store = failingStore{Ledger: s.Store.(*dao.Ledger)}

	res, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disk full")
	assert.Empty(t, res.NewlyUnlockedAchievements)
}

func TestAwardPoints_BalanceMatchesLedgerUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})

	users := []string{"a", "b", "c"}
	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				res, err := s.AwardPoints(ctx, u, "social_interaction", nil)
				assert.NoError(t, err)
				assert.True(t, res.Success)
			}(u)
		}
	}
	wg.Wait()

	for _, u := range users {
		state, err := s.Store.GetState(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, ledgerSum(t, s, u), state.TotalPoints)
		assert.Equal(t, int64(50), state.TotalPoints)
	}
}

func TestCheckForAchievements_IdempotentAcrossInstances(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	// 两个实例共用一个库，模拟多进程
	s1 := newTestService(t, db, nil, clock)
	s2 := newTestService(t, db, nil, clock)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 10; i++ {
		s := s1
		if i%2 == 1 {
			s = s2
		}
		wg.Add(1)
		go func(s *GamificationService) {
			defer wg.Done()
			ids, err := s.CheckForAchievements(ctx, "u1", "workout_completed", nil)
			assert.NoError(t, err)
			mu.Lock()
			total += len(ids)
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	owned, err := s1.Store.UnlockedAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "first_workout", owned[0].AchievementID)

	state, err := s1.Store.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), state.TotalPoints)
	assert.Equal(t, ledgerSum(t, s1, "u1"), state.TotalPoints)
}

func TestCheckForAchievements_MutualReferencesTerminate(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Now()})

	_, err := s.Rules.UpdateRules(RulesUpdate{Achievements: map[string]AchievementDefinition{
		"ping": {
			Name: "Ping", PointValue: 10,
			ConditionType:   ConditionFirstActionOfType,
			ConditionParams: ConditionParams{ActionType: models.AchievementReason("pong")},
		},
		"pong": {
			Name: "Pong", PointValue: 10,
			ConditionType:   ConditionFirstActionOfType,
			ConditionParams: ConditionParams{ActionType: models.AchievementReason("ping")},
		},
	}}, nil)
	require.NoError(t, err)

	done := make(chan []string)
	go func() {
		ids, _ := s.CheckForAchievements(ctx, "u1", models.AchievementReason("pong"), nil)
		done <- ids
	}()

	select {
	case ids := <-done:
		assert.ElementsMatch(t, []string{"ping", "pong"}, ids)
	case <-time.After(10 * time.Second):
		t.Fatal("achievement evaluation did not terminate")
	}

	counts, err := s.Store.ActionCounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.AchievementReason("ping")])
	assert.Equal(t, int64(1), counts[models.AchievementReason("pong")])

	// 再次触发不会重复发奖
	ids, err := s.CheckForAchievements(ctx, "u1", models.AchievementReason("pong"), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCheckForAchievements_ChainsThroughUnlocks(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})

	_, err := s.Rules.UpdateRules(RulesUpdate{Achievements: map[string]AchievementDefinition{
		"getting_started": {
			Name: "Getting Started", PointValue: 25,
			ConditionType:   ConditionFirstActionOfType,
			ConditionParams: ConditionParams{ActionType: models.AchievementReason("first_workout")},
		},
	}}, nil)
	require.NoError(t, err)

	res, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_workout", "getting_started"}, res.NewlyUnlockedAchievements)
	assert.Equal(t, int64(175), res.TotalPoints)
}

func TestAwardPoints_MetricAchievement(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})

	res, err := s.AwardPoints(ctx, "u1", "form_improvement", map[string]any{"formScore": 97})
	require.NoError(t, err)
	assert.Equal(t, []string{"form_master"}, res.NewlyUnlockedAchievements)
	assert.Equal(t, int64(275), res.TotalPoints)
}

func TestCacheTier_DisablesAfterFirstError(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	fast, mr := newTestRedis(t, clock.now)
	s := newTestService(t, newTestDB(t), fast, clock)
	require.True(t, s.CacheEnabled())

	res, err := s.AwardPoints(ctx, "u1", "check_in_logged", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, s.CacheEnabled())
	assert.Equal(t, "15", mr.HGet("gm:user:u1:state", "total"))

	mr.SetError("LOADING redis is loading")
	res, err = s.AwardPoints(ctx, "u1", "check_in_logged", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(30), res.TotalPoints)
	assert.False(t, s.CacheEnabled())

	// 恢复后也不再访问缓存
	mr.SetError("")
	before := mr.CommandCount()
	res, err = s.AwardPoints(ctx, "u1", "check_in_logged", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, before, mr.CommandCount())
	assert.False(t, s.CacheEnabled())

	total, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), total)
	assert.Equal(t, before, mr.CommandCount())
}

func TestGetBalance_ReadThrough(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: time.Now()}
	fast, mr := newTestRedis(t, clock.now)
	s := newTestService(t, db, fast, clock)

	total, err := s.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	require.NoError(t, db.Create(&models.UserGamificationState{UserID: "u1", Level: 1, TotalPoints: 70}).Error)
	total, err = s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), total)
	assert.Equal(t, "70", mr.HGet("gm:user:u1:state", "total"))
}

func TestGetLeaderboard_WeeklyOrderAndTieBreak(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		t.Run(fmt.Sprintf("cache=%v", withCache), func(t *testing.T) {
			ctx := context.Background()
			// 2026-03-11 是周三
			clock := &testClock{now: time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)}
			var fast FastCache
			if withCache {
				fast, _ = newTestRedis(t, clock.now)
			}
			s := newTestService(t, newTestDB(t), fast, clock)

			award := func(user, action string, offset time.Duration) {
				clock.now = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC).Add(offset)
				res, err := s.AwardPoints(ctx, user, action, nil)
				require.NoError(t, err)
				require.True(t, res.Success)
			}
			// 上周的积分不进本周榜
			award("old", "goal_achieved", -3*24*time.Hour)
			award("alice", "profile_updated", 0)
			award("bob", "profile_updated", time.Minute)
			award("carol", "goal_achieved", 2*time.Minute)
			for i := 0; i < 12; i++ {
				award(fmt.Sprintf("user%02d", i), "social_interaction", time.Duration(3+i)*time.Minute)
			}
			clock.now = time.Date(2026, 3, 11, 13, 0, 0, 0, time.UTC)

			res, err := s.GetLeaderboard(ctx, LeaderboardQuery{Timeframe: TimeframeWeekly, Limit: 10, RequestingUserID: "user11"})
			require.NoError(t, err)
			assert.Equal(t, "2026-W11", res.PeriodKey)
			require.Len(t, res.Entries, 10)
			assert.Equal(t, "carol", res.Entries[0].UserID)
			assert.Equal(t, "alice", res.Entries[1].UserID)
			assert.Equal(t, "bob", res.Entries[2].UserID)
			for i := 1; i < len(res.Entries); i++ {
				assert.GreaterOrEqual(t, res.Entries[i-1].Points, res.Entries[i].Points)
				assert.Equal(t, i+1, res.Entries[i].Rank)
			}
			for _, e := range res.Entries {
				assert.NotEqual(t, "old", e.UserID)
			}

			require.NotNil(t, res.UserRank)
			assert.Equal(t, 15, res.UserRank.Rank)

			_, err = s.GetLeaderboard(ctx, LeaderboardQuery{Timeframe: "yearly"})
			assert.ErrorIs(t, err, ErrInvalidTimeframe)
		})
	}
}

func TestGetLeaderboard_CategoryAndAllTime(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, newTestDB(t), nil, clock)

	_, err := s.AwardPoints(ctx, "a", "helped_community", nil)
	require.NoError(t, err)
	_, err = s.AwardPoints(ctx, "b", "goal_achieved", nil)
	require.NoError(t, err)

	res, err := s.GetLeaderboard(ctx, LeaderboardQuery{Timeframe: TimeframeDaily, Category: CategorySocial})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "a", res.Entries[0].UserID)

	res, err = s.GetLeaderboard(ctx, LeaderboardQuery{Timeframe: TimeframeAllTime, RequestingUserID: "nobody"})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
	assert.Nil(t, res.UserRank)
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC) // 周日
	w, err := WindowFor(TimeframeWeekly, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), w.End)

	w, err = WindowFor(TimeframeMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", w.Key)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), w.End)

	w, err = WindowFor(TimeframeDaily, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", w.Key)
}

func TestGetUserGamificationStatus(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	fast, _ := newTestRedis(t, clock.now)
	s := newTestService(t, newTestDB(t), fast, clock)

	for i := 0; i < 3; i++ {
		_, err := s.AwardPoints(ctx, "u1", "helped_community", nil)
		require.NoError(t, err)
	}
	_, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)

	status, err := s.GetUserGamificationStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), status.TotalPoints)
	assert.Equal(t, 1, status.Level)
	assert.Equal(t, 60, status.LevelProgress)
	assert.Equal(t, int64(500), status.NextLevelPoints)
	assert.Equal(t, 1, status.CurrentStreak)
	require.Len(t, status.EarnedAchievements, 1)
	assert.Equal(t, "first_workout", status.EarnedAchievements[0].ID)
	assert.Len(t, status.AvailableAchievements, 4)
	for _, a := range status.AvailableAchievements {
		if a.ID == "community_helper" {
			assert.Equal(t, 30, a.Progress)
		}
	}
	require.NotNil(t, status.WeeklyRank)
	assert.Equal(t, 1, status.WeeklyRank.Rank)

	empty, err := s.GetUserGamificationStatus(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalPoints)
	assert.Equal(t, 1, empty.Level)
	assert.Len(t, empty.AvailableAchievements, 5)
	assert.Nil(t, empty.WeeklyRank)
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newTestDB(t), nil, &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})
	for i := 0; i < 3; i++ {
		_, err := s.AwardPoints(ctx, "u1", "check_in_logged", nil)
		require.NoError(t, err)
	}

	page, err := s.ListTransactions(ctx, "u1", 0, 2)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "1.00", page.Records[0].Multiplier)

	rest, err := s.ListTransactions(ctx, "u1", page.NextCursor, 2)
	require.NoError(t, err)
	assert.False(t, rest.HasMore)
	assert.Len(t, rest.Records, 1)
}

func TestResetStaleStreaksAndHealth(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	s := newTestService(t, db, nil, clock)

	_, err := s.AwardPoints(ctx, "u1", "workout_completed", nil)
	require.NoError(t, err)

	clock.now = clock.now.AddDate(0, 0, 1)
	n, err := s.ResetStaleStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	clock.now = clock.now.AddDate(0, 0, 1)
	n, err = s.ResetStaleStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	health, err := s.SystemHealth(ctx)
	require.NoError(t, err)
	assert.False(t, health.CacheEnabled)
	assert.Equal(t, int64(0), health.ActiveUsers)
}
