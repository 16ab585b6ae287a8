package handler

import (
	"Swan/models"
	"Swan/pkg/response"
	"Swan/service"
	"Swan/types"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats struct {
	stats   types.UsageStats
	summary types.EngagementSummary
}

func (f fixedStats) GetUsageStats(context.Context, string, string) (*types.UsageStats, error) {
	s := f.stats
	return &s, nil
}

func (f fixedStats) EngagementSummary(context.Context, string, int) (*types.EngagementSummary, error) {
	s := f.summary
	return &s, nil
}

func TestProcessAction_AwardsAndUnlocks(t *testing.T) {
	app := newTestApp(t, nil)
	tk := token(t, "user-1", "")

	var resp ProcessActionResp
	status, body := app.do(t, http.MethodPost, "/api/v1/gamification/actions", tk,
		map[string]any{"action": "workout_completed"}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 0, body.Code, body.Msg)

	assert.True(t, resp.Ethics.Approved)
	require.NotNil(t, resp.Award)
	assert.True(t, resp.Award.Success)
	assert.GreaterOrEqual(t, resp.Award.PointsAwarded, int64(100))
	assert.Contains(t, resp.Award.NewlyUnlockedAchievements, "first_workout")

	var balance struct {
		Balance int64 `json:"balance"`
	}
	_, body = app.do(t, http.MethodGet, "/api/v1/gamification/balance", tk, nil, &balance)
	require.Equal(t, 0, body.Code)
	assert.Equal(t, resp.Award.TotalPoints, balance.Balance)

	var records types.ListPointsRecord
	_, body = app.do(t, http.MethodGet, "/api/v1/gamification/transactions?limit=1", tk, nil, &records)
	require.Equal(t, 0, body.Code)
	require.Len(t, records.Records, 1)
	assert.True(t, records.HasMore)
	assert.Equal(t, "achievement_unlocked:first_workout", records.Records[0].Reason)
}

func TestProcessAction_UnknownAction(t *testing.T) {
	app := newTestApp(t, nil)

	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/actions", token(t, "user-1", ""),
		map[string]any{"action": "teleported"}, nil)
	assert.Equal(t, response.CodeInvalidParams, body.Code)
}

func TestProcessAction_MissingAction(t *testing.T) {
	app := newTestApp(t, nil)

	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/actions", token(t, "user-1", ""),
		map[string]any{"metadata": map[string]any{"formScore": 99}}, nil)
	assert.Equal(t, response.CodeInvalidParams, body.Code)
}

func TestProcessAction_RejectedByGuard(t *testing.T) {
	app := newTestApp(t, fixedStats{stats: types.UsageStats{DailyActionCount: 3}})
	tk := token(t, "user-1", "")

	var resp ProcessActionResp
	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/actions", tk,
		map[string]any{"action": "workout_completed"}, &resp)
	require.Equal(t, response.CodeEthicsRejected, body.Code)
	assert.False(t, resp.Ethics.Approved)
	assert.Equal(t, service.ReasonDailyLimitReached, resp.Ethics.ReasonCode)
	assert.Positive(t, resp.Ethics.CooldownSeconds)
	assert.Nil(t, resp.Award)

	var balance struct {
		Balance int64 `json:"balance"`
	}
	app.do(t, http.MethodGet, "/api/v1/gamification/balance", tk, nil, &balance)
	assert.Zero(t, balance.Balance)
}

func TestCheckEthics(t *testing.T) {
	app := newTestApp(t, fixedStats{stats: types.UsageStats{CurrentSessionLengthMinutes: 200}})

	var res service.EthicalCheckResult
	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/ethics/check", token(t, "user-1", ""),
		map[string]any{"action": "check_in_logged"}, &res)
	require.Equal(t, 0, body.Code)
	assert.True(t, res.Approved)
	assert.Equal(t, service.ReasonLongSessionWarning, res.ReasonCode)
	assert.Contains(t, res.Warnings, service.WarningLongSession)
}

func TestRequiresToken(t *testing.T) {
	app := newTestApp(t, nil)

	status, _ := app.do(t, http.MethodGet, "/api/v1/gamification/status", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/gamification/status", "not-a-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStatus(t *testing.T) {
	app := newTestApp(t, nil)
	tk := token(t, "user-1", "")
	app.do(t, http.MethodPost, "/api/v1/gamification/actions", tk, map[string]any{"action": "profile_updated"}, nil)

	var status service.GamificationStatus
	_, body := app.do(t, http.MethodGet, "/api/v1/gamification/status", tk, nil, &status)
	require.Equal(t, 0, body.Code, body.Msg)
	assert.Equal(t, "user-1", status.UserID)
	assert.Equal(t, 1, status.Level)
	assert.Positive(t, status.TotalPoints)
	assert.Empty(t, status.EarnedAchievements)
	assert.NotEmpty(t, status.AvailableAchievements)

	code, _ := app.do(t, http.MethodGet, "/api/v1/gamification/users/user-1/status", tk, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	_, body = app.do(t, http.MethodGet, "/api/v1/gamification/users/user-1/status", token(t, "ops", "admin"), nil, &status)
	require.Equal(t, 0, body.Code)
	assert.Equal(t, "user-1", status.UserID)
}

func TestLeaderboard(t *testing.T) {
	app := newTestApp(t, nil)
	for _, uid := range []string{"a", "b"} {
		app.do(t, http.MethodPost, "/api/v1/gamification/actions", token(t, uid, ""), map[string]any{"action": "goal_achieved"}, nil)
	}
	app.do(t, http.MethodPost, "/api/v1/gamification/actions", token(t, "b", ""), map[string]any{"action": "profile_updated"}, nil)

	var board service.LeaderboardResult
	_, body := app.do(t, http.MethodGet, "/api/v1/gamification/leaderboard?timeframe=all_time", token(t, "a", ""), nil, &board)
	require.Equal(t, 0, body.Code, body.Msg)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "b", board.Entries[0].UserID)
	require.NotNil(t, board.UserRank)
	assert.Equal(t, 2, board.UserRank.Rank)

	_, body = app.do(t, http.MethodGet, "/api/v1/gamification/leaderboard?timeframe=yearly", token(t, "a", ""), nil, nil)
	assert.Equal(t, response.CodeInvalidParams, body.Code)
}

func TestCheckAchievements_IgnoresClientInput(t *testing.T) {
	app := newTestApp(t, nil)
	tk := token(t, "user-1", "")

	var res struct {
		IDs []string `json:"newly_unlocked_achievements"`
	}
	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/achievements/check", tk,
		map[string]any{"action": "form_improvement", "metadata": map[string]any{"formScore": 99}}, &res)
	require.Equal(t, 0, body.Code, body.Msg)
	assert.Empty(t, res.IDs)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	app.do(t, http.MethodPost, "/api/v1/gamification/actions", token(t, "user-1", ""), map[string]any{"action": "check_in_logged"}, nil)

	var health service.SystemHealth
	_, body := app.do(t, http.MethodGet, "/api/v1/gamification/health", "", nil, &health)
	require.Equal(t, 0, body.Code, body.Msg)
	assert.Equal(t, int64(1), health.ActiveUsers)
	assert.False(t, health.CacheEnabled)
}

func TestEngagementHealth(t *testing.T) {
	for _, c := range []struct {
		name    string
		summary types.EngagementSummary
		healthy bool
	}{
		{"healthy", types.EngagementSummary{Days: 7, Sessions: 3, AvgSessionMinutes: 40, AvgDailyActions: 12}, true},
		{"unhealthy", types.EngagementSummary{Days: 7, Sessions: 3, AvgSessionMinutes: 240, AvgDailyActions: 12}, false},
	} {
		t.Run(c.name, func(t *testing.T) {
			app := newTestApp(t, fixedStats{summary: c.summary})

			var health service.EngagementHealth
			_, body := app.do(t, http.MethodGet, "/api/v1/gamification/ethics/health", token(t, "user-1", ""), nil, &health)
			require.Equal(t, 0, body.Code, body.Msg)
			assert.Equal(t, "user-1", health.UserID)
			assert.Equal(t, c.healthy, health.Healthy)
			assert.Equal(t, c.summary, health.Metrics)
			if c.healthy {
				assert.Empty(t, health.Recommendations)
			} else {
				assert.Equal(t, []string{service.RecommendTakeBreaks}, health.Recommendations)
			}
		})
	}

	app := newTestApp(t, nil)
	status, _ := app.do(t, http.MethodGet, "/api/v1/gamification/ethics/health", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProcessAction_RefreshesSessionActivity(t *testing.T) {
	app := newTestApp(t, nil)
	tk := token(t, "user-1", "")

	var sess types.SessionResp
	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/sessions", tk, nil, &sess)
	require.Equal(t, 0, body.Code, body.Msg)

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, app.db.Model(&models.UserSession{}).
		Where("id = ?", sess.SessionID).
		Update("last_seen_at", stale).Error)

	_, body = app.do(t, http.MethodPost, "/api/v1/gamification/actions", tk,
		map[string]any{"action": "profile_updated"}, nil)
	require.Equal(t, 0, body.Code, body.Msg)

	var got models.UserSession
	require.NoError(t, app.db.Where("id = ?", sess.SessionID).First(&got).Error)
	assert.True(t, got.LastSeenAt.After(stale.Add(30*time.Minute)))
}
