package dao

import (
	"Swan/models"
	"Swan/types"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger 积分流水 + 用户状态 + 成就解锁的持久层
type Ledger struct {
	Repo[models.PointTransaction]
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		Repo: NewRepo[models.PointTransaction](db),
	}
}

// AppendTransaction 写流水并原子累加余额，流水和余额在同一事务里，不会出现只成功一半
func (l *Ledger) AppendTransaction(ctx context.Context, req types.LedgerAppend) (*models.UserGamificationState, error) {
	var state *models.UserGamificationState
	err := l.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		state, err = appendTx(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// UnlockAchievement 条件插入解锁记录，唯一键冲突说明已解锁过，返回 false 且不发奖励
func (l *Ledger) UnlockAchievement(ctx context.Context, req types.LedgerUnlock) (bool, *models.UserGamificationState, error) {
	var (
		inserted bool
		state    *models.UserGamificationState
	)
	err := l.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).Create(req.Unlock)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		var err error
		state, err = appendTx(tx, req.Append)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return inserted, state, nil
}

func appendTx(tx *gorm.DB, req types.LedgerAppend) (*models.UserGamificationState, error) {
	txn := req.Transaction
	if txn == nil || txn.UserID == "" {
		return nil, errors.New("ledger: empty transaction")
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}

	activity := time.UnixMilli(txn.OccurredAt)
	incr := func() (int64, error) {
		res := tx.Model(&models.UserGamificationState{}).
			Where("user_id = ?", txn.UserID).
			Updates(map[string]any{
				// gorm.Expr 保证并发下的原子累加
				"total_points":     gorm.Expr("total_points + ?", txn.PointsDelta),
				"last_activity_at": activity,
			})
		return res.RowsAffected, res.Error
	}

	rows, err := incr()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// 首次入账：先建空账户（并发建户冲突时忽略），再走一次原子累加
		fresh := &models.UserGamificationState{UserID: txn.UserID, Level: 1, LastActivityAt: activity}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(fresh).Error; err != nil {
			return nil, err
		}
		if rows, err = incr(); err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, errors.New("ledger: state row missing after create")
		}
	}

	var state models.UserGamificationState
	if err := tx.Where("user_id = ?", txn.UserID).First(&state).Error; err != nil {
		return nil, err
	}

	if req.StreakDay != "" && state.LastStreakDay != req.StreakDay {
		if state.LastStreakDay != "" && state.LastStreakDay == req.Yesterday {
			state.CurrentStreakDays++
		} else {
			state.CurrentStreakDays = 1
		}
		state.LastStreakDay = req.StreakDay
	}
	if req.Level != nil {
		state.Level = req.Level(state.TotalPoints)
	}

	err = tx.Model(&models.UserGamificationState{}).
		Where("user_id = ?", txn.UserID).
		Updates(map[string]any{
			"level":               state.Level,
			"current_streak_days": state.CurrentStreakDays,
			"last_streak_day":     state.LastStreakDay,
		}).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetState 用户不存在时返回 nil, nil
func (l *Ledger) GetState(ctx context.Context, userID string) (*models.UserGamificationState, error) {
	var state models.UserGamificationState
	err := l.Db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ActionCounts 按 reason_code 统计流水条数
func (l *Ledger) ActionCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []struct {
		ReasonCode string
		Total      int64
	}
	err := l.Db.WithContext(ctx).Model(&models.PointTransaction{}).
		Select("reason_code, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("reason_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ReasonCode] = r.Total
	}
	return counts, nil
}

func (l *Ledger) UnlockedAchievements(ctx context.Context, userID string) ([]models.UnlockedAchievement, error) {
	var items []models.UnlockedAchievement
	err := l.Db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

type leaderboardRow struct {
	UserID string
	Points int64
	LastAt int64
}

func (l *Ledger) windowQuery(ctx context.Context, window types.LeaderboardWindow, category string) *gorm.DB {
	q := l.Db.WithContext(ctx).Model(&models.PointTransaction{}).
		Select("user_id, SUM(points_delta) AS points, MAX(occurred_at) AS last_at").
		Where("occurred_at >= ?", window.Start.UnixMilli())
	if !window.End.IsZero() {
		q = q.Where("occurred_at < ?", window.End.UnixMilli())
	}
	if category != "" && category != "overall" {
		q = q.Where("category = ?", category)
	}
	return q.Group("user_id")
}

// Leaderboard 窗口内积分聚合，同分时先到达者在前；limit <= 0 返回整个榜单
func (l *Ledger) Leaderboard(ctx context.Context, window types.LeaderboardWindow, category string, limit int) ([]types.LeaderboardEntry, error) {
	var rows []leaderboardRow
	q := l.windowQuery(ctx, window, category).
		Order("points DESC, last_at ASC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]types.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, types.LeaderboardEntry{
			Rank:           i + 1,
			UserID:         r.UserID,
			Points:         r.Points,
			LastActivityAt: time.UnixMilli(r.LastAt),
		})
	}
	return entries, nil
}

// LeaderboardRank 用户在窗口内没有积分时返回 nil, nil
func (l *Ledger) LeaderboardRank(ctx context.Context, window types.LeaderboardWindow, category, userID string) (*types.LeaderboardEntry, error) {
	var mine []leaderboardRow
	err := l.windowQuery(ctx, window, category).
		Where("user_id = ?", userID).
		Scan(&mine).Error
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, nil
	}
	me := mine[0]

	var ahead int64
	err = l.Db.WithContext(ctx).
		Table("(?) AS board", l.windowQuery(ctx, window, category)).
		Where("board.points > ? OR (board.points = ? AND (board.last_at < ? OR (board.last_at = ? AND board.user_id < ?)))",
			me.Points, me.Points, me.LastAt, me.LastAt, me.UserID).
		Count(&ahead).Error
	if err != nil {
		return nil, err
	}

	return &types.LeaderboardEntry{
		Rank:           int(ahead) + 1,
		UserID:         me.UserID,
		Points:         me.Points,
		LastActivityAt: time.UnixMilli(me.LastAt),
	}, nil
}

// ListTransactions 游标分页，cursor 为上一页最后一条的 ID
func (l *Ledger) ListTransactions(ctx context.Context, userID string, cursor int64, limit int) ([]models.PointTransaction, error) {
	var items []models.PointTransaction
	query := l.Db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}
	err := query.Order("id DESC").Limit(limit).Find(&items).Error
	return items, err
}

// ResetStaleStreaks 最后打卡日早于 before 的连续天数清零
func (l *Ledger) ResetStaleStreaks(ctx context.Context, before string) (int64, error) {
	res := l.Db.WithContext(ctx).Model(&models.UserGamificationState{}).
		Where("current_streak_days > 0 AND last_streak_day < ?", before).
		Update("current_streak_days", 0)
	return res.RowsAffected, res.Error
}

// Overview since 之后的活跃统计
func (l *Ledger) Overview(ctx context.Context, since time.Time) (*types.LedgerOverview, error) {
	var out types.LedgerOverview
	db := l.Db.WithContext(ctx)

	var agg struct {
		ActiveUsers int64
		Total       int64
	}
	err := db.Model(&models.PointTransaction{}).
		Select("COUNT(DISTINCT user_id) AS active_users, COALESCE(SUM(points_delta), 0) AS total").
		Where("occurred_at >= ?", since.UnixMilli()).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	out.ActiveUsers = agg.ActiveUsers
	out.TotalPointsAwarded = agg.Total

	if err := db.Model(&models.UnlockedAchievement{}).
		Where("unlocked_at >= ?", since.UTC()).
		Count(&out.AchievementsUnlocked).Error; err != nil {
		return nil, err
	}

	var avg struct{ Streak float64 }
	err = db.Model(&models.UserGamificationState{}).
		Select("COALESCE(AVG(current_streak_days), 0) AS streak").
		Where("current_streak_days > 0").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	out.AverageStreak = avg.Streak
	return &out, nil
}
