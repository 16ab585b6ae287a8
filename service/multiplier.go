package service

import (
	"Swan/models"
	"time"

	"github.com/shopspring/decimal"
)

var (
	multiplierCap = decimal.NewFromInt(3)
	morningBonus  = decimal.RequireFromString("0.1")

	streakBonuses = []struct {
		days  int
		bonus decimal.Decimal
	}{
		{7, decimal.RequireFromString("0.2")},
		{14, decimal.RequireFromString("0.3")},
		{30, decimal.RequireFromString("0.5")},
	}
)

// Multiplier 连续打卡档位累加，早起(本地 5-8 点)再加 0.1，乘以分类系数后封顶 3.0
func Multiplier(streakDays int, streakEligible bool, localHour int, category decimal.Decimal) decimal.Decimal {
	m := decimal.NewFromInt(1)
	if streakEligible {
		for _, b := range streakBonuses {
			if streakDays >= b.days {
				m = m.Add(b.bonus)
			}
		}
	}
	if localHour >= 5 && localHour <= 8 {
		m = m.Add(morningBonus)
	}
	m = m.Mul(category)
	if m.GreaterThan(multiplierCap) {
		m = multiplierCap
	}
	return m
}

// FinalPoints 四舍五入（远离零）
func FinalPoints(base int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(multiplier).Round(0).IntPart()
}

// effectiveStreak 断签（最后打卡日早于昨天）按 0 计
func effectiveStreak(state *models.UserGamificationState, now time.Time) int {
	if state == nil || state.CurrentStreakDays == 0 {
		return 0
	}
	today := now.Format(dayLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dayLayout)
	if state.LastStreakDay == today || state.LastStreakDay == yesterday {
		return state.CurrentStreakDays
	}
	return 0
}

const dayLayout = "2006-01-02"
