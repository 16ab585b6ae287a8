package service

import (
	"Swan/models"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	CategoryWorkout     = "workout"
	CategoryGoals       = "goals"
	CategoryForm        = "form"
	CategorySocial      = "social"
	CategoryEngagement  = "engagement"
	CategoryGeneral     = "general"
	CategoryAchievement = "achievement"

	achievementReasonPrefix = models.AchievementReasonPrefix
)

func DefaultRules() *Rules {
	r := &Rules{
		Actions: map[string]ActionRule{
			"workout_completed":  {Points: 100, Category: CategoryWorkout},
			"workout_streak_3":   {Points: 150, Category: CategoryWorkout},
			"workout_streak_7":   {Points: 300, Category: CategoryWorkout},
			"workout_streak_14":  {Points: 500, Category: CategoryWorkout},
			"goal_achieved":      {Points: 200, Category: CategoryGoals},
			"form_improvement":   {Points: 75, Category: CategoryForm},
			"helped_community":   {Points: 50, Category: CategorySocial},
			"profile_updated":    {Points: 25, Category: CategoryEngagement},
			"check_in_logged":    {Points: 15, Category: CategoryEngagement},
			"social_interaction": {Points: 5, Category: CategorySocial},
		},
		LevelThresholds: []int64{
			0, 500, 1000, 1750, 2750, 4000, 5500, 7250, 9250, 11500,
			14000, 17000, 20500, 24500, 29000, 34000, 40000, 47000, 55000, 64000,
			74000, 85000, 97000, 110000, 124000, 139000,
		},
		Achievements: map[string]AchievementDefinition{
			"first_workout": {
				ID:              "first_workout",
				Name:            "First Steps",
				Description:     "Complete your first workout",
				PointValue:      50,
				Category:        CategoryWorkout,
				ConditionType:   ConditionFirstActionOfType,
				ConditionParams: ConditionParams{ActionType: "workout_completed"},
			},
			"week_warrior": {
				ID:              "week_warrior",
				Name:            "Week Warrior",
				Description:     "Work out 7 days in a row",
				PointValue:      300,
				Category:        CategoryWorkout,
				ConditionType:   ConditionStreakThreshold,
				ConditionParams: ConditionParams{Days: 7},
			},
			"consistency_champion": {
				ID:              "consistency_champion",
				Name:            "Consistency Champion",
				Description:     "Work out 30 days in a row",
				PointValue:      1000,
				Category:        CategoryWorkout,
				ConditionType:   ConditionStreakThreshold,
				ConditionParams: ConditionParams{Days: 30},
			},
			"form_master": {
				ID:              "form_master",
				Name:            "Form Master",
				Description:     "Achieve a form score of 95 or higher",
				PointValue:      200,
				Category:        CategoryForm,
				ConditionType:   ConditionMetricThreshold,
				ConditionParams: ConditionParams{Metric: "formScore", Threshold: 95},
			},
			"community_helper": {
				ID:              "community_helper",
				Name:            "Community Helper",
				Description:     "Help 10 community members",
				PointValue:      150,
				Category:        CategorySocial,
				ConditionType:   ConditionCumulativeCount,
				ConditionParams: ConditionParams{ActionType: "helped_community", Count: 10},
			},
		},
		CategoryMultipliers: map[string]decimal.Decimal{
			CategoryWorkout:    decimal.NewFromInt(1),
			CategoryGoals:      decimal.NewFromInt(1),
			CategoryForm:       decimal.NewFromInt(1),
			CategorySocial:     decimal.NewFromInt(1),
			CategoryEngagement: decimal.NewFromInt(1),
		},
	}
	r.index()
	return r
}

// LoadRulesFile 读取 yaml 规则文件，格式与 PUT /rules 的请求体相同
func LoadRulesFile(path string) (*RulesUpdate, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var update RulesUpdate
	if err := yaml.Unmarshal(content, &update); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &update, nil
}
