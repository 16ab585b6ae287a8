package jobs

import (
	"Swan/config"
	"Swan/pkg/log"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StreakResetter 把断签用户的连续天数清零
type StreakResetter interface {
	ResetStaleStreaks(ctx context.Context) (int64, error)
}

// Scheduler 后台定时任务，按积分引擎配置的时区执行
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	streaks StreakResetter
}

func NewScheduler(conf *config.Gamification, streaks StreakResetter) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(conf.Location())),
		spec:    conf.StreakResetSpec,
		streaks: streaks,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.resetStreaks(ctx) }); err != nil {
		return fmt.Errorf("schedule streak reset %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.L.Info("scheduler started", zap.String("streak_reset_spec", s.spec))
	return nil
}

func (s *Scheduler) resetStreaks(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.streaks.ResetStaleStreaks(ctx)
	if err != nil {
		log.L.Error("reset stale streaks", zap.Error(err))
		return
	}
	log.L.Info("reset stale streaks", zap.Int64("users", n))
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.L.Info("scheduler stopped")
}
