package service

import (
	"Swan/dao"
	"Swan/dao/cache"
	"Swan/pkg/database"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// newTestRedis 固定 miniredis 的时钟，排行榜 key 的过期时间按测试时间计算
func newTestRedis(t *testing.T, now time.Time) (FastCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(now)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return ProvideFastCache(cache.NewGamificationCache(rdb)), mr
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestService(t *testing.T, db *gorm.DB, fast FastCache, clock *testClock) *GamificationService {
	t.Helper()
	conf := testGamificationConfig()
	s := NewGamificationService(conf, NewRulesCatalog(NewRuleLimits(conf), nil), dao.NewLedger(db), fast, nil)
	s.clock = clock.Now
	return s
}
