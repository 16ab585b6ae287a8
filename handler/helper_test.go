package handler

import (
	"Swan/config"
	"Swan/dao"
	"Swan/pkg/database"
	"Swan/pkg/jwt"
	"Swan/pkg/response"
	"Swan/service"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

type testApp struct {
	engine  *gin.Engine
	catalog *service.RulesCatalog
	db      *gorm.DB
}

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

// newTestApp 组装和线上一致的路由；stats 为空时使用数据库统计
func newTestApp(t *testing.T, stats service.UsageStatsProvider) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conf, err := config.Parse([]byte("jwt:\n  secret: " + testSecret + "\ngamification:\n  timezone: UTC\n"))
	require.NoError(t, err)

	db := newTestDB(t)
	sessions := dao.NewUserSessionDAO(db)
	if stats == nil {
		stats = dao.NewUsageStats(db, sessions, conf.Gamification)
	}
	catalog := service.NewRulesCatalog(service.NewRuleLimits(conf.Gamification), nil)
	svc := service.NewGamificationService(conf.Gamification, catalog, dao.NewLedger(db), nil, nil)
	guard := service.NewEthicalGuard(conf.Gamification, stats)
	sessionService := &service.SessionService{Sessions: sessions}

	r := gin.New()
	api := r.Group("/api")
	(&Gamification{Config: conf, Service: svc, Guard: guard, Sessions: sessionService}).RegisterRouter(api)
	(&Point{Config: conf, Service: svc}).RegisterRouter(api)
	(&Rules{Config: conf, Catalog: catalog}).RegisterRouter(api)
	(&Session{Config: conf, SessionService: sessionService}).RegisterRouter(api)
	return &testApp{engine: r, catalog: catalog, db: db}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tk, err := jwt.GenerateToken([]byte(testSecret), userID, role, jwt.TypeAccess, time.Hour)
	require.NoError(t, err)
	return tk
}

// do 发请求并解出统一响应体，data 解到 out
func (a *testApp) do(t *testing.T, method, path, tk string, body any, out any) (int, response.Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tk != "" {
		req.Header.Set("Authorization", "Bearer "+tk)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var resp struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return rec.Code, resp.Response
}
