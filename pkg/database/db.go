package database

import (
	"Swan/config"
	"Swan/models"
	"Swan/pkg/log"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 初始化数据库连接
func NewDB(conf *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(conf.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.L.Error("failed to connect database", zap.String("driver", conf.Database.Driver), zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(conf.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(conf.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)

	log.L.Info("connect database success", zap.String("driver", conf.Database.Driver))
	return db, nil
}

func dialectorFor(conf *config.Database) (gorm.Dialector, error) {
	switch conf.Driver {
	case config.DriverMySQL:
		return mysql.Open(conf.Dsn()), nil
	case config.DriverPostgres:
		return postgres.Open(conf.Dsn()), nil
	case config.DriverSQLite:
		return sqlite.Open(conf.Dsn()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
}

// Migrate 建表，积分流水、用户积分状态、成就解锁、会话
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PointTransaction{},
		&models.UserGamificationState{},
		&models.UnlockedAchievement{},
		&models.UserSession{},
	)
}
