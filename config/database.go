package config

import (
	"fmt"
	"time"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Database 持久层配置，积分流水的唯一可信来源
type Database struct {
	Driver          string        `json:"driver" yaml:"driver"`
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	Database        string        `json:"database" yaml:"database"`
	Path            string        `json:"path" yaml:"path"` // sqlite 文件路径
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

func (d *Database) setDefaults() {
	if d.Driver == "" {
		d.Driver = DriverMySQL
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 5
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func (d *Database) Dsn() string {
	switch d.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.Username, d.Password, d.Database)
	case DriverSQLite:
		return d.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.Username, d.Password, d.Host, d.Port, d.Database)
	}
}
