package config

import "github.com/kelseyhightower/envconfig"

// envOverrides 部署时常用的环境变量覆盖项，前缀 SWAN_
type envOverrides struct {
	Env            string `envconfig:"APP_ENV"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	HttpPort       int    `envconfig:"HTTP_PORT"`
	DatabaseDriver string `envconfig:"DATABASE_DRIVER"`
	DatabaseHost   string `envconfig:"DATABASE_HOST"`
	DatabasePort   int    `envconfig:"DATABASE_PORT"`
	DatabaseUser   string `envconfig:"DATABASE_USER"`
	DatabasePass   string `envconfig:"DATABASE_PASSWORD"`
	DatabaseName   string `envconfig:"DATABASE_NAME"`
	RedisEnabled   bool   `envconfig:"REDIS_ENABLED"`
	RedisAddress   string `envconfig:"REDIS_ADDRESS"`
	RedisPort      int    `envconfig:"REDIS_PORT"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	JwtSecret      string `envconfig:"JWT_SECRET"`
	Timezone       string `envconfig:"TIMEZONE"`
	RulesFile      string `envconfig:"RULES_FILE"`
}

// ApplyEnv 用 SWAN_* 环境变量覆盖 yaml 中的值；未设置的变量保持原值
func (c *Config) ApplyEnv() error {
	o := envOverrides{
		Env:            c.App.Env,
		LogLevel:       c.App.LogLevel,
		HttpPort:       c.Server.Http,
		DatabaseDriver: c.Database.Driver,
		DatabaseHost:   c.Database.Host,
		DatabasePort:   c.Database.Port,
		DatabaseUser:   c.Database.Username,
		DatabasePass:   c.Database.Password,
		DatabaseName:   c.Database.Database,
		RedisEnabled:   c.Redis.Enabled,
		RedisAddress:   c.Redis.Address,
		RedisPort:      c.Redis.Port,
		RedisPassword:  c.Redis.Password,
		JwtSecret:      c.Jwt.Secret,
		Timezone:       c.Gamification.Timezone,
		RulesFile:      c.Gamification.RulesFile,
	}
	if err := envconfig.Process("SWAN", &o); err != nil {
		return err
	}

	c.App.Env = o.Env
	c.App.LogLevel = o.LogLevel
	c.Server.Http = o.HttpPort
	c.Database.Driver = o.DatabaseDriver
	c.Database.Host = o.DatabaseHost
	c.Database.Port = o.DatabasePort
	c.Database.Username = o.DatabaseUser
	c.Database.Password = o.DatabasePass
	c.Database.Database = o.DatabaseName
	c.Redis.Enabled = o.RedisEnabled
	c.Redis.Address = o.RedisAddress
	c.Redis.Port = o.RedisPort
	c.Redis.Password = o.RedisPassword
	c.Jwt.Secret = o.JwtSecret
	c.Gamification.Timezone = o.Timezone
	c.Gamification.RulesFile = o.RulesFile
	return nil
}
