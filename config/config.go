package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置信息
type Config struct {
	App          *App            `json:"app" yaml:"app"`
	Redis        *Redis          `json:"redis" yaml:"redis"`
	Database     *Database       `json:"database" yaml:"database"`
	Jwt          *Jwt            `json:"jwt" yaml:"jwt"`
	Server       *Server         `json:"server" yaml:"server"`
	RocketMQ     *RocketMQConfig `json:"rocketmq" yaml:"rocketmq"`
	Gamification *Gamification   `json:"gamification" yaml:"gamification"`
}

type Server struct {
	Http int `json:"http" yaml:"http"`
}

func New(filename string) *Config {
	content, err := os.ReadFile(filename)
	if err != nil {
		panic(err)
	}

	conf, err := Parse(content)
	if err != nil {
		panic(fmt.Sprintf("parse %s: %v", filename, err))
	}
	if err := conf.ApplyEnv(); err != nil {
		panic(fmt.Sprintf("apply env overrides: %v", err))
	}
	return conf
}

// Parse decodes a YAML document and fills every section that was left out
// with its defaults.
func Parse(content []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(content, &conf); err != nil {
		return nil, err
	}
	conf.setDefaults()
	return &conf, nil
}

func (c *Config) setDefaults() {
	if c.App == nil {
		c.App = &App{Env: "dev"}
	}
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.Http == 0 {
		c.Server.Http = 8080
	}
	if c.Database == nil {
		c.Database = &Database{}
	}
	c.Database.setDefaults()
	if c.Redis == nil {
		c.Redis = &Redis{}
	}
	if c.Jwt == nil {
		c.Jwt = &Jwt{}
	}
	if c.Gamification == nil {
		c.Gamification = &Gamification{}
	}
	c.Gamification.setDefaults()
}

// Debug 调试模式
func (c *Config) Debug() bool {
	return c.App.Debug
}
