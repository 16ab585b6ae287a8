package config

import "fmt"

// Redis Redis配置信息
type Redis struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Address  string `json:"address" yaml:"address"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database int    `json:"database" yaml:"database"`
}

func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Address, r.Port)
}
