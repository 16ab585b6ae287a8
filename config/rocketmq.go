package config

// RocketMQConfig 可选，未配置时积分事件不对外投递
type RocketMQConfig struct {
	NameServer []string `yaml:"nameserver"`

	Producer Producer `yaml:"producer"`

	Topic string `yaml:"topic"`
}

type Producer struct {
	Group string `yaml:"group"`
	Retry int    `yaml:"retry"`
}

func ProvideRocketMQConfig(cfg *Config) *RocketMQConfig {
	return cfg.RocketMQ
}
