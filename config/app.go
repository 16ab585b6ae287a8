package config

type App struct {
	Env      string `json:"env" yaml:"env"`
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`
	// NodeID 雪花算法节点号，多实例部署时必须唯一
	NodeID int64 `json:"node_id" yaml:"node_id"`
}
