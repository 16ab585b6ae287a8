package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

func init() {
	node, _ = snowflake.NewNode(1)
}

// Init 按配置的节点号重建生成器，多实例部署时节点号必须不同
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

func GenID() int64 {
	mu.Lock()
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}
