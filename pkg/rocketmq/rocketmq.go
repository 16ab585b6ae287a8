package rocketmq

import (
	"Swan/config"
	"Swan/pkg/log"
	"context"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"go.uber.org/zap"
)

type Rocketmq struct {
	RocketmqProducer rocketmq.Producer
	Topic            string
}

func init() {
	rlog.SetLogLevel("error")
}

// InitProducer 未配置 nameserver 时返回 nil，调用方降级为不投递
func InitProducer(cfg *config.RocketMQConfig) (*Rocketmq, func(), error) {
	if cfg == nil || len(cfg.NameServer) == 0 {
		return nil, func() {}, nil
	}

	p, err := rocketmq.NewProducer(
		producer.WithNameServer(cfg.NameServer),
		producer.WithGroupName(cfg.Producer.Group),
		producer.WithRetry(cfg.Producer.Retry),
	)
	if err != nil {
		return nil, nil, err
	}
	if err = p.Start(); err != nil {
		return nil, nil, err
	}
	log.L.Info("init producer success", zap.String("topic", cfg.Topic))

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			log.L.Warn("shutdown producer", zap.Error(err))
		}
	}
	return &Rocketmq{RocketmqProducer: p, Topic: cfg.Topic}, cleanup, nil
}

func (p *Rocketmq) SendMsg(ctx context.Context, key string, body []byte) error {
	msg := primitive.NewMessage(p.Topic, body)
	msg.WithKeys([]string{key})

	// 发送同步消息
	res, err := p.RocketmqProducer.SendSync(ctx, msg)
	if err != nil {
		return err
	}
	log.L.Debug("send message success", zap.String("msgId", res.MsgID))
	return nil
}
