package realtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"vetorial-dashboard/internal/common/config"
	"vetorial-dashboard/internal/common/mqtt"

	"go.uber.org/zap"
)

// MQTTFeed 基于 MQTT 主题的变更通知（QoS 由配置决定，不保证送达）
type MQTTFeed struct {
	cfg    config.MQTTConfig
	logger *zap.Logger
}

func NewMQTTFeed(cfg config.MQTTConfig, logger *zap.Logger) *MQTTFeed {
	return &MQTTFeed{cfg: cfg, logger: logger}
}

var _ Feed = (*MQTTFeed)(nil)

// Open 每个通道使用独立的客户端连接；ClientID 追加后缀避免与发布端冲突
func (f *MQTTFeed) Open(_ context.Context) (Channel, error) {
	cfg := f.cfg
	cfg.ClientID = cfg.ClientID + "-sub"

	var current atomic.Pointer[stream]
	client, err := mqtt.NewClient(&cfg, f.logger, func(err error) {
		if s := current.Load(); s != nil {
			go s.fail(fmt.Errorf("%w: %v", ErrChannelLost, err))
		}
	})
	if err != nil {
		return nil, err
	}

	s := newStream(64, func() error {
		err := client.Unsubscribe(cfg.Topic)
		client.Disconnect()
		return err
	})
	current.Store(s)

	err = client.Subscribe(cfg.Topic, cfg.QoS, func(topic string, payload []byte) error {
		ev, err := DecodeChangeEvent(payload)
		if err != nil {
			return err
		}
		s.send(ev)
		return nil
	})
	if err != nil {
		client.Disconnect()
		return nil, err
	}

	f.logger.Info("Subscribed to record changes", zap.String("topic", cfg.Topic))
	return s, nil
}
