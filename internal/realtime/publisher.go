package realtime

import (
	"context"
	"fmt"

	"vetorial-dashboard/internal/common/mqtt"
	rediscommon "vetorial-dashboard/internal/common/redis"
	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"

	"github.com/go-redis/redis/v8"
)

// Publisher 提交记录后发布变更（Redis / MQTT 桥接）
// Postgres 模式下由表触发器 NOTIFY，使用 NoopPublisher
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// RecordChanged 由持久化后的记录构造变更事件（只携带 locality_id，与触发器一致）
func RecordChanged(op Op, rec domain.Record) ChangeEvent {
	return ChangeEvent{Op: op, Table: RecordsTable, Row: normalizer.ToRow(rec)}
}

// NoopPublisher 不发布
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

// RedisStreamPublisher XADD 到变更 stream（data 字段为 JSON）
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{client: client, stream: stream}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	if ev.Table == "" {
		ev.Table = RecordsTable
	}
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, ev); err != nil {
		return fmt.Errorf("failed to publish change to stream %s: %w", p.stream, err)
	}
	return nil
}

// MQTTPublisher 发布到变更主题
type MQTTPublisher struct {
	client *mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTPublisher(client *mqtt.Client, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

func (p *MQTTPublisher) Publish(_ context.Context, ev ChangeEvent) error {
	payload, err := EncodeChangeEvent(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	return p.client.Publish(p.topic, p.qos, false, payload)
}

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*RedisStreamPublisher)(nil)
	_ Publisher = (*MQTTPublisher)(nil)
)
