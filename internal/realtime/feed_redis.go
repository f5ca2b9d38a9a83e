package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscommon "vetorial-dashboard/internal/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultStream 记录变更所在的 Redis Stream
const DefaultStream = "vetorial:records:changes"

// RedisStreamFeed 基于 Redis Streams 的变更通知
// 每个通道从订阅时的最新 ID 开始 XREAD，不使用消费者组（不同看板实例互不分流）
type RedisStreamFeed struct {
	client *redis.Client
	stream string
	block  time.Duration
	logger *zap.Logger
}

func NewRedisStreamFeed(client *redis.Client, stream string, logger *zap.Logger) *RedisStreamFeed {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamFeed{client: client, stream: stream, block: time.Second, logger: logger}
}

var _ Feed = (*RedisStreamFeed)(nil)

func (f *RedisStreamFeed) Open(ctx context.Context) (Channel, error) {
	lastID, err := rediscommon.LatestStreamID(ctx, f.client, f.stream)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := newStream(64, func() error {
		cancel()
		return nil
	})
	go f.loop(loopCtx, s, lastID)

	f.logger.Info("Reading record changes from stream",
		zap.String("stream", f.stream),
		zap.String("last_id", lastID),
	)
	return s, nil
}

func (f *RedisStreamFeed) loop(ctx context.Context, s *stream, lastID string) {
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.Done():
			return
		default:
		}

		messages, err := rediscommon.ReadStreamSince(ctx, f.client, f.stream, lastID, 100, f.block)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				_ = s.Close()
				return
			}
			f.logger.Warn("Stream read failed", zap.String("stream", f.stream), zap.Error(err))
			s.fail(fmt.Errorf("%w: %v", ErrChannelLost, err))
			return
		}

		for _, msg := range messages {
			lastID = msg.ID
			data, _ := msg.Values["data"].(string)
			ev, err := DecodeChangeEvent([]byte(data))
			if err != nil {
				f.logger.Warn("Dropping malformed stream message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				continue
			}
			if !s.send(ev) {
				return
			}
		}
	}
}
