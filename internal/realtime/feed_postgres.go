package realtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DefaultPGChannel records 表触发器 NOTIFY 的频道名
const DefaultPGChannel = "records_changes"

// PostgresFeed 基于 LISTEN/NOTIFY 的变更通知
type PostgresFeed struct {
	dsn     string
	channel string
	logger  *zap.Logger
}

func NewPostgresFeed(dsn, channel string, logger *zap.Logger) *PostgresFeed {
	if channel == "" {
		channel = DefaultPGChannel
	}
	return &PostgresFeed{dsn: dsn, channel: channel, logger: logger}
}

var _ Feed = (*PostgresFeed)(nil)

// Open 建立专用监听连接
// pq.Listener 内部会自动重连，但重连期间的通知会丢失；这里把断开视为通道失败
func (f *PostgresFeed) Open(ctx context.Context) (Channel, error) {
	var current atomic.Pointer[stream]
	listener := pq.NewListener(f.dsn, 2*time.Second, 10*time.Second,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
				f.logger.Warn("Postgres listener disconnected", zap.String("channel", f.channel), zap.Error(err))
				if s := current.Load(); s != nil {
					// 回调运行在 pq 内部 goroutine，关闭 listener 不能在这里同步进行
					go s.fail(fmt.Errorf("%w: %v", ErrChannelLost, err))
				}
			}
		})

	if err := listener.Listen(f.channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", f.channel, err)
	}

	s := newStream(64, listener.Close)
	current.Store(s)
	go f.loop(ctx, s, listener)

	f.logger.Info("Listening for record changes", zap.String("channel", f.channel))
	return s, nil
}

func (f *PostgresFeed) loop(ctx context.Context, s *stream, listener *pq.Listener) {
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				s.fail(ErrChannelLost)
				return
			}
			if n == nil {
				// 重连后 pq 发送 nil，期间的通知可能已丢失
				s.fail(ErrChannelLost)
				return
			}
			ev, err := DecodeChangeEvent([]byte(n.Extra))
			if err != nil {
				f.logger.Warn("Dropping malformed notification", zap.String("channel", n.Channel), zap.Error(err))
				continue
			}
			s.send(ev)
		}
	}
}
