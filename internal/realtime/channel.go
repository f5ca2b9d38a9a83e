package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelLost 底层连接断开（不自动重连，由调用方决定是否重新订阅）
var ErrChannelLost = errors.New("realtime channel lost")

// Feed 变更通知来源（Postgres LISTEN / Redis Streams / MQTT / 内存）
type Feed interface {
	// Open 建立一个新的通道；每次调用都是全新的连接
	Open(ctx context.Context) (Channel, error)
}

// Channel 一个已建立的通知通道
type Channel interface {
	Events() <-chan ChangeEvent
	// Done 在通道失败或被关闭后关闭
	Done() <-chan struct{}
	// Err 通道结束原因；主动 Close 时为 nil
	Err() error
	// Close 幂等
	Close() error
}

// stream 各 Feed 共用的 Channel 实现
type stream struct {
	events  chan ChangeEvent
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	err     error
	onClose func() error
}

func newStream(buffer int, onClose func() error) *stream {
	return &stream{
		events:  make(chan ChangeEvent, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *stream) Events() <-chan ChangeEvent { return s.events }
func (s *stream) Done() <-chan struct{}      { return s.done }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// send 投递事件；通道已结束时返回 false
func (s *stream) send(ev ChangeEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// fail 以错误结束通道
func (s *stream) fail(err error) {
	if err == nil {
		err = ErrChannelLost
	}
	_ = s.finish(err)
}

func (s *stream) Close() error {
	return s.finish(nil)
}

func (s *stream) finish(err error) error {
	var closeErr error
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		if s.onClose != nil {
			closeErr = s.onClose()
		}
	})
	return closeErr
}
