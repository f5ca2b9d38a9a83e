package realtime

import (
	"context"
	"sync"
)

// MemoryFeed 进程内变更通知（BACKEND_MODE=memory 与测试使用）
// 同时实现 Publisher：发布的事件广播给所有已打开的通道
type MemoryFeed struct {
	mu      sync.Mutex
	streams map[*stream]struct{}
	openErr error
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{streams: map[*stream]struct{}{}}
}

var (
	_ Feed      = (*MemoryFeed)(nil)
	_ Publisher = (*MemoryFeed)(nil)
)

// FailOpen 后续 Open 返回 err（nil 恢复正常）
func (f *MemoryFeed) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *MemoryFeed) Open(_ context.Context) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	var s *stream
	s = newStream(64, func() error {
		f.mu.Lock()
		delete(f.streams, s)
		f.mu.Unlock()
		return nil
	})
	f.streams[s] = struct{}{}
	return s, nil
}

func (f *MemoryFeed) snapshot() []*stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*stream, 0, len(f.streams))
	for s := range f.streams {
		out = append(out, s)
	}
	return out
}

// Publish 广播事件
func (f *MemoryFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	if ev.Table == "" {
		ev.Table = RecordsTable
	}
	for _, s := range f.snapshot() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.send(ev)
	}
	return nil
}

// Drop 以 err 结束所有已打开的通道（模拟断线）
func (f *MemoryFeed) Drop(err error) {
	for _, s := range f.snapshot() {
		s.fail(err)
	}
}

// OpenChannels 当前打开的通道数
func (f *MemoryFeed) OpenChannels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}
