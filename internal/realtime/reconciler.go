package realtime

import (
	"context"
	"errors"
	"sync"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"
	"vetorial-dashboard/internal/repository"

	"go.uber.org/zap"
)

// ErrAlreadySubscribed 每个看板同一时刻只允许一个订阅
var ErrAlreadySubscribed = errors.New("realtime subscription already active")

// State 订阅状态
//
//	Unsubscribed -> Subscribing -> Subscribed -> Unsubscribed (Cancel)
//	Subscribing / Subscribed -> Failed -> Unsubscribed (Cancel)
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateSubscribed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateFailed:
		return "failed"
	default:
		return "unsubscribed"
	}
}

// LocalityLookup 变更通知只带 locality_id，需要按 id 查名称
type LocalityLookup interface {
	GetLocalityByID(ctx context.Context, id string) (*domain.Locality, error)
}

// Reconciler 把变更通知合并进 RecordList
type Reconciler struct {
	feed       Feed
	localities LocalityLookup
	list       *RecordList
	logger     *zap.Logger

	mu      sync.Mutex
	current *Subscription
}

func NewReconciler(feed Feed, localities LocalityLookup, list *RecordList, logger *zap.Logger) *Reconciler {
	return &Reconciler{feed: feed, localities: localities, list: list, logger: logger}
}

// List 被合并的记录列表
func (r *Reconciler) List() *RecordList {
	return r.list
}

// Current 最近一次订阅（可能已结束）
func (r *Reconciler) Current() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe 建立订阅；onChange 在事件循环中依次调用（可为 nil）
// 打开通道失败时返回错误，订阅进入 Failed，不自动重试
func (r *Reconciler) Subscribe(ctx context.Context, onChange func(MergeResult)) (*Subscription, error) {
	r.mu.Lock()
	if r.current != nil {
		switch r.current.State() {
		case StateSubscribing, StateSubscribed:
			r.mu.Unlock()
			return nil, ErrAlreadySubscribed
		}
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		state:  StateSubscribing,
		cancel: cancel,
		done:   make(chan struct{}),
		names:  map[string]string{},
	}
	r.current = sub
	r.mu.Unlock()

	ch, err := r.feed.Open(subCtx)
	if err != nil {
		r.logger.Warn("Failed to open realtime channel", zap.Error(err))
		sub.setFailed(err)
		cancel()
		close(sub.done)
		return nil, err
	}

	sub.mu.Lock()
	sub.ch = ch
	canceled := sub.state == StateUnsubscribed
	if !canceled {
		sub.state = StateSubscribed
	}
	sub.mu.Unlock()
	if canceled {
		_ = ch.Close()
		close(sub.done)
		return sub, nil
	}

	r.logger.Info("Realtime subscription established")
	go r.loop(subCtx, sub, ch, onChange)
	return sub, nil
}

func (r *Reconciler) loop(ctx context.Context, sub *Subscription, ch Channel, onChange func(MergeResult)) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			sub.Cancel()
			return
		case <-ch.Done():
			if err := ch.Err(); err != nil {
				r.logger.Warn("Realtime channel failed", zap.Error(err))
				sub.setFailed(err)
			}
			return
		case ev := <-ch.Events():
			r.handle(ctx, sub, ev, onChange)
		}
	}
}

// handle 归一化、解析辖区名、合并
// 名称解析在事件循环内串行完成，同一订阅的事件按到达顺序合并
func (r *Reconciler) handle(ctx context.Context, sub *Subscription, ev ChangeEvent, onChange func(MergeResult)) {
	if !ev.relevant() {
		return
	}

	rec := normalizer.FromRow(ev.Row, sub.names)
	if rec.LocalityName == "" && rec.LocalityID != "" {
		rec.LocalityName = r.resolveName(ctx, sub, rec.LocalityID)
	}

	// 解析期间可能已取消，丢弃事件
	if !sub.Live() {
		return
	}

	res := r.list.Apply(rec)
	r.logger.Debug("Merged record change",
		zap.String("op", string(ev.Op)),
		zap.String("record_id", rec.ID),
		zap.String("outcome", string(res.Outcome)),
	)
	if onChange != nil {
		onChange(res)
	}
}

func (r *Reconciler) resolveName(ctx context.Context, sub *Subscription, localityID string) string {
	if r.localities == nil {
		return ""
	}
	loc, err := r.localities.GetLocalityByID(ctx, localityID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("Failed to resolve locality name", zap.String("locality_id", localityID), zap.Error(err))
		}
		return ""
	}
	sub.names[localityID] = loc.Name
	return loc.Name
}

// Subscription 一个订阅
type Subscription struct {
	mu     sync.Mutex
	state  State
	err    error
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}

	// 仅事件循环访问
	names map[string]string
}

// State 当前状态
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Live 是否处于实时更新中（界面上的 “ao vivo” 指示）
func (s *Subscription) Live() bool {
	return s.State() == StateSubscribed
}

// Err 失败原因
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done 事件循环退出后关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel 取消订阅并释放通道；幂等，失败后调用同样安全
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.state == StateUnsubscribed {
		s.mu.Unlock()
		return
	}
	s.state = StateUnsubscribed
	ch := s.ch
	s.mu.Unlock()

	s.cancel()
	if ch != nil {
		_ = ch.Close()
	}
}

func (s *Subscription) setFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnsubscribed {
		return
	}
	s.state = StateFailed
	s.err = err
}
