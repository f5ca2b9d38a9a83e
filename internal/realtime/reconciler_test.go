package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingLookup 记录按 id 查询的次数
type countingLookup struct {
	inner *repository.MemoryStore
	calls int
}

func (c *countingLookup) GetLocalityByID(ctx context.Context, id string) (*domain.Locality, error) {
	c.calls++
	return c.inner.GetLocalityByID(ctx, id)
}

func setupReconciler(t *testing.T, initial []domain.Record) (*Reconciler, *MemoryFeed, *countingLookup, *domain.Locality) {
	mem := repository.NewMemoryStore()
	centro, err := mem.EnsureLocality(context.Background(), "Centro")
	require.NoError(t, err)

	feed := NewMemoryFeed()
	lookup := &countingLookup{inner: mem}
	r := NewReconciler(feed, lookup, NewRecordList(initial), zap.NewNop())
	return r, feed, lookup, centro
}

func waitChange(t *testing.T, changes <-chan MergeResult) MergeResult {
	t.Helper()
	select {
	case res := <-changes:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for merged change")
		return MergeResult{}
	}
}

func TestReconciler_EchoReplacesDraft(t *testing.T) {
	r, feed, lookup, centro := setupReconciler(t, []domain.Record{draft()})

	changes := make(chan MergeResult, 4)
	sub, err := r.Subscribe(context.Background(), func(res MergeResult) { changes <- res })
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Equal(t, StateSubscribed, sub.State())
	assert.True(t, sub.Live())

	persisted := draft()
	persisted.ID = "rec-1"
	persisted.LocalityID = centro.ID
	persisted.LocalityName = ""
	require.NoError(t, feed.Publish(context.Background(), RecordChanged(OpInsert, persisted)))

	res := waitChange(t, changes)
	assert.Equal(t, OutcomeReplacedByKey, res.Outcome)
	assert.Equal(t, "Centro", res.Record.LocalityName)
	assert.Equal(t, 1, r.List().Len())

	// 同一事件再到一次：按 id 替换，不追加；名称来自缓存
	require.NoError(t, feed.Publish(context.Background(), RecordChanged(OpUpdate, persisted)))
	res = waitChange(t, changes)
	assert.Equal(t, OutcomeReplacedByID, res.Outcome)
	assert.Equal(t, 1, r.List().Len())
	assert.Equal(t, 1, lookup.calls)
}

func TestReconciler_IgnoresDeletes(t *testing.T) {
	r, feed, _, _ := setupReconciler(t, nil)

	changes := make(chan MergeResult, 4)
	sub, err := r.Subscribe(context.Background(), func(res MergeResult) { changes <- res })
	require.NoError(t, err)
	defer sub.Cancel()

	rec := draft()
	rec.ID = "rec-1"
	require.NoError(t, feed.Publish(context.Background(), RecordChanged(OpDelete, rec)))
	require.NoError(t, feed.Publish(context.Background(), RecordChanged(OpInsert, rec)))

	res := waitChange(t, changes)
	assert.Equal(t, OutcomeAppended, res.Outcome)
	assert.Equal(t, 1, r.List().Len())
}

func TestReconciler_SingleSubscription(t *testing.T) {
	r, _, _, _ := setupReconciler(t, nil)

	sub, err := r.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	_, err = r.Subscribe(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrAlreadySubscribed))

	sub.Cancel()
	assert.Equal(t, StateUnsubscribed, sub.State())

	again, err := r.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	again.Cancel()
}

func TestReconciler_CancelIdempotentAndReleasesChannel(t *testing.T) {
	r, feed, _, _ := setupReconciler(t, nil)

	sub, err := r.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.OpenChannels())

	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit")
	}
	assert.Equal(t, 0, feed.OpenChannels())
	assert.NoError(t, sub.Err())
}

func TestReconciler_ChannelFailure(t *testing.T) {
	r, feed, _, _ := setupReconciler(t, []domain.Record{draft()})

	sub, err := r.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	feed.Drop(errors.New("connection reset by peer"))
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit")
	}

	assert.Equal(t, StateFailed, sub.State())
	assert.False(t, sub.Live())
	assert.Error(t, sub.Err())
	assert.Equal(t, 1, r.List().Len(), "held records are untouched")

	// 失败后取消不报错，且可以重新订阅
	sub.Cancel()
	assert.Equal(t, StateUnsubscribed, sub.State())
	again, err := r.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	again.Cancel()
}

func TestReconciler_OpenFailure(t *testing.T) {
	r, feed, _, _ := setupReconciler(t, nil)
	feed.FailOpen(errors.New("broker unreachable"))

	sub, err := r.Subscribe(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, StateFailed, r.Current().State())

	feed.FailOpen(nil)
	sub, err = r.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	sub.Cancel()
}

func TestReconciler_ContextCancelUnsubscribes(t *testing.T) {
	r, _, _, _ := setupReconciler(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := r.Subscribe(ctx, nil)
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit")
	}
	assert.Equal(t, StateUnsubscribed, sub.State())
}
