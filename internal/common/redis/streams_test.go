package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLatestStreamID_EmptyStream(t *testing.T) {
	client := newTestClient(t)

	id, err := LatestStreamID(context.Background(), client, "records:changes")
	require.NoError(t, err)
	assert.Equal(t, "0-0", id)
}

func TestReadStreamSince_OnlyNewMessages(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := PublishJSONToStream(ctx, client, "records:changes", map[string]any{"type": "INSERT"})
	require.NoError(t, err)

	// 订阅起点：已有消息之后
	start, err := LatestStreamID(ctx, client, "records:changes")
	require.NoError(t, err)
	assert.NotEqual(t, "0-0", start)

	_, err = PublishToStream(ctx, client, "records:changes", map[string]interface{}{
		"data":  `{"type":"UPDATE"}`,
		"count": 3,
		"live":  true,
	})
	require.NoError(t, err)

	msgs, err := ReadStreamSince(ctx, client, "records:changes", start, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"type":"UPDATE"}`, msgs[0].Values["data"])
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "true", msgs[0].Values["live"])
}
