package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServer_StopReleasesInReverseOrder(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())

	var order []string
	srv.OnStop("store", func() error { order = append(order, "store"); return nil })
	srv.OnStop("cache", func() error { order = append(order, "cache"); return errors.New("already closed") })
	srv.OnStop("live", func() error { order = append(order, "live"); return nil })

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Equal(t, []string{"live", "cache", "store"}, order)
}
