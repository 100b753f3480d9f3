package credential_test

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/credential"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSweeperRemovesExpiredOnStart(t *testing.T) {
	ctx := context.Background()
	store := credential.NewMemoryStore()
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SetActive(ctx, cred("old", "n1", past)))
	require.NoError(t, store.SetActive(ctx, cred("fresh", "n2", time.Now().UTC().Add(time.Hour))))

	var swept atomic.Int64
	sw := credential.NewSweeper(store, time.Hour, silentLogger(), func(n int) { swept.Add(int64(n)) })
	sw.Start(ctx)

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	sw.Stop()
	assert.Equal(t, int64(1), swept.Load())
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := credential.NewSweeper(credential.NewMemoryStore(), time.Millisecond, silentLogger(), nil)
	sw.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
