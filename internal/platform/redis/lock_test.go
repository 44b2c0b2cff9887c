package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

func testLock(t *testing.T) *ArtifactLock {
	t.Helper()
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	log := logger.NewNop()
	rdb, err := NewClient(Config{Addr: addr}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewArtifactLock(rdb, log, 10*time.Second)
	l.prefix = "familytree:test:" + uuid.NewString() + ":"
	return l
}

func TestNewClient_EmptyAddrDisables(t *testing.T) {
	rdb, err := NewClient(Config{}, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestArtifactLock_Exclusive(t *testing.T) {
	l := testLock(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "R")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "R")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(ctx, "S")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := l.Lock(ctx, "R")
	require.NoError(t, err)
	again()
}

func TestArtifactLock_StaleUnlockKeepsSuccessor(t *testing.T) {
	l := testLock(t)
	l.ttl = 100 * time.Millisecond
	l.renewEvery = 0
	ctx := context.Background()

	stale, err := l.Lock(ctx, "R")
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	l.ttl = 10 * time.Second
	holder, err := l.Lock(ctx, "R")
	require.NoError(t, err)
	defer holder()

	stale()
	n, err := l.rdb.Exists(ctx, l.prefix+"R").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestArtifactLock_RenewedWhileHeld(t *testing.T) {
	l := testLock(t)
	l.ttl = 300 * time.Millisecond
	l.renewEvery = 100 * time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "R")
	require.NoError(t, err)

	// Several TTLs pass while the holder is still working.
	time.Sleep(time.Second)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "R")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	n, err := l.rdb.Exists(ctx, l.prefix+"R").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
