package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	testdb "github.com/hiroshi75/photoword/internal/pkg/test/db"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var (
	redisOnce   sync.Once
	redisAddr   string
	redisErr    error
	redisCloser func()
)

func TestMain(m *testing.M) {
	code := m.Run()
	if redisCloser != nil {
		redisCloser()
	}
	os.Exit(code)
}

func startRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		redisAddr, redisCloser, redisErr = testdb.StartRedis(ctx)
	})
	if redisErr != nil {
		t.Skipf("redis unavailable: %v", redisErr)
	}

	return redisAddr
}

func TestRedis(t *testing.T) {
	r := NewRedis(RedisConfig{Addr: startRedis(t), TTL: 30 * time.Second})
	defer r.Close()

	require.NoError(t, r.Ping(context.Background()))
	testStoreContract(t, r)
}

func TestRedis_Expires(t *testing.T) {
	r := NewRedis(RedisConfig{Addr: startRedis(t), TTL: time.Second})
	defer r.Close()

	require.NoError(t, r.Remember(context.Background(), "expiring", "abc"))
	time.Sleep(2 * time.Second)

	d, err := r.LastDigest(context.Background(), "expiring")
	require.NoError(t, err)
	assert.Equal(t, dedup.Digest(""), d)
}
