package store

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	testdb "github.com/hiroshi75/photoword/internal/pkg/test/db"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var (
	pgOnce   sync.Once
	pgDSN    string
	pgErr    error
	pgCloser func()
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgCloser != nil {
		pgCloser()
	}
	os.Exit(code)
}

// newPostgresStore returns a store over a freshly truncated database in a
// shared container. The test is skipped when no container runtime is usable.
func newPostgresStore(t *testing.T, clock *testClock) (*SQLStore, *sql.DB) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var resp testdb.PostgresStartResponse
		resp, pgCloser, pgErr = testdb.StartPostgres(ctx, testdb.PostgresStartRequest{
			User:     "photoword",
			Password: "photoword",
			DB:       "photoword",
		})
		if pgErr != nil {
			return
		}
		pgDSN = resp.DSN

		conn, err := OpenPostgres(pgDSN)
		if err != nil {
			pgErr = err
			return
		}
		defer conn.Close()

		pgErr = Migrate(conn, Postgres)
	})
	if pgErr != nil {
		t.Skipf("postgres unavailable: %v", pgErr)
	}

	conn, err := OpenPostgres(pgDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec("TRUNCATE learning_progress, vocabulary_entries, images, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return New(conn, WithClock(clock.Now)), conn
}
