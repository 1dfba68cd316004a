package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresStartRequest struct {
	User     string
	Password string
	DB       string
}

type PostgresStartResponse struct {
	Host string
	Port string
	DSN  string
}

// StartPostgres launches a throwaway postgres container. The returned closer
// terminates it.
func StartPostgres(ctx context.Context, cfg PostgresStartRequest) (PostgresStartResponse, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
			"POSTGRES_DB":       cfg.DB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	host, port, closer, err := start(ctx, req, "5432/tcp")
	if err != nil {
		return PostgresStartResponse{}, nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.User, cfg.Password, net.JoinHostPort(host, port), cfg.DB)

	return PostgresStartResponse{
		Host: host,
		Port: port,
		DSN:  dsn,
	}, closer, nil
}

// StartRedis launches a throwaway redis container and returns its address.
func StartRedis(ctx context.Context) (string, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:8.4-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}

	host, port, closer, err := start(ctx, req, "6379/tcp")
	if err != nil {
		return "", nil, fmt.Errorf("start redis container: %w", err)
	}

	return net.JoinHostPort(host, port), closer, nil
}

func start(ctx context.Context, req testcontainers.ContainerRequest, exposed string) (string, string, func(), error) {
	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", "", nil, err
	}

	closer := func() {
		_ = cont.Terminate(context.Background())
	}

	host, err := cont.Host(ctx)
	if err != nil {
		closer()
		return "", "", nil, fmt.Errorf("get host: %w", err)
	}

	port, err := cont.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		closer()
		return "", "", nil, fmt.Errorf("get port: %w", err)
	}

	return host, port.Port(), closer, nil
}

type dbQuery struct {
	t   *testing.T
	row *sql.Row
}

func Query(t *testing.T, db *sql.DB, query string, args ...any) *dbQuery {
	t.Helper()

	row := db.QueryRow(query, args...)
	require.NoError(t, row.Err())

	return &dbQuery{
		t:   t,
		row: row,
	}
}

func (q *dbQuery) AsInt64() int64 {
	q.t.Helper()

	var n int64
	err := q.row.Scan(&n)
	require.NoError(q.t, err)
	return n
}

func (q *dbQuery) AsString() string {
	q.t.Helper()

	var s string
	err := q.row.Scan(&s)
	require.NoError(q.t, err)
	return s
}

// Count returns the number of rows in table.
func Count(t *testing.T, db *sql.DB, table string) int64 {
	t.Helper()
	return Query(t, db, "SELECT COUNT(*) FROM "+table).AsInt64()
}
