package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage failure")
)

type DataStore interface {
	GetOrCreateUser(ctx context.Context, r UserGetOrCreateRequest) (model.User, error)
	InsertImage(ctx context.Context, r ImageInsertRequest) (model.StoredImage, error)
	GetImage(ctx context.Context, r ImageGetRequest) (model.StoredImage, error)
	ListImages(ctx context.Context, r ImagesListRequest) ([]model.StoredImage, error)
	InsertVocabulary(ctx context.Context, r VocabularyInsertRequest) ([]model.VocabularyEntry, error)
	ListVocabulary(ctx context.Context, r VocabularyListRequest) ([]model.VocabularyEntry, error)
	UpsertProgress(ctx context.Context, r ProgressUpsertRequest) (model.Progress, error)
	ListProgress(ctx context.Context, r ProgressListRequest) ([]model.Progress, error)
	WithinTx(ctx context.Context, fn func(tx DataStore) error) error
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements DataStore on top of PostgreSQL or SQLite. Queries only
// use syntax both dialects accept.
type SQLStore struct {
	db   *sql.DB
	q    dbtx
	inTx bool
	now  func() time.Time
}

type Option func(*SQLStore)

// WithClock replaces the time source used for created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		s.now = now
	}
}

func New(db *sql.DB, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:  db,
		q:   db,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// WithinTx runs fn in a transaction that is committed when fn returns nil and
// rolled back otherwise. Nested calls reuse the outer transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx DataStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	txStore := &SQLStore{
		db:   s.db,
		q:    tx,
		inTx: true,
		now:  s.now,
	}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, storageErr("rollback transaction", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}

	return nil
}

// timestamp returns the current time in the precision both dialects keep.
func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
