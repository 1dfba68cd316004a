package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

// GetOrCreateUser returns the user called r.Username, creating it first if it
// does not exist yet.
func (s *SQLStore) GetOrCreateUser(ctx context.Context, r UserGetOrCreateRequest) (model.User, error) {
	name := strings.TrimSpace(r.Username)
	if name == "" {
		return model.User{}, fmt.Errorf("empty username")
	}

	u, err := s.getUser(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.User{}, err
	}

	created := s.timestamp()
	row := s.q.QueryRowContext(ctx, "INSERT INTO users (username, created_at) VALUES ($1, $2) RETURNING id", name, created)

	var id int64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			// created concurrently
			return s.getUser(ctx, name)
		}
		return model.User{}, storageErr("create user", err)
	}

	return model.User{ID: id, Username: name, CreatedAt: created}, nil
}

func (s *SQLStore) getUser(ctx context.Context, name string) (model.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT id, username, created_at FROM users WHERE username = $1", name)

	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, storageErr("query user", err)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
