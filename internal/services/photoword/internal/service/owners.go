package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/store"
)

type userStore interface {
	GetOrCreateUser(ctx context.Context, r store.UserGetOrCreateRequest) (model.User, error)
}

// ownerCache resolves usernames to user ids, creating users on first sight.
type ownerCache struct {
	cache *ristretto.Cache[string, int64]
}

func newOwnerCache(maxKeys, maxCost int64) *ownerCache {
	c, err := ristretto.NewCache(&ristretto.Config[string, int64]{
		NumCounters: maxKeys * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create owner cache: %v", err))
	}

	return &ownerCache{cache: c}
}

func (oc *ownerCache) Resolve(ctx context.Context, us userStore, username string) (int64, error) {
	name := strings.TrimSpace(username)
	if id, found := oc.cache.Get(name); found {
		return id, nil
	}

	u, err := us.GetOrCreateUser(ctx, store.UserGetOrCreateRequest{Username: name})
	if err != nil {
		return 0, fmt.Errorf("get or create user: %w", err)
	}

	oc.cache.Set(name, u.ID, 1)
	return u.ID, nil
}

func (oc *ownerCache) Close() {
	oc.cache.Close()
}
