package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// Bolt keeps markers in a local bbolt file so they survive restarts.
type Bolt struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

type boltRecord struct {
	Digest    dedup.Digest `json:"digest"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewBolt(path string, ttl time.Duration) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt session store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &Bolt{db: db, ttl: ttl, now: time.Now}, nil
}

func (b *Bolt) LastDigest(ctx context.Context, sessionID string) (dedup.Digest, error) {
	var rec boltRecord
	found := false

	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(sessionID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return "", fmt.Errorf("read session marker: %w", err)
	}

	if !found || (b.ttl > 0 && b.now().Sub(rec.UpdatedAt) >= b.ttl) {
		return "", nil
	}
	return rec.Digest, nil
}

func (b *Bolt) Remember(ctx context.Context, sessionID string, d dedup.Digest) error {
	data, err := json.Marshal(boltRecord{Digest: d, UpdatedAt: b.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session marker: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(sessionID), data)
	})
	if err != nil {
		return fmt.Errorf("write session marker: %w", err)
	}
	return nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
