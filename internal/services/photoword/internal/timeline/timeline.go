// Package timeline assembles the read model of an owner's stored photos and
// their vocabulary.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// storage precision; the last representable instant of a day
const resolution = time.Microsecond

// DateBound is one end of a date range. A DateOnly bound covers the whole
// calendar day of At in At's location.
type DateBound struct {
	At       time.Time
	DateOnly bool
}

// ParseDateBound accepts YYYY-MM-DD (interpreted in loc) or RFC 3339.
func ParseDateBound(s string, loc *time.Location) (*DateBound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	if d, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return &DateBound{At: d, DateOnly: true}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return &DateBound{At: t}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (b *DateBound) lower() *time.Time {
	if b == nil {
		return nil
	}
	t := b.At
	if b.DateOnly {
		t = startOfDay(t)
	}
	return &t
}

func (b *DateBound) upper() *time.Time {
	if b == nil {
		return nil
	}
	t := b.At
	if b.DateOnly {
		t = startOfDay(t).AddDate(0, 0, 1).Add(-resolution)
	}
	return &t
}

type Query struct {
	OwnerID int64
	Skip    int
	Limit   int
	Start   *DateBound
	End     *DateBound
	Search  string
}

type imageStore interface {
	ListImages(ctx context.Context, r store.ImagesListRequest) ([]model.StoredImage, error)
	ListVocabulary(ctx context.Context, r store.VocabularyListRequest) ([]model.VocabularyEntry, error)
}

type Engine struct {
	store imageStore
}

func NewEngine(s imageStore) *Engine {
	return &Engine{store: s}
}

// Normalize clamps paging and resolves the date bounds into the inclusive
// range used by the store.
func (q Query) Normalize() store.ImagesListRequest {
	r := store.ImagesListRequest{
		OwnerID: q.OwnerID,
		From:    q.Start.lower(),
		To:      q.End.upper(),
		Search:  strings.TrimSpace(q.Search),
		Skip:    max(q.Skip, 0),
		Limit:   q.Limit,
	}

	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}

	return r
}

// Query returns a page of timeline entries, newest first. Every entry carries
// all vocabulary of its image in insertion order, even when only some of it
// matched the search term.
func (e *Engine) Query(ctx context.Context, q Query) ([]model.TimelineEntry, error) {
	r := q.Normalize()
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return []model.TimelineEntry{}, nil
	}

	images, err := e.store.ListImages(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	entries := make([]model.TimelineEntry, 0, len(images))
	if len(images) == 0 {
		return entries, nil
	}

	imageIDs := make([]int64, 0, len(images))
	for _, img := range images {
		imageIDs = append(imageIDs, img.ID)
	}

	vocab, err := e.store.ListVocabulary(ctx, store.VocabularyListRequest{OwnerID: q.OwnerID, ImageIDs: imageIDs})
	if err != nil {
		return nil, fmt.Errorf("list vocabulary: %w", err)
	}

	byImage := make(map[int64][]model.VocabularyEntry, len(images))
	for _, v := range vocab {
		byImage[v.ImageID] = append(byImage[v.ImageID], v)
	}

	for _, img := range images {
		words := byImage[img.ID]
		if words == nil {
			words = []model.VocabularyEntry{}
		}

		entries = append(entries, model.TimelineEntry{
			ID:         img.ID,
			CreatedAt:  img.CreatedAt,
			Image:      img.Data,
			Vocabulary: words,
		})
	}

	return entries, nil
}
