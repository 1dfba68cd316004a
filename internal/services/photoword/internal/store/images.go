package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

// InsertImage stores an image. Its created_at is strictly later than that of
// every earlier image of the same owner, even if the clock stalls or steps back.
func (s *SQLStore) InsertImage(ctx context.Context, r ImageInsertRequest) (model.StoredImage, error) {
	var img model.StoredImage

	err := s.atomically(ctx, func(tx *SQLStore) error {
		created, err := tx.nextImageTime(ctx, r.OwnerID)
		if err != nil {
			return err
		}

		row := tx.q.QueryRowContext(ctx,
			"INSERT INTO images (user_id, image_data, digest, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
			r.OwnerID, r.Data, r.Digest, created)

		var id int64
		if err := row.Scan(&id); err != nil {
			return storageErr("insert image", err)
		}

		img = model.StoredImage{
			ID:        id,
			OwnerID:   r.OwnerID,
			Data:      r.Data,
			Digest:    r.Digest,
			CreatedAt: created,
		}
		return nil
	})
	if err != nil {
		return model.StoredImage{}, err
	}

	return img, nil
}

func (s *SQLStore) nextImageTime(ctx context.Context, ownerID int64) (time.Time, error) {
	now := s.timestamp()

	row := s.q.QueryRowContext(ctx,
		"SELECT created_at FROM images WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1", ownerID)

	var last time.Time
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return now, nil
		}
		return time.Time{}, storageErr("query latest image", err)
	}

	if !now.After(last) {
		now = last.UTC().Add(time.Microsecond)
	}
	return now, nil
}

func (s *SQLStore) GetImage(ctx context.Context, r ImageGetRequest) (model.StoredImage, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, user_id, image_data, digest, created_at FROM images WHERE id = $1 AND user_id = $2",
		r.ImageID, r.OwnerID)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StoredImage{}, ErrNotFound
		}
		return model.StoredImage{}, storageErr("query image", err)
	}

	return img, nil
}

// ListImages returns a page of an owner's images, newest first with ties
// broken by ascending id. A search term matches images having at least one
// vocabulary entry whose word or translation contains it, ignoring case.
func (s *SQLStore) ListImages(ctx context.Context, r ImagesListRequest) ([]model.StoredImage, error) {
	var (
		sb   strings.Builder
		args []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString("SELECT i.id, i.user_id, i.image_data, i.digest, i.created_at FROM images i WHERE i.user_id = ")
	sb.WriteString(arg(r.OwnerID))

	if r.From != nil {
		sb.WriteString(" AND i.created_at >= " + arg(r.From.UTC()))
	}
	if r.To != nil {
		sb.WriteString(" AND i.created_at <= " + arg(r.To.UTC()))
	}
	if term := strings.TrimSpace(r.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		sb.WriteString(" AND EXISTS (SELECT 1 FROM vocabulary_entries v WHERE v.image_id = i.id AND (v.word_folded LIKE ")
		sb.WriteString(arg(pattern))
		sb.WriteString(` ESCAPE '\' OR v.translation_folded LIKE `)
		sb.WriteString(arg(pattern))
		sb.WriteString(` ESCAPE '\'))`)
	}

	sb.WriteString(" ORDER BY i.created_at DESC, i.id ASC")
	sb.WriteString(" LIMIT " + arg(r.Limit))
	sb.WriteString(" OFFSET " + arg(r.Skip))

	rows, err := s.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, storageErr("list images", err)
	}
	defer rows.Close()

	var images []model.StoredImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, storageErr("scan image", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate images", err)
	}

	return images, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(sc scanner) (model.StoredImage, error) {
	var img model.StoredImage
	if err := sc.Scan(&img.ID, &img.OwnerID, &img.Data, &img.Digest, &img.CreatedAt); err != nil {
		return model.StoredImage{}, err
	}

	img.CreatedAt = img.CreatedAt.UTC()
	return img, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// atomically runs fn in the current transaction or in a new one.
func (s *SQLStore) atomically(ctx context.Context, fn func(tx *SQLStore) error) error {
	return s.WithinTx(ctx, func(tx DataStore) error {
		return fn(tx.(*SQLStore))
	})
}
