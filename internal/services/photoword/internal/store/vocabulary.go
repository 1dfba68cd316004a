package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

// InsertVocabulary stores items for an image of the same owner in one
// transaction. Entries are returned in input order.
func (s *SQLStore) InsertVocabulary(ctx context.Context, r VocabularyInsertRequest) ([]model.VocabularyEntry, error) {
	entries := make([]model.VocabularyEntry, 0, len(r.Items))

	err := s.atomically(ctx, func(tx *SQLStore) error {
		row := tx.q.QueryRowContext(ctx, "SELECT user_id FROM images WHERE id = $1", r.ImageID)

		var owner int64
		if err := row.Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return storageErr("query image owner", err)
		}
		if owner != r.OwnerID {
			return ErrNotFound
		}

		created := tx.timestamp()
		for _, item := range r.Items {
			row := tx.q.QueryRowContext(ctx,
				`INSERT INTO vocabulary_entries
				(user_id, image_id, word, part_of_speech, translation, example_sentence, word_folded, translation_folded, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
				r.OwnerID, r.ImageID,
				item.Word, string(item.PartOfSpeech), item.Translation, item.ExampleSentence,
				strings.ToLower(item.Word), strings.ToLower(item.Translation),
				created)

			var id int64
			if err := row.Scan(&id); err != nil {
				return storageErr(fmt.Sprintf("insert vocabulary %q", item.Word), err)
			}

			entries = append(entries, model.VocabularyEntry{
				VocabularyItem: item,
				ID:             id,
				OwnerID:        r.OwnerID,
				ImageID:        r.ImageID,
				CreatedAt:      created,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ListVocabulary returns the owner's entries for the given images ordered by
// image and insertion order.
func (s *SQLStore) ListVocabulary(ctx context.Context, r VocabularyListRequest) ([]model.VocabularyEntry, error) {
	if len(r.ImageIDs) == 0 {
		return nil, nil
	}

	args := []any{r.OwnerID}
	placeholders := make([]string, 0, len(r.ImageIDs))
	for _, id := range r.ImageIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := `SELECT id, user_id, image_id, word, part_of_speech, translation, example_sentence, created_at
		FROM vocabulary_entries
		WHERE user_id = $1 AND image_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY image_id, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list vocabulary", err)
	}
	defer rows.Close()

	var entries []model.VocabularyEntry
	for rows.Next() {
		var (
			e   model.VocabularyEntry
			pos string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.ImageID, &e.Word, &pos, &e.Translation, &e.ExampleSentence, &e.CreatedAt); err != nil {
			return nil, storageErr("scan vocabulary", err)
		}

		e.PartOfSpeech = model.PartOfSpeech(pos)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate vocabulary", err)
	}

	return entries, nil
}
