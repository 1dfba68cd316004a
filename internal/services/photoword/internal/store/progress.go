package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

// UpsertProgress records the learning status of one of the owner's
// vocabulary entries.
func (s *SQLStore) UpsertProgress(ctx context.Context, r ProgressUpsertRequest) (model.Progress, error) {
	var p model.Progress

	err := s.atomically(ctx, func(tx *SQLStore) error {
		row := tx.q.QueryRowContext(ctx,
			"SELECT id FROM vocabulary_entries WHERE id = $1 AND user_id = $2", r.VocabularyID, r.OwnerID)

		var vid int64
		if err := row.Scan(&vid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return storageErr("query vocabulary", err)
		}

		reviewed := tx.timestamp()
		row = tx.q.QueryRowContext(ctx,
			`INSERT INTO learning_progress (user_id, vocabulary_id, status, last_reviewed)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, vocabulary_id)
			DO UPDATE SET status = excluded.status, last_reviewed = excluded.last_reviewed
			RETURNING id`,
			r.OwnerID, r.VocabularyID, string(r.Status), reviewed)

		var id int64
		if err := row.Scan(&id); err != nil {
			return storageErr("upsert progress", err)
		}

		p = model.Progress{
			ID:           id,
			OwnerID:      r.OwnerID,
			VocabularyID: r.VocabularyID,
			Status:       r.Status,
			LastReviewed: reviewed,
		}
		return nil
	})
	if err != nil {
		return model.Progress{}, err
	}

	return p, nil
}

// ListProgress returns the owner's progress records, most recently reviewed
// first. An empty status lists all of them.
func (s *SQLStore) ListProgress(ctx context.Context, r ProgressListRequest) ([]model.Progress, error) {
	query := "SELECT id, user_id, vocabulary_id, status, last_reviewed FROM learning_progress WHERE user_id = $1"
	args := []any{r.OwnerID}
	if r.Status != "" {
		query += " AND status = $2"
		args = append(args, string(r.Status))
	}
	query += " ORDER BY last_reviewed DESC, id ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list progress", err)
	}
	defer rows.Close()

	var list []model.Progress
	for rows.Next() {
		var (
			p      model.Progress
			status string
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.VocabularyID, &status, &p.LastReviewed); err != nil {
			return nil, storageErr("scan progress", err)
		}

		p.Status = model.ProgressStatus(status)
		p.LastReviewed = p.LastReviewed.UTC()
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate progress", err)
	}

	return list, nil
}
