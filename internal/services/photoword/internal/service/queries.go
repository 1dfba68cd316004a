package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hiroshi75/photoword/internal/pkg/serr"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/store"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/timeline"
)

type TimelineRequest struct {
	Owner  string
	Skip   int
	Limit  int
	Start  *timeline.DateBound
	End    *timeline.DateBound
	Search string
}

func (s *PhotoService) ListTimeline(ctx context.Context, r TimelineRequest) ([]model.TimelineEntry, error) {
	if r.Skip < 0 {
		return nil, serr.NewServiceError(nil, http.StatusBadRequest, "skip must not be negative")
	}
	if r.Limit < 0 {
		return nil, serr.NewServiceError(nil, http.StatusBadRequest, "limit must not be negative")
	}

	ownerID, err := s.ResolveOwner(ctx, r.Owner)
	if err != nil {
		return nil, err
	}

	entries, err := s.timeline.Query(ctx, timeline.Query{
		OwnerID: ownerID,
		Skip:    r.Skip,
		Limit:   r.Limit,
		Start:   r.Start,
		End:     r.End,
		Search:  r.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	return entries, nil
}

type ImageGetRequest struct {
	Owner   string
	ImageID int64
}

func (s *PhotoService) GetImage(ctx context.Context, r ImageGetRequest) (model.StoredImage, error) {
	ownerID, err := s.ResolveOwner(ctx, r.Owner)
	if err != nil {
		return model.StoredImage{}, err
	}

	img, err := s.store.GetImage(ctx, store.ImageGetRequest{OwnerID: ownerID, ImageID: r.ImageID})
	if errors.Is(err, store.ErrNotFound) {
		return model.StoredImage{}, serr.NewServiceError(err, http.StatusNotFound, "image not found").
			With("image_id", r.ImageID)
	}
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

type ProgressSetRequest struct {
	Owner        string
	VocabularyID int64
	Status       model.ProgressStatus
}

// SetProgress records the learner's status for one of their vocabulary
// entries and stamps it as reviewed now.
func (s *PhotoService) SetProgress(ctx context.Context, r ProgressSetRequest) (model.Progress, error) {
	if !r.Status.Valid() {
		return model.Progress{}, serr.NewServiceError(nil, http.StatusBadRequest, "invalid progress status %q", r.Status)
	}

	ownerID, err := s.ResolveOwner(ctx, r.Owner)
	if err != nil {
		return model.Progress{}, err
	}

	p, err := s.store.UpsertProgress(ctx, store.ProgressUpsertRequest{
		OwnerID:      ownerID,
		VocabularyID: r.VocabularyID,
		Status:       r.Status,
	})
	if errors.Is(err, store.ErrNotFound) {
		return model.Progress{}, serr.NewServiceError(err, http.StatusNotFound, "vocabulary entry not found").
			With("vocabulary_id", r.VocabularyID)
	}
	if err != nil {
		return model.Progress{}, fmt.Errorf("set progress: %w", err)
	}
	return p, nil
}

type ProgressListRequest struct {
	Owner  string
	Status model.ProgressStatus
}

func (s *PhotoService) ListProgress(ctx context.Context, r ProgressListRequest) ([]model.Progress, error) {
	if r.Status != "" && !r.Status.Valid() {
		return nil, serr.NewServiceError(nil, http.StatusBadRequest, "invalid progress status %q", r.Status)
	}

	ownerID, err := s.ResolveOwner(ctx, r.Owner)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.ListProgress(ctx, store.ProgressListRequest{OwnerID: ownerID, Status: r.Status})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return progress, nil
}
