package store

import (
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

type UserGetOrCreateRequest struct {
	Username string
}

type ImageInsertRequest struct {
	OwnerID int64
	Data    []byte
	Digest  string
}

type ImageGetRequest struct {
	OwnerID int64
	ImageID int64
}

// ImagesListRequest selects an owner's images. Nil bounds are open, an empty
// Search matches everything.
type ImagesListRequest struct {
	OwnerID int64
	From    *time.Time
	To      *time.Time
	Search  string
	Skip    int
	Limit   int
}

type VocabularyInsertRequest struct {
	OwnerID int64
	ImageID int64
	Items   []model.VocabularyItem
}

type VocabularyListRequest struct {
	OwnerID  int64
	ImageIDs []int64
}

type ProgressUpsertRequest struct {
	OwnerID      int64
	VocabularyID int64
	Status       model.ProgressStatus
}

type ProgressListRequest struct {
	OwnerID int64
	Status  model.ProgressStatus
}
