package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hiroshi75/photoword/internal/pkg/serr"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/codec"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/store"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/timeline"
)

type extractor interface {
	Extract(ctx context.Context, img []byte) ([]model.VocabularyItem, error)
}

// PhotoService runs the photo to vocabulary pipeline and serves the stored
// timeline.
type PhotoService struct {
	store     store.DataStore
	extractor extractor
	timeline  *timeline.Engine
	owners    *ownerCache
	limits    codec.Limits
	logger    *slog.Logger

	ownerCacheKeys int64
	ownerCacheCost int64
}

type Option func(*PhotoService)

func WithStore(s store.DataStore) Option {
	return func(ps *PhotoService) {
		ps.store = s
	}
}

func WithExtractor(e extractor) Option {
	return func(ps *PhotoService) {
		ps.extractor = e
	}
}

func WithImageLimits(l codec.Limits) Option {
	return func(ps *PhotoService) {
		ps.limits = l
	}
}

func WithOwnerCache(maxKeys, maxCost int64) Option {
	return func(ps *PhotoService) {
		ps.ownerCacheKeys = maxKeys
		ps.ownerCacheCost = maxCost
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(ps *PhotoService) {
		ps.logger = l
	}
}

func NewPhotoService(opts ...Option) *PhotoService {
	ps := &PhotoService{
		ownerCacheKeys: 10000,
		ownerCacheCost: 10000,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(ps)
	}

	if ps.store == nil {
		panic("data store is required")
	}
	if ps.extractor == nil {
		panic("vocabulary extractor is required")
	}

	ps.timeline = timeline.NewEngine(ps.store)
	ps.owners = newOwnerCache(ps.ownerCacheKeys, ps.ownerCacheCost)
	return ps
}

func (s *PhotoService) Close() {
	s.owners.Close()
}

// ResolveOwner returns the id of the user called username, creating the user
// on first use.
func (s *PhotoService) ResolveOwner(ctx context.Context, username string) (int64, error) {
	if strings.TrimSpace(username) == "" {
		return 0, serr.NewServiceError(nil, http.StatusUnauthorized, "unknown caller")
	}

	id, err := s.owners.Resolve(ctx, s.store, username)
	if err != nil {
		return 0, fmt.Errorf("resolve owner: %w", err)
	}
	return id, nil
}

func (s *PhotoService) checkImage(img []byte) error {
	if _, err := codec.Inspect(img, s.limits); err != nil {
		switch {
		case errors.Is(err, codec.ErrTooLarge):
			return serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "image dimensions exceeded")
		case errors.Is(err, codec.ErrEmpty):
			return serr.NewServiceError(err, http.StatusBadRequest, "image is empty")
		}
		return serr.NewServiceError(err, http.StatusBadRequest, "unsupported image format").With("bytes", len(img))
	}
	return nil
}

type ExtractRequest struct {
	Image []byte
}

type ExtractResponse struct {
	Vocabulary []model.VocabularyItem
	Outcome    Outcome
	Notice     string
}

// ExtractVocabulary previews the vocabulary of a photo without storing
// anything. Extraction failures are reported through the outcome; only an
// invalid image is an error.
func (s *PhotoService) ExtractVocabulary(ctx context.Context, r ExtractRequest) (ExtractResponse, error) {
	if err := s.checkImage(r.Image); err != nil {
		return ExtractResponse{}, err
	}

	items, err := s.extractor.Extract(ctx, r.Image)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ExtractResponse{}, fmt.Errorf("extract vocabulary: %w", ctxErr)
	}

	o := outcomeOf(len(items), err)
	if o != OutcomeOK {
		items = []model.VocabularyItem{}
		s.logExtraction(ctx, o, err)
	}

	return ExtractResponse{
		Vocabulary: items,
		Outcome:    o,
		Notice:     notice(o, 0, err),
	}, nil
}

type IngestRequest struct {
	Owner      string
	Image      []byte
	LastDigest dedup.Digest
}

type SaveRequest struct {
	Owner      string
	Image      []byte
	Vocabulary []model.VocabularyItem
	LastDigest dedup.Digest
}

// IngestResponse describes the result of an ingest or save. Digest is the
// session's new last-processed marker: the photo's digest when it was stored,
// the incoming marker otherwise.
type IngestResponse struct {
	Image   model.StoredImage
	Entries []model.VocabularyEntry
	Digest  dedup.Digest
	Outcome Outcome
	Notice  string
}

func skipped(o Outcome, last dedup.Digest, err error) IngestResponse {
	return IngestResponse{
		Entries: []model.VocabularyEntry{},
		Digest:  last,
		Outcome: o,
		Notice:  notice(o, 0, err),
	}
}

// Ingest extracts the vocabulary of a photo and stores both, unless the photo
// is the one the session processed last. Photos whose extraction fails or
// finds nothing are not stored. Only storage failures and an aborted request
// are returned as errors.
func (s *PhotoService) Ingest(ctx context.Context, r IngestRequest) (IngestResponse, error) {
	if err := s.checkImage(r.Image); err != nil {
		return IngestResponse{}, err
	}

	digest := dedup.Fingerprint(r.Image)
	if !dedup.ShouldProcess(digest, r.LastDigest) {
		s.logger.InfoContext(ctx, "photo already processed", "owner", r.Owner, "digest", digest.Short())
		return skipped(OutcomeDuplicate, r.LastDigest, nil), nil
	}

	items, err := s.extractor.Extract(ctx, r.Image)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return IngestResponse{}, fmt.Errorf("ingest aborted: %w", ctxErr)
	}

	if o := outcomeOf(len(items), err); o != OutcomeOK {
		s.logExtraction(ctx, o, err)
		return skipped(o, r.LastDigest, err), nil
	}

	return s.persist(ctx, r.Owner, r.Image, digest, items)
}

// Save stores a photo with vocabulary the learner already confirmed. Items are
// validated again; the model is not called.
func (s *PhotoService) Save(ctx context.Context, r SaveRequest) (IngestResponse, error) {
	if err := s.checkImage(r.Image); err != nil {
		return IngestResponse{}, err
	}

	if len(r.Vocabulary) == 0 {
		return IngestResponse{}, serr.NewServiceError(nil, http.StatusBadRequest, "vocabulary is empty")
	}

	items := make([]model.VocabularyItem, 0, len(r.Vocabulary))
	for i, v := range r.Vocabulary {
		item, ok := v.Normalize()
		if !ok {
			return IngestResponse{}, serr.NewServiceError(nil, http.StatusBadRequest, "invalid vocabulary item %d", i).
				With("word", v.Word).
				With("part_of_speech", v.PartOfSpeech)
		}
		items = append(items, item)
	}

	digest := dedup.Fingerprint(r.Image)
	if !dedup.ShouldProcess(digest, r.LastDigest) {
		return skipped(OutcomeDuplicate, r.LastDigest, nil), nil
	}

	if err := ctx.Err(); err != nil {
		return IngestResponse{}, fmt.Errorf("save aborted: %w", err)
	}

	return s.persist(ctx, r.Owner, r.Image, digest, items)
}

func (s *PhotoService) persist(ctx context.Context, owner string, img []byte, digest dedup.Digest, items []model.VocabularyItem) (IngestResponse, error) {
	ownerID, err := s.ResolveOwner(ctx, owner)
	if err != nil {
		return IngestResponse{}, err
	}

	var resp IngestResponse
	err = s.store.WithinTx(ctx, func(tx store.DataStore) error {
		stored, err := tx.InsertImage(ctx, store.ImageInsertRequest{
			OwnerID: ownerID,
			Data:    img,
			Digest:  digest.String(),
		})
		if err != nil {
			return fmt.Errorf("save image: %w", err)
		}

		entries, err := tx.InsertVocabulary(ctx, store.VocabularyInsertRequest{
			OwnerID: ownerID,
			ImageID: stored.ID,
			Items:   items,
		})
		if err != nil {
			return fmt.Errorf("save vocabulary: %w", err)
		}

		resp = IngestResponse{
			Image:   stored,
			Entries: entries,
			Digest:  digest,
			Outcome: OutcomeOK,
			Notice:  notice(OutcomeOK, len(entries), nil),
		}
		return nil
	})
	if err != nil {
		return IngestResponse{}, fmt.Errorf("persist photo: %w", err)
	}

	s.logger.InfoContext(ctx, "photo stored",
		"owner", owner,
		"image_id", resp.Image.ID,
		"words", len(resp.Entries),
		"digest", digest.Short())

	return resp, nil
}

func (s *PhotoService) logExtraction(ctx context.Context, o Outcome, err error) {
	switch o {
	case OutcomeEmpty:
		s.logger.InfoContext(ctx, "no vocabulary extracted")
	case OutcomeUnexpected:
		s.logger.ErrorContext(ctx, "vocabulary extraction failed", "outcome", o, "error", err)
	default:
		s.logger.WarnContext(ctx, "vocabulary extraction failed", "outcome", o, "error", err)
	}
}
