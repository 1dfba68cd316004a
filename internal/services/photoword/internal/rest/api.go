package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hiroshi75/photoword/internal/pkg/httpx"
	"github.com/hiroshi75/photoword/internal/pkg/middleware"
	"github.com/hiroshi75/photoword/internal/pkg/serr"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/codec"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/fn"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/service"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/session"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/timeline"
)

const SessionHeader = "X-Session-ID"

const DefaultMaxImageSize = 10 << 20

// multipart framing allowance on top of the image itself
const formOverhead = 1 << 20

type photoService interface {
	ExtractVocabulary(ctx context.Context, r service.ExtractRequest) (service.ExtractResponse, error)
	Ingest(ctx context.Context, r service.IngestRequest) (service.IngestResponse, error)
	Save(ctx context.Context, r service.SaveRequest) (service.IngestResponse, error)
	ListTimeline(ctx context.Context, r service.TimelineRequest) ([]model.TimelineEntry, error)
	GetImage(ctx context.Context, r service.ImageGetRequest) (model.StoredImage, error)
	SetProgress(ctx context.Context, r service.ProgressSetRequest) (model.Progress, error)
	ListProgress(ctx context.Context, r service.ProgressListRequest) ([]model.Progress, error)
}

type APIConfig struct {
	MaxImageSize int64
}

type API struct {
	srv      photoService
	sessions session.Store
	cfg      APIConfig
	mux      *http.ServeMux
}

func NewAPI(srv photoService, sessions session.Store, cfg APIConfig) *API {
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = DefaultMaxImageSize
	}

	api := &API{
		srv:      srv,
		sessions: sessions,
		cfg:      cfg,
		mux:      http.NewServeMux(),
	}

	api.mount()
	return api
}

func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mux.ServeHTTP(w, r)
}

func (api *API) mount() {
	api.mux.HandleFunc("POST /extract", api.handleExtract)
	api.mux.HandleFunc("POST /ingest", api.handleIngest)
	api.mux.HandleFunc("POST /images", api.handleSave)
	api.mux.HandleFunc("GET /images/{image_id}", api.handleGetImage)
	api.mux.HandleFunc("GET /timeline", api.handleTimeline)
	api.mux.HandleFunc("PUT /vocabulary/{vocabulary_id}/progress", api.handleSetProgress)
	api.mux.HandleFunc("GET /progress", api.handleListProgress)
}

type vocabularyItem struct {
	Word            string `json:"word"`
	PartOfSpeech    string `json:"part_of_speech"`
	Translation     string `json:"translation"`
	ExampleSentence string `json:"example_sentence"`
}

type vocabularyEntryResponse struct {
	ID      int64 `json:"id"`
	ImageID int64 `json:"image_id"`
	vocabularyItem
	CreatedAt time.Time `json:"created_at"`
}

func toItem(v model.VocabularyItem) vocabularyItem {
	return vocabularyItem{
		Word:            v.Word,
		PartOfSpeech:    string(v.PartOfSpeech),
		Translation:     v.Translation,
		ExampleSentence: v.ExampleSentence,
	}
}

func toEntry(e model.VocabularyEntry) vocabularyEntryResponse {
	return vocabularyEntryResponse{
		ID:             e.ID,
		ImageID:        e.ImageID,
		vocabularyItem: toItem(e.VocabularyItem),
		CreatedAt:      e.CreatedAt,
	}
}

type extractResponse struct {
	Vocabulary []vocabularyItem `json:"vocabulary"`
	Outcome    service.Outcome  `json:"outcome"`
	Notice     string           `json:"notice,omitempty"`
}

func (api *API) handleExtract(w http.ResponseWriter, r *http.Request) {
	img, err := api.readImage(w, r)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	resp, err := api.srv.ExtractVocabulary(r.Context(), service.ExtractRequest{Image: img})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, extractResponse{
		Vocabulary: fn.Map(resp.Vocabulary, toItem),
		Outcome:    resp.Outcome,
		Notice:     resp.Notice,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type ingestResponse struct {
	ImageID    int64                     `json:"image_id,omitempty"`
	CreatedAt  *time.Time                `json:"created_at,omitempty"`
	Digest     string                    `json:"digest,omitempty"`
	Vocabulary []vocabularyEntryResponse `json:"vocabulary"`
	Outcome    service.Outcome           `json:"outcome"`
	Notice     string                    `json:"notice,omitempty"`
}

func (api *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	img, err := api.readImage(w, r)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	api.withSession(w, r, func(s *sessionState) (service.IngestResponse, error) {
		return api.srv.Ingest(r.Context(), service.IngestRequest{
			Owner:      middleware.OwnerFromContext(r.Context()),
			Image:      img,
			LastDigest: s.last,
		})
	})
}

func (api *API) handleSave(w http.ResponseWriter, r *http.Request) {
	img, err := api.readImage(w, r)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	var items []vocabularyItem
	if err := json.Unmarshal([]byte(r.FormValue("vocabulary")), &items); err != nil {
		httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "invalid vocabulary field"))
		return
	}

	vocab := fn.Map(items, func(v vocabularyItem) model.VocabularyItem {
		return model.VocabularyItem{
			Word:            v.Word,
			PartOfSpeech:    model.PartOfSpeech(v.PartOfSpeech),
			Translation:     v.Translation,
			ExampleSentence: v.ExampleSentence,
		}
	})

	api.withSession(w, r, func(s *sessionState) (service.IngestResponse, error) {
		return api.srv.Save(r.Context(), service.SaveRequest{
			Owner:      middleware.OwnerFromContext(r.Context()),
			Image:      img,
			Vocabulary: vocab,
			LastDigest: s.last,
		})
	})
}

// withSession loads the session's last digest, calls run and advances the
// marker when run stored a new photo. The session id is echoed in every
// response, a fresh one is issued when the client sent none. Failing to
// advance the marker does not fail a committed request.
func (api *API) withSession(w http.ResponseWriter, r *http.Request, run func(s *sessionState) (service.IngestResponse, error)) {
	s, err := api.loadSession(r)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
	w.Header().Set(SessionHeader, s.id)

	resp, err := run(s)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if resp.Digest != "" && resp.Digest != s.last {
		if err := api.sessions.Remember(r.Context(), s.id, resp.Digest); err != nil {
			// the photo is already committed; a 500 here would invite a duplicate
			slog.Warn("session marker not advanced",
				"session_id", s.id,
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"error", err)
		}
	}

	status := http.StatusOK
	out := ingestResponse{
		Vocabulary: fn.Map(resp.Entries, toEntry),
		Outcome:    resp.Outcome,
		Notice:     resp.Notice,
	}
	if resp.Outcome.Persisted() {
		status = http.StatusCreated
		out.ImageID = resp.Image.ID
		out.CreatedAt = &resp.Image.CreatedAt
		out.Digest = resp.Digest.String()
	}

	if err := httpx.WriteJSON(w, status, out); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type sessionState struct {
	id   string
	last dedup.Digest
}

func (api *API) loadSession(r *http.Request) (*sessionState, error) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return &sessionState{id: uuid.NewString()}, nil
	}
	if len(id) > 128 {
		return nil, serr.NewServiceError(nil, http.StatusBadRequest, "invalid session id")
	}

	last, err := api.sessions.LastDigest(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sessionState{id: id, last: last}, nil
}

func (api *API) handleGetImage(w http.ResponseWriter, r *http.Request) {
	imageID, err := idFromRequest(r, "image_id")
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	img, err := api.srv.GetImage(r.Context(), service.ImageGetRequest{
		Owner:   middleware.OwnerFromContext(r.Context()),
		ImageID: imageID,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", codec.MediaType(img.Data))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

type timelineEntryResponse struct {
	ID         int64                     `json:"id"`
	CreatedAt  time.Time                 `json:"created_at"`
	MediaType  string                    `json:"media_type"`
	Image      string                    `json:"image"`
	Vocabulary []vocabularyEntryResponse `json:"vocabulary"`
}

type timelineResponse struct {
	Entries []timelineEntryResponse `json:"entries"`
}

func (api *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	skip, err := intParam(q.Get("skip"), "skip")
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	start, err := timeline.ParseDateBound(q.Get("start"), time.UTC)
	if err != nil {
		httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "invalid start parameter"))
		return
	}
	end, err := timeline.ParseDateBound(q.Get("end"), time.UTC)
	if err != nil {
		httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "invalid end parameter"))
		return
	}

	entries, err := api.srv.ListTimeline(r.Context(), service.TimelineRequest{
		Owner:  middleware.OwnerFromContext(r.Context()),
		Skip:   skip,
		Limit:  limit,
		Start:  start,
		End:    end,
		Search: q.Get("q"),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, timelineResponse{
		Entries: fn.Map(entries, func(e model.TimelineEntry) timelineEntryResponse {
			return timelineEntryResponse{
				ID:         e.ID,
				CreatedAt:  e.CreatedAt,
				MediaType:  codec.MediaType(e.Image),
				Image:      codec.Encode(e.Image),
				Vocabulary: fn.Map(e.Vocabulary, toEntry),
			}
		}),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type setProgressRequest struct {
	Status string `json:"status"`
}

type progressResponse struct {
	ID           int64     `json:"id"`
	VocabularyID int64     `json:"vocabulary_id"`
	Status       string    `json:"status"`
	LastReviewed time.Time `json:"last_reviewed"`
}

func toProgress(p model.Progress) progressResponse {
	return progressResponse{
		ID:           p.ID,
		VocabularyID: p.VocabularyID,
		Status:       string(p.Status),
		LastReviewed: p.LastReviewed,
	}
}

func (api *API) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	vocabID, err := idFromRequest(r, "vocabulary_id")
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	var req setProgressRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	p, err := api.srv.SetProgress(r.Context(), service.ProgressSetRequest{
		Owner:        middleware.OwnerFromContext(r.Context()),
		VocabularyID: vocabID,
		Status:       model.ProgressStatus(req.Status),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, toProgress(p)); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type listProgressResponse struct {
	Progress []progressResponse `json:"progress"`
}

func (api *API) handleListProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := api.srv.ListProgress(r.Context(), service.ProgressListRequest{
		Owner:  middleware.OwnerFromContext(r.Context()),
		Status: model.ProgressStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, listProgressResponse{Progress: fn.Map(progress, toProgress)})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

// readImage reads the "image" form file, enforcing the configured size limit.
func (api *API) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, api.cfg.MaxImageSize+formOverhead)

	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "image too large").
				With("limit", api.cfg.MaxImageSize)
		}
		return nil, serr.NewServiceError(err, http.StatusBadRequest, "invalid image file")
	}
	defer file.Close()

	img, err := io.ReadAll(io.LimitReader(file, api.cfg.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(img)) > api.cfg.MaxImageSize {
		return nil, serr.NewServiceError(nil, http.StatusRequestEntityTooLarge, "image too large").
			With("limit", api.cfg.MaxImageSize)
	}

	return img, nil
}

func intParam(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, serr.NewServiceError(err, http.StatusBadRequest, "invalid %s parameter", name)
	}
	return v, nil
}

func idFromRequest(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(param), 10, 64)
	if err != nil {
		return 0, serr.NewServiceError(err, http.StatusBadRequest, "invalid %s parameter", param)
	}

	return id, nil
}
