// Package extract asks a vision language model for the vocabulary visible in
// a photo and turns its answer into validated vocabulary items.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/codec"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
)

var (
	ErrMalformedResponse = errors.New("malformed model response")
	ErrTimeout           = errors.New("model call timed out")
	ErrUnexpected        = errors.New("unexpected extraction failure")
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultMaxTokens  = 1000
)

// Request is a single multimodal generation call.
type Request struct {
	Instruction string
	ImageB64    string
	MediaType   string
	Temperature float64
	MaxTokens   int
}

// Response carries the raw model text. Structured is set when the provider
// constrained the output to the vocabulary schema.
type Response struct {
	Text       string
	Structured bool
}

// Provider is a model backend able to answer a Request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, r Request) (Response, error)
}

type Extractor struct {
	provider    Provider
	timeout     time.Duration
	maxRetries  int
	maxTokens   int
	instruction string
	logger      *slog.Logger
	backoff     func(attempt int) time.Duration
}

type Option func(*Extractor)

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithLanguages sets the language words are extracted in and the language
// they are translated to.
func WithLanguages(source, target string) Option {
	return func(e *Extractor) {
		e.instruction = Instruction(source, target)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

func withBackoff(fn func(attempt int) time.Duration) Option {
	return func(e *Extractor) {
		e.backoff = fn
	}
}

func New(p Provider, opts ...Option) *Extractor {
	if p == nil {
		panic("extract: provider is required")
	}

	e := &Extractor{
		provider:    p,
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		maxTokens:   DefaultMaxTokens,
		instruction: Instruction(DefaultSourceLang, DefaultTargetLang),
		logger:      slog.Default(),
		backoff:     retryDelay,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Extractor) Provider() string {
	return e.provider.Name()
}

// Extract returns the valid vocabulary found in img. An empty slice is a valid
// answer. Failures wrap exactly one of ErrMalformedResponse, ErrTimeout or
// ErrUnexpected.
func (e *Extractor) Extract(ctx context.Context, img []byte) ([]model.VocabularyItem, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.generate(ctx, Request{
		Instruction: e.instruction,
		ImageB64:    codec.Encode(img),
		MediaType:   codec.MediaType(img),
		Temperature: 0,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}

	items, dropped, err := parseVocabulary(resp)
	if err != nil {
		e.logger.Warn("model response could not be decoded",
			"provider", e.provider.Name(),
			"structured", resp.Structured,
			"error", err)
		return nil, err
	}

	e.logger.Debug("vocabulary extracted",
		"provider", e.provider.Name(),
		"items", len(items),
		"dropped", dropped,
		"duration_ms", time.Since(start).Milliseconds())

	return items, nil
}

func (e *Extractor) generate(ctx context.Context, r Request) (Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := e.provider.Generate(ctx, r)
		if err == nil {
			return resp, nil
		}

		if attempt >= e.maxRetries || !retryable(err) || ctx.Err() != nil {
			return Response{}, err
		}

		delay := e.backoff(attempt)
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > delay {
			delay = se.RetryAfter
		}

		if dl, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(dl) {
			return Response{}, err
		}

		e.logger.Warn("model call failed, retrying",
			"provider", e.provider.Name(),
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err)

		if err := sleep(ctx, delay); err != nil {
			return Response{}, err
		}
	}
}

// retryable reports whether err is a transient transport failure. Parse
// failures are never retried.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	var ne net.Error
	return errors.As(err, &ne)
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
