package extract

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/codec"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	GenerateFunc func(ctx context.Context, r Request) (Response, error)
	calls        int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, r Request) (Response, error) {
	m.calls++
	return m.GenerateFunc(ctx, r)
}

func newTestExtractor(p Provider, opts ...Option) *Extractor {
	base := []Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		withBackoff(func(int) time.Duration { return 0 }),
	}
	return New(p, append(base, opts...)...)
}

func TestExtract(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}

	var got Request
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		got = r
		return Response{Text: mesaJSON, Structured: true}, nil
	}}

	items, err := newTestExtractor(p, WithMaxTokens(500)).Extract(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, []model.VocabularyItem{mesa}, items)
	assert.Equal(t, codec.Encode(img), got.ImageB64)
	assert.Equal(t, "image/png", got.MediaType)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Contains(t, got.Instruction, "Spanish")
	assert.Contains(t, got.Instruction, "Japanese")
	assert.Contains(t, got.Instruction, `"example_sentence"`)
}

func TestExtract_Languages(t *testing.T) {
	var got Request
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		got = r
		return Response{Text: `{"vocabulary":[]}`}, nil
	}}

	items, err := newTestExtractor(p, WithLanguages("French", "English")).Extract(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Contains(t, got.Instruction, "French")
	assert.Contains(t, got.Instruction, "English")
	assert.NotContains(t, got.Instruction, "Spanish")
}

func TestExtract_RetriesTransientErrors(t *testing.T) {
	tbl := []struct {
		name  string
		err   error
		calls int
		ok    bool
	}{
		{"service unavailable", &StatusError{StatusCode: http.StatusServiceUnavailable}, 3, true},
		{"rate limited", &StatusError{StatusCode: http.StatusTooManyRequests}, 3, true},
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest}, 1, false},
		{"malformed", ErrMalformedResponse, 1, false},
		{"plain error", errors.New("boom"), 1, false},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
				return Response{}, c.err
			}}

			_, err := newTestExtractor(p).Extract(context.Background(), []byte("img"))
			require.Error(t, err)
			assert.Equal(t, c.calls, p.calls)
		})
	}
}

func TestExtract_RecoversAfterRetry(t *testing.T) {
	p := &mockProvider{}
	p.GenerateFunc = func(ctx context.Context, r Request) (Response, error) {
		if p.calls < 3 {
			return Response{}, &StatusError{StatusCode: http.StatusBadGateway}
		}
		return Response{Text: mesaJSON}, nil
	}

	items, err := newTestExtractor(p).Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, p.calls)
}

func TestExtract_MaxRetries(t *testing.T) {
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		return Response{}, &StatusError{StatusCode: http.StatusInternalServerError}
	}}

	_, err := newTestExtractor(p, WithMaxRetries(0)).Extract(context.Background(), []byte("img"))
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.Equal(t, 1, p.calls)
}

func TestExtract_Malformed(t *testing.T) {
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		return Response{Text: "no json here"}, nil
	}}

	_, err := newTestExtractor(p).Extract(context.Background(), []byte("img"))
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.False(t, errors.Is(err, ErrUnexpected))
	assert.Equal(t, 1, p.calls)
}

func TestExtract_Timeout(t *testing.T) {
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}}

	start := time.Now()
	_, err := newTestExtractor(p, WithTimeout(50*time.Millisecond)).Extract(context.Background(), []byte("img"))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, p.calls)
}

func TestExtract_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		return Response{}, ctx.Err()
	}}

	_, err := newTestExtractor(p).Extract(ctx, []byte("img"))
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtract_RetryStopsOnDeadline(t *testing.T) {
	p := &mockProvider{GenerateFunc: func(ctx context.Context, r Request) (Response, error) {
		return Response{}, &StatusError{Provider: "gemini", StatusCode: http.StatusTooManyRequests, RetryAfter: time.Hour}
	}}

	e := New(p, WithLogger(slog.New(slog.DiscardHandler)), WithTimeout(5*time.Second))

	start := time.Now()
	_, err := e.Extract(context.Background(), []byte("img"))

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.False(t, errors.Is(err, ErrTimeout))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, 1, p.calls)
}

func TestNew_RequiresProvider(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2))
	assert.Equal(t, 5*time.Second, retryDelay(10))
	assert.Equal(t, 200*time.Millisecond, retryDelay(-1))
}
