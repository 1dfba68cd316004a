package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hiroshi75/photoword/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeAnswer = `{"content":[{"type":"text","text":"Here you go:\n{\"vocabulary\":[{\"word\":\"mesa\",\"part_of_speech\":\"noun\",\"translation\":\"テーブル\",\"example_sentence\":\"La mesa es grande.\"}]}"}]}`

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

func setupEnv(t *testing.T) string {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, fakeAnswer)
	}))
	t.Cleanup(provider.Close)

	dir := t.TempDir()
	addr := freeAddr(t)

	t.Setenv("HTTP_LISTEN_ADDR", addr)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "photoword.db"))
	t.Setenv("SESSION_BACKEND", "bolt")
	t.Setenv("SESSION_BOLT_PATH", filepath.Join(dir, "sessions.db"))
	t.Setenv("EXTRACTOR_PROVIDER", "anthropic")
	t.Setenv("EXTRACTOR_BASE_URL", provider.URL)
	t.Setenv("EXTRACTOR_API_KEY", "test-key")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "warn")

	return "http://" + addr
}

func waitReady(t *testing.T, ctx context.Context, base string, errCh <-chan error) {
	t.Helper()

	readyCh := make(chan bool, 1)
	go func() {
		readyCh <- testutil.WaitFor(t, ctx, 100*time.Millisecond, func() bool {
			resp, err := http.Get(base + "/readyz")
			if err != nil {
				return false
			}
			_ = resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		})
	}()

	select {
	case err := <-errCh:
		t.Fatalf("service exited early: %v", err)
	case ready := <-readyCh:
		require.True(t, ready)
	}
}

func photo(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func TestRun(t *testing.T) {
	base := setupEnv(t)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	waitReady(t, ctx, base, errCh)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := testutil.NewMultipartRequest(t, http.MethodPost, base+"/api/v1/ingest", nil, testutil.TestFile{
		Name:      "photo.png",
		FieldName: "image",
		Content:   bytes.NewReader(photo(t)),
	})
	req.RequestURI = ""
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Session-ID"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var ingested struct {
		ImageID    int64  `json:"image_id"`
		Outcome    string `json:"outcome"`
		Vocabulary []struct {
			Word string `json:"word"`
		} `json:"vocabulary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ingested))
	assert.Equal(t, "ok", ingested.Outcome)
	require.Len(t, ingested.Vocabulary, 1)
	assert.Equal(t, "mesa", ingested.Vocabulary[0].Word)

	tl, err := http.Get(base + "/api/v1/timeline?q=mesa")
	require.NoError(t, err)
	defer tl.Body.Close()
	require.Equal(t, http.StatusOK, tl.StatusCode)

	var timeline struct {
		Entries []struct {
			ID int64 `json:"id"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(tl.Body).Decode(&timeline))
	require.Len(t, timeline.Entries, 1)
	assert.Equal(t, ingested.ImageID, timeline.Entries[0].ID)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_Auth(t *testing.T) {
	base := setupEnv(t)
	t.Setenv("AUTH_SECRET", "secret")

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	waitReady(t, ctx, base, errCh)

	resp, err := http.Get(base + "/api/v1/timeline")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "maria"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/timeline", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_Cancel(t *testing.T) {
	setupEnv(t)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	go func() {
		time.Sleep(time.Second)
		cancel()
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidExtractorConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("EXTRACTOR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	err := run(t.Context())
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "json")
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}
