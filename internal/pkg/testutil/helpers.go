package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type TestFile struct {
	Name      string
	FieldName string
	Content   io.Reader
}

// NewMultipartRequest builds a multipart form request made of plain fields and
// files.
func NewMultipartRequest(t testing.TB, method, path string, fields map[string]string, files ...TestFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	for _, f := range files {
		part, err := writer.CreateFormFile(f.FieldName, f.Name)
		require.NoError(t, err)

		_, err = io.Copy(part, f.Content)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func SendMultipart(t testing.TB, h http.Handler, method, path string, fields map[string]string, files ...TestFile) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, NewMultipartRequest(t, method, path, fields, files...))
	return rec
}

// SendRequest sends body encoded as JSON; a nil body sends no payload.
func SendRequest(t testing.TB, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	require.True(t, len(headers)%2 == 0, "headers must be key/value pairs")

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, path, &payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func ParseResponse[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var resp T
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)

	return resp
}

func WaitFor(t testing.TB, ctx context.Context, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}
