package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hiroshi75/photoword/internal/pkg/serr"
)

// MaxJSONBody caps the size of JSON request bodies accepted by ReadJSON.
const MaxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func ReadJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "request body too large")
		}
		if errors.Is(err, io.EOF) {
			return serr.NewServiceError(err, http.StatusBadRequest, "request body is empty")
		}
		return serr.NewServiceError(err, http.StatusBadRequest, "malformed request body")
	}

	return nil
}

func WriteJSON(w http.ResponseWriter, status int, resp any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

// HandleErr logs err and writes a JSON error body. ServiceErrors keep their
// status code and public message; anything else becomes a 500.
func HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := http.StatusText(status)

	attrs := []any{
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
	}

	var se *serr.ServiceError
	if errors.As(err, &se) {
		status = se.StatusCode
		msg = se.Msg
		for k, v := range se.Env {
			attrs = append(attrs, k, v)
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request error", attrs...)
	} else {
		slog.Warn("request rejected", attrs...)
	}

	_ = WriteJSON(w, status, errorResponse{Error: msg})
}
