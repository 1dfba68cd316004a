// Package codec converts image bytes to the transport form expected by the
// model providers and checks uploads before they are processed.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
)

var (
	ErrEmpty             = errors.New("image is empty")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image dimensions exceeded")
)

// Encode returns the standard base64 form of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}

// MediaType sniffs the MIME type of data, falling back to JPEG for anything
// that is not recognised as an image.
func MediaType(data []byte) string {
	mt := http.DetectContentType(data)
	switch mt {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return mt
	}
	return "image/jpeg"
}

type Limits struct {
	MaxWidth  int
	MaxHeight int
}

type Info struct {
	Format    string
	Width     int
	Height    int
	MediaType string
}

// Inspect decodes the image header and enforces the dimension limits. Zero
// limits are not enforced.
func Inspect(data []byte, l Limits) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	if (l.MaxWidth > 0 && cfg.Width > l.MaxWidth) || (l.MaxHeight > 0 && cfg.Height > l.MaxHeight) {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	return Info{
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		MediaType: "image/" + format,
	}, nil
}
