// Package inference adapts third-party object-detection APIs to a single
// Backend interface that yields raw, unclassified detections.
package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"potholewatch/internal/model"
)

// ErrNotConfigured is matched by every missing key or endpoint error.
var ErrNotConfigured = errors.New("inference backend not configured")

// Backend produces raw detections for one encoded image.
type Backend interface {
	Name() string
	Detect(ctx context.Context, img Image) ([]model.RawDetection, error)
}

// Image is an encoded JPEG/PNG either as bytes or as a base64 string
// (optionally a data URI). Either field may be empty, not both.
type Image struct {
	Data   []byte
	Base64 string
}

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// ImageFromBase64 wraps a base64 payload as received from a client.
func ImageFromBase64(s string) Image {
	return Image{Base64: s}
}

// ImageFromBytes wraps an already encoded image.
func ImageFromBytes(b []byte) Image {
	return Image{Data: b}
}

// Encoded returns the image as base64. A client-supplied string is returned
// untouched, data URI prefix included.
func (i Image) Encoded() string {
	if i.Base64 != "" {
		return i.Base64
	}
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Bytes returns the decoded image, stripping any data URI prefix first.
func (i Image) Bytes() ([]byte, error) {
	if len(i.Data) > 0 {
		return i.Data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(StripDataURI(i.Base64))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return raw, nil
}

// StripDataURI removes a leading "data:image/...;base64," if present.
func StripDataURI(s string) string {
	return dataURIPrefix.ReplaceAllString(s, "")
}

type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Unwrap() error { return ErrNotConfigured }

// NotConfigured returns an error whose message is msg and which matches ErrNotConfigured.
func NotConfigured(msg string) error {
	return &configError{msg: msg}
}

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d %s", e.Backend, e.StatusCode, e.Body)
}

// readBody drains resp and converts non-2xx responses into a StatusError.
func readBody(resp *http.Response, backend string) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", backend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Backend: backend, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ProxySeverity is the coarse rating attached by the detection proxies.
// It is independent of the classification pipeline's cascade.
func ProxySeverity(score float64) model.Severity {
	switch {
	case score > 0.8:
		return model.SeverityHigh
	case score > 0.5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
