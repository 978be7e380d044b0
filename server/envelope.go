package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/synthcache"
)

// Response is the JSON envelope of POST /synthesize.
type Response struct {
	OK           bool   `json:"ok"`
	Format       string `json:"format,omitempty"`
	AudioDataURL string `json:"audioDataUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

// legacyResponse spells the audio field the way older browser clients read it.
type legacyResponse struct {
	OK           bool   `json:"ok"`
	Format       string `json:"format,omitempty"`
	AudioDataURL string `json:"audio_data_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

var mimeTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"opus": "audio/opus",
}

// MimeType maps an artifact format to its media type.
func MimeType(format string) string {
	if m, ok := mimeTypes[strings.ToLower(format)]; ok {
		return m
	}
	return "application/octet-stream"
}

// DataURL renders audio as an RFC 2397 base64 data URL.
func DataURL(format string, audio []byte) string {
	mt := MimeType(format)
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mt) + base64.StdEncoding.EncodedLen(len(audio)))
	b.WriteString("data:")
	b.WriteString(mt)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(audio))
	return b.String()
}

func EncodeArtifact(a *synthcache.Artifact) Response {
	return Response{
		OK:           true,
		Format:       a.Format,
		AudioDataURL: DataURL(a.Format, a.Audio),
	}
}

// EncodeError builds the failure envelope. The message is always the
// client-safe form of err.
func EncodeError(err error) Response {
	return Response{OK: false, Error: PublicMessage(err)}
}

type publicError interface{ Public() string }

// PublicMessage returns text about err that is safe to send to a client.
func PublicMessage(err error) string {
	var pe publicError
	switch {
	case errors.As(err, &pe):
		return pe.Public()
	case errors.Is(err, synthcache.ErrInvalidRequest):
		return "no text provided"
	case errors.Is(err, synthcache.ErrClosed):
		return "service shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "internal error"
	}
}

// StatusCode maps a resolve error to its HTTP status.
func StatusCode(err error) int {
	var ee *synthcache.EngineError
	var ce *synthcache.CacheIOError
	switch {
	case errors.As(err, &ee):
		return http.StatusBadGateway
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	case errors.Is(err, synthcache.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, synthcache.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r Response) legacy() legacyResponse { return legacyResponse(r) }
