// Package server exposes a synthcache Coordinator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unkn0wn-root/synthcache"
)

const defaultMaxBodyBytes = 1 << 20

// Resolver is the part of *synthcache.Coordinator the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, req synthcache.SynthesisRequest) (*synthcache.Artifact, error)
}

type Handler struct {
	resolver Resolver
	defaults synthcache.Defaults
	log      synthcache.Logger

	maxBody    int64
	legacyKeys bool
}

type Option func(*Handler)

// WithMaxBodyBytes bounds the request body; n <= 0 keeps the 1 MiB default.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func WithLogger(l synthcache.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithLegacyKeys names the audio field audio_data_url instead of
// audioDataUrl.
func WithLegacyKeys(on bool) Option {
	return func(h *Handler) {
		h.legacyKeys = on
	}
}

func New(r Resolver, defaults synthcache.Defaults, options ...Option) (*Handler, error) {
	if r == nil {
		return nil, errors.New("server: resolver is required")
	}

	h := &Handler{
		resolver: r,
		defaults: defaults,
		log:      synthcache.NopLogger{},

		maxBody: defaultMaxBodyBytes,
	}

	for _, option := range options {
		option(h)
	}

	return h, nil
}

func (h *Handler) Attach(r chi.Router) {
	r.Post("/synthesize", h.handleSynthesize)
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var raw synthcache.RawRequest

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := synthcache.Normalize(raw, h.defaults)

	if err != nil {
		h.writeResponse(w, http.StatusBadRequest, EncodeError(err))
		return
	}

	art, err := h.resolver.Resolve(r.Context(), req)

	if err != nil {
		code := StatusCode(err)
		if code >= 500 && code != http.StatusServiceUnavailable {
			h.log.Error("synthesize request failed", synthcache.Fields{"status": code, "err": err})
		}
		h.writeResponse(w, code, EncodeError(err))
		return
	}

	w.Header().Set("X-Synthcache-Fingerprint", art.Fingerprint)
	w.Header().Set("X-Synthcache-Source", string(art.Source))

	h.writeResponse(w, http.StatusOK, EncodeArtifact(art))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, Response{OK: true})
}

func (h *Handler) writeResponse(w http.ResponseWriter, code int, resp Response) {
	if h.legacyKeys {
		writeJson(w, code, resp.legacy())
		return
	}
	writeJson(w, code, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.writeResponse(w, code, Response{OK: false, Error: msg})
}

func writeJson(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(v)
}
