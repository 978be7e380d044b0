package synthcache

import (
	"strings"

	"github.com/unkn0wn-root/synthcache/fingerprint"
)

// RawRequest is the client payload as decoded from JSON. A missing or null
// speaker decodes to nil; "" decodes to a pointer to "".
type RawRequest struct {
	Text    string  `json:"text"`
	Model   string  `json:"model,omitempty"`
	Speaker *string `json:"speaker,omitempty"`
}

// Defaults are the deployment-wide values a request cannot override
// (Device) or may omit (Model).
type Defaults struct {
	Model  string // "" => DefaultModel
	Device string // "" => DefaultDevice
}

// SynthesisRequest is a validated request. Text is trimmed but keeps its
// case; the engine speaks what the client wrote.
type SynthesisRequest struct {
	Text    string
	Model   string
	Speaker *string
	Device  string
}

// Normalize validates raw and fills in defaults. It touches neither the
// engine nor the store.
func Normalize(raw RawRequest, d Defaults) (SynthesisRequest, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return SynthesisRequest{}, ErrInvalidRequest
	}
	return SynthesisRequest{
		Text:    text,
		Model:   coalesce(raw.Model, coalesce(d.Model, DefaultModel)),
		Speaker: raw.Speaker,
		Device:  coalesce(d.Device, DefaultDevice),
	}, nil
}

// Fingerprint returns the cache key of r.
func (r SynthesisRequest) Fingerprint() string {
	return fingerprint.Of(fingerprint.Key{
		Model:   r.Model,
		Speaker: r.Speaker,
		Text:    r.Text,
		Device:  r.Device,
	})
}
