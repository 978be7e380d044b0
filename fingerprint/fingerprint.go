// Package fingerprint derives the cache key of a synthesis request.
//
// A fingerprint is the lowercase hex SHA-256 of the length-prefixed framing of
// (model, speaker-or-absent, lower-cased text, device). It doubles as the
// filename stem of the stored artifact.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/unkn0wn-root/synthcache/internal/wire"
)

// Size is the length of a fingerprint string.
const Size = sha256.Size * 2

// Key holds the normalized request fields that identify an artifact.
type Key struct {
	Model   string
	Speaker *string // nil = no speaker; distinct from ""
	Text    string
	Device  string
}

// Of returns the fingerprint of k. Text is case-folded here, so callers pass
// it as the user wrote it (trimmed).
func Of(k Key) string {
	// cases.Caser is stateful; one per call.
	text := cases.Lower(language.Und).String(k.Text)

	framed := wire.EncodeKey(
		wire.Str(k.Model),
		wire.Opt(k.Speaker),
		wire.Str(text),
		wire.Str(k.Device),
	)
	sum := sha256.Sum256(framed)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s has the shape of a fingerprint. Stores use it to
// refuse anything that could escape their namespace.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
