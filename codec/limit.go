package codec

import "fmt"

// LimitCodec refuses to decode values larger than MaxDecode bytes, so one
// oversized value in a shared backend is never unpacked into memory.
// Encode passes through. MaxDecode <= 0 disables the check.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (v V, err error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return v, fmt.Errorf("codec: value of %d bytes exceeds limit %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
