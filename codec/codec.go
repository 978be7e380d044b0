// Package codec serializes store entries for backends that hold opaque
// values (e.g. Redis). The disk backend stores raw audio and needs no codec.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under name: "cbor", "msgpack" or "json".
// An empty name selects CBOR.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "cbor":
		c, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "json":
		return JSON[V]{}, nil
	default:
		return nil, &UnknownError{Name: name}
	}
}

// UnknownError reports an unsupported codec name.
type UnknownError struct{ Name string }

func (e *UnknownError) Error() string { return "codec: unknown codec " + e.Name }
