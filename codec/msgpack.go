package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes values with vmihailenco/msgpack, keyed by the `msgpack`
// struct tags. Ready to use as a zero value.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[V]) Decode(b []byte) (v V, err error) {
	err = msgpack.Unmarshal(b, &v)
	return v, err
}
