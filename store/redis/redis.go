package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/synthcache/codec"
	"github.com/unkn0wn-root/synthcache/fingerprint"
	"github.com/unkn0wn-root/synthcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// ErrCorrupt is returned by Read when a stored value does not decode to an
// entry for the requested fingerprint.
var ErrCorrupt = errors.New("redis store: corrupt entry")

// Redis keeps each entry under <prefix>:<fp>, encoded with a codec.
// Keys never expire; SET NX makes the first writer win.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	codec       codec.Codec[store.Entry]
	closeClient bool
}

var _ store.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Prefix      string                   // "" => "synthcache"
	Codec       codec.Codec[store.Entry] // nil => deterministic CBOR
	MaxDecode   int                      // bytes; 0 => unlimited
	CloseClient bool                     // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	c := cfg.Codec
	if c == nil {
		cb, err := codec.NewCBOR[store.Entry](true)
		if err != nil {
			return nil, err
		}
		c = cb
	}
	if cfg.MaxDecode > 0 {
		c = codec.LimitCodec[store.Entry]{Inner: c, MaxDecode: cfg.MaxDecode}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "synthcache"
	}
	return &Redis{rdb: cfg.Client, prefix: prefix, codec: c, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) key(fp string) string { return s.prefix + ":" + fp }

func (s *Redis) Exists(ctx context.Context, fp string) (bool, error) {
	if !fingerprint.Valid(fp) {
		return false, store.ErrInvalidFingerprint
	}
	n, err := s.rdb.Exists(ctx, s.key(fp)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Redis) Read(ctx context.Context, fp string) (*store.Entry, error) {
	if !fingerprint.Valid(fp) {
		return nil, store.ErrInvalidFingerprint
	}
	b, err := s.rdb.Get(ctx, s.key(fp)).Bytes()
	if err == goredis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err // transport/server error
	}
	e, err := s.codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, fp, err)
	}
	if e.Fingerprint != fp {
		return nil, fmt.Errorf("%w: %s holds %q", ErrCorrupt, fp, e.Fingerprint)
	}
	return &e, nil
}

// Write is a single SET NX, so readers see nothing or the whole value.
// A losing writer had the same content; it is not an error.
func (s *Redis) Write(ctx context.Context, e *store.Entry) error {
	if e == nil || !fingerprint.Valid(e.Fingerprint) {
		return store.ErrInvalidFingerprint
	}
	b, err := s.codec.Encode(*e)
	if err != nil {
		return err
	}
	if err := s.rdb.SetNX(ctx, s.key(e.Fingerprint), b, 0).Err(); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
