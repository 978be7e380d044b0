package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	kindKey byte = 1

	absent  byte = 0
	present byte = 1
)

var (
	ErrCorrupt = errors.New("synthcache: corrupt key frame")
	magic4     = [...]byte{'S', 'Y', 'N', 'K'}
)

// Field is one component of a cache key. An absent field and a present
// empty field encode differently.
type Field struct {
	Present bool
	Value   []byte
}

// Str is a present field holding s.
func Str(s string) Field { return Field{Present: true, Value: []byte(s)} }

// Opt is a present field holding *s, or an absent field when s is nil.
func Opt(s *string) Field {
	if s == nil {
		return Field{}
	}
	return Str(*s)
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// EncodeKey frames fields so that no two distinct field lists share an encoding.
//
//	magic(4) | ver(1) | kind(1=key) | n(u32 be)
//	presence(1) | vlen(u32 be) | value(vlen) * n
func EncodeKey(fields ...Field) []byte {
	total := 4 + 1 + 1 + 4
	for _, f := range fields {
		total += 1 + 4 + len(f.Value)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindKey)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(fields)))
	buf.Write(u4[:])

	for _, f := range fields {
		if !f.Present {
			// absent fields carry no value bytes; vlen is always 0
			buf.WriteByte(absent)
			binary.BigEndian.PutUint32(u4[:], 0)
			buf.Write(u4[:])
			continue
		}
		buf.WriteByte(present)
		binary.BigEndian.PutUint32(u4[:], uint32(len(f.Value)))
		buf.Write(u4[:])
		buf.Write(f.Value)
	}

	return buf.Bytes()
}

// DecodeKey is the inverse of EncodeKey. Trailing bytes are rejected.
func DecodeKey(b []byte) ([]Field, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindKey {
		return nil, ErrCorrupt
	}

	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 || n > (len(b)-off)/5 {
		return nil, ErrCorrupt
	}

	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		if off+5 > len(b) {
			return nil, ErrCorrupt
		}
		flag := b[off]
		off++
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}

		switch flag {
		case absent:
			if vlen != 0 {
				return nil, ErrCorrupt
			}
			fields = append(fields, Field{})
		case present:
			fields = append(fields, Field{Present: true, Value: b[off : off+vlen]})
			off += vlen
		default:
			return nil, ErrCorrupt
		}
	}

	if off != len(b) {
		return nil, ErrCorrupt
	}
	return fields, nil
}
