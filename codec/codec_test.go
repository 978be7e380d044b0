package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Name  string    `json:"name" cbor:"1,keyasint" msgpack:"name"`
	Audio []byte    `json:"audio" cbor:"2,keyasint" msgpack:"audio"`
	At    time.Time `json:"at" cbor:"3,keyasint" msgpack:"at"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "cbor", "msgpack", "json"} {
		c, err := ByName[sample](name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		in := sample{Name: "x", Audio: []byte{0, 1, 2}, At: time.Unix(1700000000, 0).UTC()}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%q encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%q decode: %v", name, err)
		}
		if out.Name != in.Name || !bytes.Equal(out.Audio, in.Audio) || !out.At.Equal(in.At) {
			t.Fatalf("%q: got %+v want %+v", name, out, in)
		}
	}

	var ue *UnknownError
	if _, err := ByName[sample]("gob"); !errors.As(err, &ue) || ue.Name != "gob" {
		t.Fatalf("ByName(gob): err=%v", err)
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("deterministic encoding differs: %x vs %x", a, b)
		}
	}
}

func TestLimitCodec(t *testing.T) {
	lc := LimitCodec[sample]{Inner: JSON[sample]{}, MaxDecode: 16}
	b, err := lc.Encode(sample{Name: "a long enough name to exceed the limit"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lc.Decode(b); err == nil {
		t.Fatalf("expected size error for %d bytes", len(b))
	}

	unlimited := LimitCodec[sample]{Inner: JSON[sample]{}}
	if _, err := unlimited.Decode(b); err != nil {
		t.Fatalf("unlimited decode: %v", err)
	}
}

func TestCBORRejectsUnknownFields(t *testing.T) {
	type wider struct {
		Name  string `cbor:"1,keyasint"`
		Extra string `cbor:"9,keyasint"`
	}
	b, err := MustCBOR[wider](true).Encode(wider{Name: "x", Extra: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MustCBOR[sample](true).Decode(b); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
