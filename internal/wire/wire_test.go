package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func mustDecodeKey(t *testing.T, b []byte) []Field {
	t.Helper()
	f, err := DecodeKey(b)
	if err != nil {
		t.Fatalf("DecodeKey error: %v", err)
	}
	return f
}

func sameFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Present != b[i].Present || !bytes.Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func TestKeyRTVariants(t *testing.T) {
	empty := ""
	speaker := "p225"
	cases := [][]Field{
		nil,
		{Str("")},
		{Opt(nil)},
		{Opt(&empty)},
		{Str("tts_models/de/thorsten/vits"), Opt(&speaker), Str("hallo welt"), Str("cpu")},
		{Str("a|b"), Opt(nil), Str("c"), Str("cpu")},
	}
	for i, tc := range cases {
		got := mustDecodeKey(t, EncodeKey(tc...))
		if !sameFields(got, tc) {
			t.Fatalf("case %d: fields mismatch: got %+v want %+v", i, got, tc)
		}
	}
}

func TestKeyAbsentDiffersFromEmpty(t *testing.T) {
	empty := ""
	a := EncodeKey(Str("m"), Opt(nil), Str("t"))
	b := EncodeKey(Str("m"), Opt(&empty), Str("t"))
	if bytes.Equal(a, b) {
		t.Fatalf("absent and empty field encoded identically: %x", a)
	}
}

func TestKeyDelimiterShiftDoesNotCollide(t *testing.T) {
	// "a|b" + "c" and "a" + "b|c" concatenate to the same bytes with a "|" join.
	a := EncodeKey(Str("a|b"), Str("c"))
	b := EncodeKey(Str("a"), Str("b|c"))
	if bytes.Equal(a, b) {
		t.Fatalf("shifted fields encoded identically")
	}
}

func TestKeyRejectsTrailingBytes(t *testing.T) {
	enc := EncodeKey(Str("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeKey(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestKeyCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeKey(Str("abc"), Opt(nil))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeKey(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeKey(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindKey + 1
	if _, err := DecodeKey(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// first field vlen points past the end
	badLen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badLen[11:15], 1<<20)
	if _, err := DecodeKey(badLen); err == nil {
		t.Fatalf("expected error on oversized vlen")
	}

	// absent field claiming a value
	badAbsent := EncodeKey(Opt(nil))
	binary.BigEndian.PutUint32(badAbsent[11:15], 1)
	badAbsent = append(badAbsent, 'z')
	if _, err := DecodeKey(badAbsent); err == nil {
		t.Fatalf("expected error on absent field with value")
	}

	// unknown presence flag
	badFlag := append([]byte(nil), enc...)
	badFlag[10] = 7
	if _, err := DecodeKey(badFlag); err == nil {
		t.Fatalf("expected error on unknown presence flag")
	}

	// field count larger than the buffer can hold
	badCount := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badCount[6:10], 1000)
	if _, err := DecodeKey(badCount); err == nil {
		t.Fatalf("expected error on oversized count")
	}
}
