package stringpool_test

import (
	"strings"
	"testing"

	"github.com/google/pack/errs"
	"github.com/google/pack/internal/testdecode"
	"github.com/google/pack/stringpool"
)

func TestBuildPoolRoundTrip(t *testing.T) {
	in := []string{"AndroidManifest.xml", "", "hello world", "res/drawable/preview.png", "hello world"}
	chunk, err := stringpool.BuildPool(in)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if len(chunk)%4 != 0 {
		t.Fatalf("pool size %d is not a multiple of 4", len(chunk))
	}

	pool, err := testdecode.DecodeStringPool(chunk)
	if err != nil {
		t.Fatalf("DecodeStringPool: %v", err)
	}
	if len(pool.Strings) != len(in) {
		t.Fatalf("got %d strings, want %d", len(pool.Strings), len(in))
	}
	for i, want := range in {
		if pool.Strings[i] != want {
			t.Errorf("string %d = %q, want %q", i, pool.Strings[i], want)
		}
	}

	// Two equal strings ("hello world" at indices 2 and 4) must occupy two
	// distinct slots: BuildPool never deduplicates.
	if in[2] != in[4] {
		t.Fatal("test fixture assumption broken")
	}
}

func TestBuildPoolMaxLength(t *testing.T) {
	maxString := strings.Repeat("a", 0x7FFF)
	if _, err := stringpool.BuildPool([]string{maxString}); err != nil {
		t.Fatalf("0x7FFF-byte string should succeed, got %v", err)
	}

	tooLong := strings.Repeat("a", 0x8000)
	_, err := stringpool.BuildPool([]string{tooLong})
	if !errs.Is(err, errs.StringPoolStringTooLong) {
		t.Fatalf("expected StringPoolStringTooLong, got %v", err)
	}
}

func TestBuildPoolLongStringRoundTrips(t *testing.T) {
	// A string over 128 bytes forces the two-byte length encoding for both
	// char_count and byte_count fields.
	long := strings.Repeat("x", 300)
	chunk, err := stringpool.BuildPool([]string{long})
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	pool, err := testdecode.DecodeStringPool(chunk)
	if err != nil {
		t.Fatalf("DecodeStringPool: %v", err)
	}
	if pool.Strings[0] != long {
		t.Fatalf("got %d bytes back, want %d", len(pool.Strings[0]), len(long))
	}
}

func TestBuildPoolMultibyteCharsUnderByteThreshold(t *testing.T) {
	// 100 four-byte runes: char_count (100) fits in one byte but
	// byte_count (400) does not. The two length fields are independently
	// sized, so this must still round-trip exactly.
	s := strings.Repeat("\U0001F600", 100)
	chunk, err := stringpool.BuildPool([]string{s})
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	pool, err := testdecode.DecodeStringPool(chunk)
	if err != nil {
		t.Fatalf("DecodeStringPool: %v", err)
	}
	if pool.Strings[0] != s {
		t.Fatalf("round-trip mismatch for multibyte string")
	}
}

func TestBuildPoolEmpty(t *testing.T) {
	chunk, err := stringpool.BuildPool(nil)
	if err != nil {
		t.Fatalf("BuildPool(nil): %v", err)
	}
	if len(chunk)%4 != 0 {
		t.Fatalf("empty pool size %d is not 4-byte aligned", len(chunk))
	}
	pool, err := testdecode.DecodeStringPool(chunk)
	if err != nil {
		t.Fatalf("DecodeStringPool: %v", err)
	}
	if len(pool.Strings) != 0 {
		t.Fatalf("expected no strings, got %d", len(pool.Strings))
	}
}
