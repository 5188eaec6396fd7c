package gateway_test

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/esperanza/donation-gateway/internal/gateway"
)

func TestDecodeSecret_HexNeverFallsThrough(t *testing.T) {
	// Every even-length hex string must decode exactly like a reference hex
	// decoder, never reaching the base64 or raw branches.
	inputs := []string{
		"00",
		"deadbeef",
		"AABBCCDD",
		"aabbccddeeff00112233445566778899",
		"0123456789abcdefABCDEF0123456789",
	}
	for _, in := range inputs {
		got, format := gateway.DecodeSecret(in)
		if format != gateway.KeyFormatHex {
			t.Fatalf("DecodeSecret(%q): format=%s, want hex", in, format)
		}
		want, err := hex.DecodeString(in)
		if err != nil {
			t.Fatalf("reference decode of %q failed: %v", in, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("DecodeSecret(%q)=%x, want %x", in, got, want)
		}
	}
}

func TestDecodeSecret_OddLengthHexIsNotHex(t *testing.T) {
	// "abc" is hex characters but odd length: the hex branch must be skipped.
	got, format := gateway.DecodeSecret("abc")
	if format == gateway.KeyFormatHex {
		t.Fatal("odd-length hex string must not decode as hex")
	}
	// "abc" padded to "abc=" is valid base64.
	want, _ := base64.StdEncoding.DecodeString("abc=")
	if format != gateway.KeyFormatBase64 || !bytes.Equal(got, want) {
		t.Fatalf("got format=%s bytes=%x, want base64 %x", format, got, want)
	}
}

func TestDecodeSecret_Base64RoundTrip(t *testing.T) {
	// Non-hex base64 inputs must round-trip: re-encoding the recovered bytes
	// yields the (padded) input string.
	inputs := []string{
		"c2VjcmV0LWtleQ==",
		"c2VjcmV0LWtleQ",   // unpadded
		"dG9wLXNlY3JldCE=", // contains '!' once decoded
	}
	for _, in := range inputs {
		got, format := gateway.DecodeSecret(in)
		if format != gateway.KeyFormatBase64 {
			t.Fatalf("DecodeSecret(%q): format=%s, want base64", in, format)
		}
		padded := in
		for len(padded)%4 != 0 {
			padded += "="
		}
		if base64.StdEncoding.EncodeToString(got) != padded {
			t.Fatalf("DecodeSecret(%q) does not round-trip: got %x", in, got)
		}
	}
}

func TestDecodeSecret_RawFallback(t *testing.T) {
	in := "  pa$$word with spaces  "
	got, format := gateway.DecodeSecret(in)
	if format != gateway.KeyFormatRaw {
		t.Fatalf("format=%s, want raw", format)
	}
	if string(got) != "pa$$word with spaces" {
		t.Fatalf("raw fallback must trim: got %q", got)
	}
}

func TestDecodeSecretAs_PinnedFormat(t *testing.T) {
	// "deadbeef" probes as hex, but a pinned base64 format must win.
	got, format := gateway.DecodeSecretAs("deadbeef", gateway.KeyFormatBase64)
	if format != gateway.KeyFormatBase64 {
		t.Fatalf("format=%s, want base64", format)
	}
	want, _ := base64.StdEncoding.DecodeString("deadbeef")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}

	// Pinned raw keeps the literal bytes.
	got, format = gateway.DecodeSecretAs("deadbeef", gateway.KeyFormatRaw)
	if format != gateway.KeyFormatRaw || string(got) != "deadbeef" {
		t.Fatalf("pinned raw: got format=%s bytes=%q", format, got)
	}

	// Empty pin falls back to probing.
	_, format = gateway.DecodeSecretAs("deadbeef", "")
	if format != gateway.KeyFormatHex {
		t.Fatalf("unpinned: format=%s, want hex", format)
	}
}
