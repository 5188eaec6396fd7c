package gateway

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

// KeyFormat records how a shared secret string was interpreted.
// It is diagnostic metadata only; nothing downstream branches on it.
type KeyFormat string

const (
	KeyFormatHex    KeyFormat = "hex"
	KeyFormatBase64 KeyFormat = "base64"
	KeyFormatRaw    KeyFormat = "raw"
)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// DecodeSecret normalizes a shared-secret string of unknown encoding into raw
// key bytes. Probing order, first match wins:
//
//  1. even-length hex string → hex decode
//  2. base64 (right-padded with '=' to a multiple of 4) → base64 decode
//  3. anything else → raw UTF-8 bytes of the trimmed string
//
// Decoding never fails; correctness depends entirely on the heuristic
// matching the gateway's actual key encoding. Operators who know the
// encoding can pin it via DecodeSecretAs.
func DecodeSecret(secret string) ([]byte, KeyFormat) {
	trimmed := strings.TrimSpace(secret)

	if trimmed != "" && len(trimmed)%2 == 0 && hexPattern.MatchString(trimmed) {
		if b, err := hex.DecodeString(trimmed); err == nil {
			return b, KeyFormatHex
		}
	}

	padded := trimmed
	if rem := len(padded) % 4; rem != 0 {
		padded += strings.Repeat("=", 4-rem)
	}
	if b, err := base64.StdEncoding.DecodeString(padded); err == nil {
		return b, KeyFormatBase64
	}

	return []byte(trimmed), KeyFormatRaw
}

// DecodeSecretAs decodes with a declared format, bypassing the heuristic.
// An empty or unknown format falls back to DecodeSecret probing.
func DecodeSecretAs(secret string, format KeyFormat) ([]byte, KeyFormat) {
	trimmed := strings.TrimSpace(secret)
	switch format {
	case KeyFormatHex:
		if b, err := hex.DecodeString(trimmed); err == nil {
			return b, KeyFormatHex
		}
	case KeyFormatBase64:
		if b, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
			return b, KeyFormatBase64
		}
	case KeyFormatRaw:
		return []byte(trimmed), KeyFormatRaw
	}
	return DecodeSecret(secret)
}
