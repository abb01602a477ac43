// Package hexcodec converts between bytes and lowercase hex strings.
package hexcodec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Encode returns the lowercase hex form of data.
func Encode(data []byte) string {
	return hex.EncodeToString(data)
}

// Decode accepts upper or lower case hex, with or without a 0x prefix.
func Decode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return out, nil
}

// DecodeFixed decodes s and requires exactly size bytes.
func DecodeFixed(s string, size int) ([]byte, error) {
	out, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, fmt.Errorf("decode hex: expected %d bytes, got %d", size, len(out))
	}
	return out, nil
}
