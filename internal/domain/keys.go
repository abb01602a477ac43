package domain

import (
	"fmt"
	"strings"

	"keyward/pkg/hexcodec"
)

// PrivateKeySize is the length of a secp256k1 private scalar.
const PrivateKeySize = 32

// KeyMaterial is an immutable 32-byte private scalar. Range validation
// against the curve order happens when the key is used to sign.
type KeyMaterial struct {
	data [PrivateKeySize]byte
}

func NewKeyMaterialFromHex(s string) (KeyMaterial, error) {
	if len(s) != PrivateKeySize*2 {
		return KeyMaterial{}, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidKeyLength, PrivateKeySize*2, len(s))
	}
	raw, err := hexcodec.Decode(s)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("%w: private key", ErrHexDecode)
	}
	return NewKeyMaterialFromBytes(raw)
}

func NewKeyMaterialFromBytes(b []byte) (KeyMaterial, error) {
	if len(b) != PrivateKeySize {
		return KeyMaterial{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyLength, PrivateKeySize, len(b))
	}
	var km KeyMaterial
	copy(km.data[:], b)
	return km, nil
}

// Bytes returns a copy of the scalar.
func (k KeyMaterial) Bytes() []byte {
	out := make([]byte, PrivateKeySize)
	copy(out, k.data[:])
	return out
}

func (k KeyMaterial) Hex() string {
	return hexcodec.Encode(k.data[:])
}

func (k KeyMaterial) Len() int {
	return PrivateKeySize
}

// String is redacted so key material never ends up in logs.
func (k KeyMaterial) String() string {
	return "KeyMaterial(redacted)"
}

func (k KeyMaterial) GoString() string {
	return k.String()
}

type KeySource string

const (
	KeySourceRaw      KeySource = "raw"
	KeySourceStored   KeySource = "stored"
	KeySourceExternal KeySource = "external"
)

// KeyRef is how a signing request names its key: either raw key material
// supplied inline, or the id of a key held in custody for the caller.
type KeyRef struct {
	Source KeySource
	KeyID  string
	Raw    KeyMaterial
}

// ParseKeyRef treats an all-decimal value shorter than a hex scalar as a key
// id; anything else must be 64 hex characters of key material.
func ParseKeyRef(value string) (KeyRef, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return KeyRef{}, fmt.Errorf("%w: key reference is required", ErrInvalidRequest)
	}
	if len(value) < PrivateKeySize*2 && isDecimal(value) {
		return KeyRef{Source: KeySourceStored, KeyID: value}, nil
	}
	material, err := NewKeyMaterialFromHex(value)
	if err != nil {
		return KeyRef{}, err
	}
	return KeyRef{Source: KeySourceRaw, Raw: material}, nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
