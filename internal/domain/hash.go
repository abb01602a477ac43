package domain

import (
	"fmt"
	"strings"
)

// DigestSize is the length of every digest the signer accepts.
const DigestSize = 32

type HashAlgorithm string

const (
	HashKeccak256 HashAlgorithm = "keccak256"
	HashSHA3_256  HashAlgorithm = "sha3-256"
)

const DefaultHashAlgorithm = HashKeccak256

func ParseHashAlgorithm(value string) (HashAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return DefaultHashAlgorithm, nil
	case "keccak256", "keccak-256":
		return HashKeccak256, nil
	case "sha3-256", "sha3_256":
		return HashSHA3_256, nil
	default:
		return "", fmt.Errorf("%w: unsupported hash algorithm %q", ErrInvalidRequest, value)
	}
}

func (a HashAlgorithm) Valid() bool {
	return a == HashKeccak256 || a == HashSHA3_256
}
