// Package digest carries either a precomputed 32-byte hash or a message
// buffer that is hashed on Finalize, so one signing path serves both callers
// that already hashed and callers that supply raw bytes.
package digest

import (
	"errors"
	"fmt"

	"keyward/internal/domain"

	"golang.org/x/crypto/sha3"
)

var errPrecomputedReadOnly = errors.New("precomputed digest does not accept message bytes")

type kind uint8

const (
	kindBuffered kind = iota
	kindPrecomputed
)

// Adapter is a tagged variant: precomputed values are returned verbatim,
// including an all-zero hash.
type Adapter struct {
	alg  domain.HashAlgorithm
	kind kind
	hash [domain.DigestSize]byte
	buf  []byte
}

// FromHash wraps an already computed digest.
func FromHash(alg domain.HashAlgorithm, h []byte) (*Adapter, error) {
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: unsupported hash algorithm %q", domain.ErrInvalidRequest, alg)
	}
	if len(h) != domain.DigestSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrInvalidDigestLength, domain.DigestSize, len(h))
	}
	a := &Adapter{alg: alg, kind: kindPrecomputed}
	copy(a.hash[:], h)
	return a, nil
}

// New returns a buffering adapter hashed with alg on Finalize.
func New(alg domain.HashAlgorithm) (*Adapter, error) {
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: unsupported hash algorithm %q", domain.ErrInvalidRequest, alg)
	}
	return &Adapter{alg: alg, kind: kindBuffered}, nil
}

// FromMessage is New followed by Update(msg).
func FromMessage(alg domain.HashAlgorithm, msg []byte) (*Adapter, error) {
	a, err := New(alg)
	if err != nil {
		return nil, err
	}
	if err := a.Update(msg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) Algorithm() domain.HashAlgorithm {
	return a.alg
}

func (a *Adapter) Precomputed() bool {
	return a.kind == kindPrecomputed
}

func (a *Adapter) Update(p []byte) error {
	if a.kind == kindPrecomputed {
		return errPrecomputedReadOnly
	}
	a.buf = append(a.buf, p...)
	return nil
}

// Write implements io.Writer on top of Update.
func (a *Adapter) Write(p []byte) (int, error) {
	if err := a.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *Adapter) Finalize() [domain.DigestSize]byte {
	if a.kind == kindPrecomputed {
		return a.hash
	}
	return sum(a.alg, a.buf)
}

// Bytes is Finalize as a slice.
func (a *Adapter) Bytes() []byte {
	out := a.Finalize()
	return out[:]
}

// Reset drops buffered bytes; a precomputed hash is kept.
func (a *Adapter) Reset() {
	a.buf = nil
}

// sum expects alg to have been checked by New or FromHash.
func sum(alg domain.HashAlgorithm, data []byte) [domain.DigestSize]byte {
	var out [domain.DigestSize]byte
	switch alg {
	case domain.HashSHA3_256:
		return sha3.Sum256(data)
	default:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		copy(out[:], h.Sum(nil))
		return out
	}
}
