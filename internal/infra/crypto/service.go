package crypto

import (
	"fmt"
	"io"

	"keyward/internal/domain"
	"keyward/internal/infra/crypto/digest"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// PublicKeySize is the raw x||y encoding returned by DerivePublicKey.
	PublicKeySize = 64

	SignatureSize            = 64
	RecoverableSignatureSize = 65

	compactRecoveryBase = 27
)

// Service signs and verifies secp256k1 ECDSA signatures. It holds no state
// and is safe for concurrent use.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Sign produces a deterministic (RFC 6979) low-S signature over a 32-byte
// digest, encoded r||s||v with v the recovery id in [0, 3].
func (s *Service) Sign(material domain.KeyMaterial, digestBytes []byte, alg domain.HashAlgorithm) ([]byte, error) {
	d, err := digest.FromHash(alg, digestBytes)
	if err != nil {
		return nil, err
	}
	return s.SignDigest(material, d)
}

func (s *Service) SignDigest(material domain.KeyMaterial, d *digest.Adapter) ([]byte, error) {
	priv, err := privateKey(material)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	hash := d.Finalize()
	compact := ecdsa.SignCompact(priv, hash[:], false)
	return compactToRSV(compact), nil
}

// HashMessage hashes message with alg through a buffered adapter.
func (s *Service) HashMessage(message []byte, alg domain.HashAlgorithm) ([]byte, error) {
	d, err := digest.FromMessage(alg, message)
	if err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// DerivePublicKey returns the uncompressed point without its format byte.
// The point goes through its SubjectPublicKeyInfo encoding and back.
func (s *Service) DerivePublicKey(material domain.KeyMaterial) ([]byte, error) {
	priv, err := privateKey(material)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	der, err := MarshalPKIXPublicKey(priv.PubKey())
	if err != nil {
		return nil, err
	}
	return parsePKIXPoint(der)
}

// ValidateKeyMaterial reports whether material is a usable scalar (non-zero
// and below the curve order).
func (s *Service) ValidateKeyMaterial(material domain.KeyMaterial) error {
	priv, err := privateKey(material)
	if err != nil {
		return err
	}
	priv.Zero()
	return nil
}

// Verify checks signature over digest for publicKey. Undecodable encodings
// return ErrMalformedInput; a well-formed but wrong signature returns false.
func (s *Service) Verify(digestBytes, signature, publicKey []byte, alg domain.HashAlgorithm) (bool, error) {
	d, err := digest.FromHash(alg, digestBytes)
	if err != nil {
		return false, err
	}
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(signature) != SignatureSize && len(signature) != RecoverableSignatureSize {
		return false, fmt.Errorf("%w: signature must be %d or %d bytes, got %d", domain.ErrMalformedInput, SignatureSize, RecoverableSignatureSize, len(signature))
	}
	hash := d.Finalize()

	var r, sc secp256k1.ModNScalar
	if r.SetByteSlice(signature[:32]) || sc.SetByteSlice(signature[32:64]) || r.IsZero() || sc.IsZero() {
		return false, nil
	}
	if !ecdsa.NewSignature(&r, &sc).Verify(hash[:], pub) {
		return false, nil
	}
	if len(signature) == RecoverableSignatureSize {
		if signature[64] > 3 {
			return false, nil
		}
		recovered, _, err := ecdsa.RecoverCompact(rsvToCompact(signature), hash[:])
		if err != nil || !recovered.IsEqual(pub) {
			return false, nil
		}
	}
	return true, nil
}

// Recover returns the x||y public key that produced a recoverable signature.
func (s *Service) Recover(digestBytes, signature []byte, alg domain.HashAlgorithm) ([]byte, error) {
	d, err := digest.FromHash(alg, digestBytes)
	if err != nil {
		return nil, err
	}
	if len(signature) != RecoverableSignatureSize || signature[64] > 3 {
		return nil, fmt.Errorf("%w: recoverable signature must be %d bytes with v in [0,3]", domain.ErrMalformedInput, RecoverableSignatureSize)
	}
	hash := d.Finalize()
	pub, _, err := ecdsa.RecoverCompact(rsvToCompact(signature), hash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureVerificationFailed, err)
	}
	return pub.SerializeUncompressed()[1:], nil
}

// MakeRecoverable appends the recovery id to a plain r||s signature produced
// elsewhere for a known public key. A high-S signature is returned in its
// low-S form.
func (s *Service) MakeRecoverable(digestBytes, signature, publicKey []byte, alg domain.HashAlgorithm) ([]byte, error) {
	if len(signature) == RecoverableSignatureSize {
		signature = signature[:SignatureSize]
	}
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", domain.ErrMalformedInput, SignatureSize, len(signature))
	}
	d, err := digest.FromHash(alg, digestBytes)
	if err != nil {
		return nil, err
	}
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	hash := d.Finalize()
	rsv := make([]byte, RecoverableSignatureSize)
	copy(rsv, signature)
	var sc secp256k1.ModNScalar
	if overflow := sc.SetByteSlice(rsv[32:64]); overflow || sc.IsZero() {
		return nil, fmt.Errorf("%w: s is zero or not below the curve order", domain.ErrMalformedInput)
	}
	if sc.IsOverHalfOrder() {
		sc.Negate()
		sc.PutBytesUnchecked(rsv[32:64])
	}
	for v := byte(0); v < 4; v++ {
		rsv[64] = v
		recovered, _, err := ecdsa.RecoverCompact(rsvToCompact(rsv), hash[:])
		if err == nil && recovered.IsEqual(pub) {
			return rsv, nil
		}
	}
	return nil, domain.ErrSignatureVerificationFailed
}

// Address is the Ethereum-style checksummed address of publicKey.
func (s *Service) Address(publicKey []byte) (string, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	ecPub, err := ethcrypto.UnmarshalPubkey(pub.SerializeUncompressed())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return ethcrypto.PubkeyToAddress(*ecPub).Hex(), nil
}

// GenerateKeyMaterial draws scalars from rand until one is valid.
func (s *Service) GenerateKeyMaterial(rand io.Reader) (domain.KeyMaterial, error) {
	buf := make([]byte, domain.PrivateKeySize)
	for attempt := 0; attempt < 8; attempt++ {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return domain.KeyMaterial{}, fmt.Errorf("read randomness: %w", err)
		}
		material, err := domain.NewKeyMaterialFromBytes(buf)
		if err != nil {
			return domain.KeyMaterial{}, err
		}
		if s.ValidateKeyMaterial(material) == nil {
			return material, nil
		}
	}
	return domain.KeyMaterial{}, domain.ErrInvalidKeyMaterial
}

// ParsePublicKey accepts x||y (64 bytes), uncompressed SEC1 (65) or
// compressed SEC1 (33).
func ParsePublicKey(publicKey []byte) (*secp256k1.PublicKey, error) {
	raw := publicKey
	switch len(publicKey) {
	case PublicKeySize:
		raw = make([]byte, 0, PublicKeySize+1)
		raw = append(raw, 0x04)
		raw = append(raw, publicKey...)
	case secp256k1.PubKeyBytesLenUncompressed, secp256k1.PubKeyBytesLenCompressed:
	default:
		return nil, fmt.Errorf("%w: public key length %d", domain.ErrMalformedInput, len(publicKey))
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return pub, nil
}

// NormalizePublicKey converts any accepted encoding to x||y.
func NormalizePublicKey(publicKey []byte) ([]byte, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed()[1:], nil
}

func privateKey(material domain.KeyMaterial) (*secp256k1.PrivateKey, error) {
	raw := material.Bytes()
	defer zero(raw)
	var k secp256k1.ModNScalar
	overflow := k.SetByteSlice(raw)
	if overflow || k.IsZero() {
		return nil, fmt.Errorf("%w: scalar is zero or not below the curve order", domain.ErrInvalidKeyMaterial)
	}
	return secp256k1.NewPrivateKey(&k), nil
}

// compact signatures are [27+v] || r || s
func compactToRSV(compact []byte) []byte {
	out := make([]byte, RecoverableSignatureSize)
	copy(out, compact[1:])
	out[64] = compact[0] - compactRecoveryBase
	return out
}

func rsvToCompact(rsv []byte) []byte {
	out := make([]byte, RecoverableSignatureSize)
	out[0] = compactRecoveryBase + rsv[64]
	copy(out[1:], rsv[:64])
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
