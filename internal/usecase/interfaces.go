package usecase

import (
	"context"

	"keyward/internal/domain"
)

// KeyCustodyStore holds private keys and API keys per identity. Each call is
// atomic with respect to every other call on the same store.
type KeyCustodyStore interface {
	NextKeyID(ctx context.Context, identity domain.Identity) (string, error)
	SetPrivateKey(ctx context.Context, identity domain.Identity, keyID, keyHex string) error
	GetPrivateKey(ctx context.Context, identity domain.Identity, keyID string) (string, error)
	AddPrivateKey(ctx context.Context, identity domain.Identity, keyHex string) (string, error)
	SetAPIKey(ctx context.Context, identity domain.Identity, apiKey string) error
	GetAPIKeyOwner(ctx context.Context, apiKey string) (domain.Identity, bool, error)
	CountPrivateKeys(ctx context.Context, identity domain.Identity) (int, error)
}

type CryptoService interface {
	Sign(material domain.KeyMaterial, digest []byte, alg domain.HashAlgorithm) ([]byte, error)
	HashMessage(message []byte, alg domain.HashAlgorithm) ([]byte, error)
	DerivePublicKey(material domain.KeyMaterial) ([]byte, error)
	ValidateKeyMaterial(material domain.KeyMaterial) error
	Verify(digest, signature, publicKey []byte, alg domain.HashAlgorithm) (bool, error)
	Recover(digest, signature []byte, alg domain.HashAlgorithm) ([]byte, error)
	MakeRecoverable(digest, signature, publicKey []byte, alg domain.HashAlgorithm) ([]byte, error)
	Address(publicKey []byte) (string, error)
}

// RandomBeacon returns fresh randomness, at least 32 bytes per call.
type RandomBeacon interface {
	RawRand(ctx context.Context) ([]byte, error)
}

type ThresholdSigner interface {
	PublicKey(ctx context.Context, req domain.ThresholdPublicKeyRequest) ([]byte, error)
	SignWithECDSA(ctx context.Context, req domain.ThresholdSignRequest) ([]byte, error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}
