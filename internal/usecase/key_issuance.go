package usecase

import (
	"context"
	"errors"
	"fmt"

	"keyward/internal/domain"
	"keyward/pkg/hexcodec"

	"go.uber.org/zap"
)

const defaultIssuanceAttempts = 8

// KeyIssuance creates API keys and custody keys from beacon randomness.
type KeyIssuance struct {
	Store       KeyCustodyStore
	Beacon      RandomBeacon
	Crypto      CryptoService
	MaxAttempts int
	Logger      *zap.Logger
}

// GenerateAPIKey replaces identity's API key with 32 fresh random bytes in
// hex. A candidate already held by another identity is drawn again, which
// keeps the reverse lookup unambiguous.
func (uc *KeyIssuance) GenerateAPIKey(ctx context.Context, identity domain.Identity) (string, error) {
	if err := uc.validate(identity); err != nil {
		return "", err
	}
	for attempt := 0; attempt < uc.attempts(); attempt++ {
		raw, err := uc.randomBytes(ctx)
		if err != nil {
			return "", err
		}
		candidate := hexcodec.Encode(raw)
		owner, taken, err := uc.Store.GetAPIKeyOwner(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken && owner != identity {
			nopIfNil(uc.Logger).Warn("api key collision; drawing again", zap.Int("attempt", attempt))
			continue
		}
		if err := uc.Store.SetAPIKey(ctx, identity, candidate); err != nil {
			return "", err
		}
		nopIfNil(uc.Logger).Info("api key issued", zap.String("identity", string(identity)))
		return candidate, nil
	}
	return "", fmt.Errorf("%w: no unused api key after %d attempts", domain.ErrExternalService, uc.attempts())
}

// GeneratePrivateKey stores a fresh scalar at identity's next key id.
// Randomness is fetched before the store is touched.
func (uc *KeyIssuance) GeneratePrivateKey(ctx context.Context, identity domain.Identity) (*domain.GeneratedKey, error) {
	if err := uc.validate(identity); err != nil {
		return nil, err
	}
	if uc.Crypto == nil {
		return nil, errors.New("crypto service is nil")
	}
	material, err := uc.drawKeyMaterial(ctx)
	if err != nil {
		return nil, err
	}
	publicKey, err := uc.Crypto.DerivePublicKey(material)
	if err != nil {
		return nil, err
	}
	address, err := uc.Crypto.Address(publicKey)
	if err != nil {
		return nil, err
	}
	keyID, err := uc.Store.AddPrivateKey(ctx, identity, material.Hex())
	if err != nil {
		return nil, err
	}
	nopIfNil(uc.Logger).Info("private key generated",
		zap.String("identity", string(identity)),
		zap.String("key_id", keyID),
		zap.String("address", address),
	)
	return &domain.GeneratedKey{KeyID: keyID, PublicKey: publicKey, Address: address}, nil
}

func (uc *KeyIssuance) drawKeyMaterial(ctx context.Context) (domain.KeyMaterial, error) {
	for attempt := 0; attempt < uc.attempts(); attempt++ {
		raw, err := uc.randomBytes(ctx)
		if err != nil {
			return domain.KeyMaterial{}, err
		}
		material, err := domain.NewKeyMaterialFromBytes(raw)
		if err != nil {
			return domain.KeyMaterial{}, err
		}
		if uc.Crypto.ValidateKeyMaterial(material) == nil {
			return material, nil
		}
	}
	return domain.KeyMaterial{}, fmt.Errorf("%w: no valid scalar after %d attempts", domain.ErrInvalidKeyMaterial, uc.attempts())
}

func (uc *KeyIssuance) randomBytes(ctx context.Context) ([]byte, error) {
	raw, err := uc.Beacon.RawRand(ctx)
	if err != nil {
		return nil, externalError("random beacon", err)
	}
	if len(raw) < domain.PrivateKeySize {
		return nil, fmt.Errorf("%w: random beacon returned %d bytes", domain.ErrExternalService, len(raw))
	}
	return raw[:domain.PrivateKeySize], nil
}

func (uc *KeyIssuance) validate(identity domain.Identity) error {
	if uc.Store == nil || uc.Beacon == nil {
		return errors.New("key issuance is not configured")
	}
	if identity.IsZero() {
		return fmt.Errorf("%w: caller identity is required", domain.ErrUnauthorized)
	}
	return nil
}

func (uc *KeyIssuance) attempts() int {
	if uc.MaxAttempts <= 0 {
		return defaultIssuanceAttempts
	}
	return uc.MaxAttempts
}
