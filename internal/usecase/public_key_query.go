package usecase

import (
	"context"
	"errors"
	"fmt"

	"keyward/internal/domain"
)

type PublicKeyQueryRequest struct {
	Identity domain.Identity
	KeyID    string
	APIKey   string
}

// PublicKeyQuery returns the public key and address of a key in custody.
type PublicKeyQuery struct {
	Store  KeyCustodyStore
	Crypto CryptoService
}

func (uc *PublicKeyQuery) Execute(ctx context.Context, req PublicKeyQueryRequest) (*domain.GeneratedKey, error) {
	if uc.Store == nil || uc.Crypto == nil {
		return nil, errors.New("public key query is not configured")
	}
	ref, err := domain.ParseKeyRef(req.KeyID)
	if err != nil {
		return nil, err
	}
	if ref.Source != domain.KeySourceStored {
		return nil, fmt.Errorf("%w: expected a key id", domain.ErrInvalidRequest)
	}
	identity, err := resolveIdentity(ctx, uc.Store, req.Identity, req.APIKey)
	if err != nil {
		return nil, err
	}
	if identity.IsZero() {
		return nil, fmt.Errorf("%w: caller identity is required", domain.ErrUnauthorized)
	}
	keyHex, err := uc.Store.GetPrivateKey(ctx, identity, ref.KeyID)
	if err != nil {
		return nil, err
	}
	material, err := domain.NewKeyMaterialFromHex(keyHex)
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
	return &domain.GeneratedKey{KeyID: ref.KeyID, PublicKey: publicKey, Address: address}, nil
}
