package usecase

import (
	"context"
	"errors"
	"fmt"

	"keyward/internal/domain"
	"keyward/pkg/hexcodec"

	"go.uber.org/zap"
)

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func decodeDigest(digestHex string) ([]byte, error) {
	raw, err := hexcodec.Decode(digestHex)
	if err != nil {
		return nil, fmt.Errorf("%w: digest", domain.ErrHexDecode)
	}
	if len(raw) != domain.DigestSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrInvalidDigestLength, domain.DigestSize, len(raw))
	}
	return raw, nil
}

// resolveIdentity lets an API key stand in for the caller identity.
func resolveIdentity(ctx context.Context, store KeyCustodyStore, identity domain.Identity, apiKey string) (domain.Identity, error) {
	if apiKey == "" {
		return identity, nil
	}
	if store == nil {
		return "", errors.New("key custody store is nil")
	}
	owner, ok, err := store.GetAPIKeyOwner(ctx, apiKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown api key", domain.ErrUnauthorized)
	}
	return owner, nil
}

func resolveAlgorithm(requested, fallback domain.HashAlgorithm) domain.HashAlgorithm {
	if requested != "" {
		return requested
	}
	if fallback != "" {
		return fallback
	}
	return domain.DefaultHashAlgorithm
}

func externalError(op string, err error) error {
	if errors.Is(err, domain.ErrExternalService) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrExternalService, op, err)
}
