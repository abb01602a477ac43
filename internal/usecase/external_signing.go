package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyward/internal/domain"

	"go.uber.org/zap"
)

const MethodSignExternal = "sign_via_external_service"

type ExternalSigningRequest struct {
	Identity  domain.Identity
	DigestHex string
}

// ExternalSigning asks a remote threshold-ECDSA service for a signature
// under a key derived from the caller identity. It never touches the
// custody store.
type ExternalSigning struct {
	Threshold ThresholdSigner
	Crypto    CryptoService
	Policy    PolicyEngine
	KeyName   string
	Timeout   time.Duration
	Algorithm domain.HashAlgorithm
	Logger    *zap.Logger
}

func (uc *ExternalSigning) Execute(ctx context.Context, req ExternalSigningRequest) (*SignDigestResponse, error) {
	digest, err := decodeDigest(req.DigestHex)
	if err != nil {
		return nil, err
	}
	if uc.Crypto == nil {
		return nil, errors.New("crypto service is nil")
	}
	if req.Identity.IsZero() {
		return nil, fmt.Errorf("%w: caller identity is required", domain.ErrUnauthorized)
	}
	alg := resolveAlgorithm("", uc.Algorithm)
	if err := uc.authorize(ctx, req.Identity, alg); err != nil {
		return nil, err
	}
	if uc.Threshold == nil {
		return nil, fmt.Errorf("%w: threshold signer is not configured", domain.ErrExternalService)
	}
	if uc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.Timeout)
		defer cancel()
	}
	keyID := domain.ThresholdKeyID{Curve: domain.ThresholdCurveSecp256k1, Name: uc.KeyName}
	path := [][]byte{[]byte(req.Identity)}

	remoteKey, err := uc.Threshold.PublicKey(ctx, domain.ThresholdPublicKeyRequest{
		DerivationPath: path,
		KeyID:          keyID,
	})
	if err != nil {
		return nil, externalError("ecdsa_public_key", err)
	}
	signature, err := uc.Threshold.SignWithECDSA(ctx, domain.ThresholdSignRequest{
		MessageHash:    digest,
		DerivationPath: path,
		KeyID:          keyID,
	})
	if err != nil {
		return nil, externalError("sign_with_ecdsa", err)
	}

	ok, err := uc.Crypto.Verify(digest, signature, remoteKey, alg)
	if err != nil {
		return nil, externalError("malformed reply", err)
	}
	if !ok {
		return nil, domain.ErrSignatureVerificationFailed
	}
	recoverable, err := uc.Crypto.MakeRecoverable(digest, signature, remoteKey, alg)
	if err != nil {
		return nil, err
	}
	publicKey, err := uc.Crypto.Recover(digest, recoverable, alg)
	if err != nil {
		return nil, err
	}
	address, err := uc.Crypto.Address(publicKey)
	if err != nil {
		return nil, err
	}

	nopIfNil(uc.Logger).Info("external signature obtained",
		zap.String("identity", string(req.Identity)),
		zap.String("key_name", uc.KeyName),
		zap.String("address", address),
	)
	return &SignDigestResponse{Bundle: domain.SignatureBundle{
		Digest:    digest,
		PublicKey: publicKey,
		Signature: recoverable,
		Algorithm: alg,
		Address:   address,
	}}, nil
}

func (uc *ExternalSigning) authorize(ctx context.Context, identity domain.Identity, alg domain.HashAlgorithm) error {
	if uc.Policy == nil {
		return nil
	}
	eval, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
		Identity:  string(identity),
		Method:    MethodSignExternal,
		KeySource: domain.KeySourceExternal,
		Algorithm: string(alg),
	})
	if err != nil {
		return fmt.Errorf("evaluate signing policy: %w", err)
	}
	return denyError(eval.Result)
}
