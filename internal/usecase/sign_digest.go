package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keyward/internal/domain"
	"keyward/pkg/hexcodec"

	"go.uber.org/zap"
)

const (
	MethodSignDigest  = "sign_digest"
	MethodSignMessage = "sign_message"
)

type SignDigestRequest struct {
	Identity  domain.Identity
	KeyRef    string
	DigestHex string
	APIKey    string
	Algorithm domain.HashAlgorithm
}

type SignDigestResponse struct {
	Bundle domain.SignatureBundle
}

// SignDigest resolves a key, signs a 32-byte digest and returns the bundle
// only after the signature verified against the derived public key.
type SignDigest struct {
	Store        KeyCustodyStore
	Crypto       CryptoService
	Policy       PolicyEngine
	Algorithm    domain.HashAlgorithm
	AllowRawKeys bool
	Logger       *zap.Logger
}

func (uc *SignDigest) Execute(ctx context.Context, req SignDigestRequest) (*SignDigestResponse, error) {
	digest, err := decodeDigest(req.DigestHex)
	if err != nil {
		return nil, err
	}
	return uc.signDigest(ctx, MethodSignDigest, req, digest)
}

func (uc *SignDigest) signDigest(ctx context.Context, method string, req SignDigestRequest, digest []byte) (*SignDigestResponse, error) {
	if uc.Crypto == nil {
		return nil, errors.New("crypto service is nil")
	}
	log := nopIfNil(uc.Logger)
	alg := resolveAlgorithm(req.Algorithm, uc.Algorithm)

	ref, err := domain.ParseKeyRef(req.KeyRef)
	if err != nil {
		return nil, err
	}
	identity, err := resolveIdentity(ctx, uc.Store, req.Identity, req.APIKey)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, method, identity, ref, alg); err != nil {
		return nil, err
	}

	material := ref.Raw
	if ref.Source == domain.KeySourceStored {
		material, err = uc.loadKey(ctx, identity, ref.KeyID)
		if err != nil {
			return nil, err
		}
	}

	signature, err := uc.Crypto.Sign(material, digest, alg)
	if err != nil {
		return nil, err
	}
	publicKey, err := uc.Crypto.DerivePublicKey(material)
	if err != nil {
		return nil, err
	}
	ok, err := uc.Crypto.Verify(digest, signature, publicKey, alg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureVerificationFailed, err)
	}
	if !ok {
		return nil, domain.ErrSignatureVerificationFailed
	}
	address, err := uc.Crypto.Address(publicKey)
	if err != nil {
		return nil, err
	}

	log.Debug("digest signed",
		zap.String("method", method),
		zap.String("identity", string(identity)),
		zap.String("key_source", string(ref.Source)),
		zap.String("key_id", ref.KeyID),
		zap.String("algorithm", string(alg)),
	)
	return &SignDigestResponse{Bundle: domain.SignatureBundle{
		Digest:    digest,
		PublicKey: publicKey,
		Signature: signature,
		Algorithm: alg,
		KeyID:     ref.KeyID,
		Address:   address,
	}}, nil
}

func (uc *SignDigest) loadKey(ctx context.Context, identity domain.Identity, keyID string) (domain.KeyMaterial, error) {
	if identity.IsZero() {
		return domain.KeyMaterial{}, fmt.Errorf("%w: a key id requires a caller identity or api key", domain.ErrUnauthorized)
	}
	if uc.Store == nil {
		return domain.KeyMaterial{}, errors.New("key custody store is nil")
	}
	keyHex, err := uc.Store.GetPrivateKey(ctx, identity, keyID)
	if err != nil {
		return domain.KeyMaterial{}, err
	}
	return domain.NewKeyMaterialFromHex(keyHex)
}

func (uc *SignDigest) authorize(ctx context.Context, method string, identity domain.Identity, ref domain.KeyRef, alg domain.HashAlgorithm) error {
	if uc.Policy == nil {
		if ref.Source == domain.KeySourceRaw && !uc.AllowRawKeys {
			return fmt.Errorf("%w: raw private keys are disabled", domain.ErrPolicyDenied)
		}
		return nil
	}
	eval, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
		Identity:     string(identity),
		Method:       method,
		KeySource:    ref.Source,
		KeyID:        ref.KeyID,
		Algorithm:    string(alg),
		AllowRawKeys: uc.AllowRawKeys,
	})
	if err != nil {
		return fmt.Errorf("evaluate signing policy: %w", err)
	}
	return denyError(eval.Result)
}

func denyError(result domain.PolicyResult) error {
	if result.Allow {
		return nil
	}
	if len(result.Deny) == 0 {
		return domain.ErrPolicyDenied
	}
	codes := make([]string, 0, len(result.Deny))
	for _, d := range result.Deny {
		codes = append(codes, d.Code)
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(codes, ", "))
}

type SignMessageRequest struct {
	Identity   domain.Identity
	KeyRef     string
	MessageHex string
	APIKey     string
	Algorithm  domain.HashAlgorithm
}

// SignMessage hashes a raw message with the selected algorithm and signs the
// resulting digest through the SignDigest path.
type SignMessage struct {
	Digest *SignDigest
}

func (uc *SignMessage) Execute(ctx context.Context, req SignMessageRequest) (*SignDigestResponse, error) {
	if uc.Digest == nil || uc.Digest.Crypto == nil {
		return nil, errors.New("sign digest usecase is nil")
	}
	message, err := hexcodec.Decode(req.MessageHex)
	if err != nil {
		return nil, fmt.Errorf("%w: message", domain.ErrHexDecode)
	}
	alg := resolveAlgorithm(req.Algorithm, uc.Digest.Algorithm)
	digest, err := uc.Digest.Crypto.HashMessage(message, alg)
	if err != nil {
		return nil, err
	}
	return uc.Digest.signDigest(ctx, MethodSignMessage, SignDigestRequest{
		Identity:  req.Identity,
		KeyRef:    req.KeyRef,
		APIKey:    req.APIKey,
		Algorithm: alg,
	}, digest)
}
