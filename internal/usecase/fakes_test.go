package usecase

import (
	"context"
	"errors"
	"sync"

	"keyward/internal/domain"
	"keyward/internal/infra/crypto"
)

const (
	testKeyHex    = "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc"
	testPubHex    = "596aeb66bc5ff38d998cdac5400ade74b1b5c124c53c77515b3b117d6fd9173f8edcddd0a83adc53c17644f71383f39af027fa900773462bd69e3a7c5821f5aa"
	testDigestHex = "7d266152744bf8df4f7a2573d12856a635365fae4e74e19407fe3025a27a7733"
)

// countingCrypto records how often Sign runs.
type countingCrypto struct {
	*crypto.Service
	mu    sync.Mutex
	signs int
}

func newCountingCrypto() *countingCrypto {
	return &countingCrypto{Service: crypto.NewService()}
}

func (c *countingCrypto) Sign(material domain.KeyMaterial, digest []byte, alg domain.HashAlgorithm) ([]byte, error) {
	c.mu.Lock()
	c.signs++
	c.mu.Unlock()
	return c.Service.Sign(material, digest, alg)
}

func (c *countingCrypto) signCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signs
}

type brokenVerifier struct {
	*crypto.Service
}

func (brokenVerifier) Verify(_, _, _ []byte, _ domain.HashAlgorithm) (bool, error) {
	return false, nil
}

type queueBeacon struct {
	mu      sync.Mutex
	outputs [][]byte
	err     error
}

func (b *queueBeacon) RawRand(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if len(b.outputs) == 0 {
		return nil, errors.New("beacon exhausted")
	}
	out := b.outputs[0]
	b.outputs = b.outputs[1:]
	return out, nil
}

type staticPolicy struct {
	result domain.PolicyResult
	err    error
	inputs []domain.PolicyInput
}

func (p *staticPolicy) Evaluate(_ context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	p.inputs = append(p.inputs, input)
	if p.err != nil {
		return domain.PolicyEvaluation{}, p.err
	}
	return domain.PolicyEvaluation{Result: p.result}, nil
}

// localThreshold answers like the remote service, signing with a fixed key.
type localThreshold struct {
	key       domain.KeyMaterial
	svc       *crypto.Service
	compress  bool
	block     bool
	signErr   error
	badLength bool
	requests  []domain.ThresholdSignRequest
}

func (l *localThreshold) PublicKey(ctx context.Context, req domain.ThresholdPublicKeyRequest) ([]byte, error) {
	pub, err := l.svc.DerivePublicKey(l.key)
	if err != nil {
		return nil, err
	}
	if !l.compress {
		return pub, nil
	}
	parsed, err := crypto.ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return parsed.SerializeCompressed(), nil
}

func (l *localThreshold) SignWithECDSA(ctx context.Context, req domain.ThresholdSignRequest) ([]byte, error) {
	l.requests = append(l.requests, req)
	if l.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if l.signErr != nil {
		return nil, l.signErr
	}
	sig, err := l.svc.Sign(l.key, req.MessageHash, domain.DefaultHashAlgorithm)
	if err != nil {
		return nil, err
	}
	if l.badLength {
		return sig[:40], nil
	}
	return sig[:64], nil
}
