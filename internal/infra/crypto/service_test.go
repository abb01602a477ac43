package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"keyward/internal/domain"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	keyOneHex   = "0000000000000000000000000000000000000000000000000000000000000001"
	generatorXY = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	curveOrderHex = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
)

func mustKey(t *testing.T, s string) domain.KeyMaterial {
	t.Helper()
	km, err := domain.NewKeyMaterialFromHex(s)
	if err != nil {
		t.Fatalf("key material: %v", err)
	}
	return km
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	return out
}

func randomDigest(t *testing.T) []byte {
	t.Helper()
	d := make([]byte, 32)
	if _, err := rand.Read(d); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return d
}

func TestDerivePublicKeyVectors(t *testing.T) {
	svc := NewService()
	cases := map[string]string{
		keyOneHex: generatorXY,
		"7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc": "596aeb66bc5ff38d998cdac5400ade74b1b5c124c53c77515b3b117d6fd9173f" +
			"8edcddd0a83adc53c17644f71383f39af027fa900773462bd69e3a7c5821f5aa",
		"6a73b985cfd0142ba4be36d8fc0654836509b419ad241161cc40dff62025a81d": "875c7e944b6a2f5c5166378f01f39a6f1a595e0250685d5ad1a9ffc56a0eef99" +
			"2fbb470b885dd36ac0575a287a3cf24731a98f7d41fb6859595bfb6278e0e068",
	}
	for keyHex, want := range cases {
		pub, err := svc.DerivePublicKey(mustKey(t, keyHex))
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if len(pub) != PublicKeySize {
			t.Fatalf("unexpected public key length %d", len(pub))
		}
		if got := hex.EncodeToString(pub); got != want {
			t.Fatalf("public key mismatch for %s...: %s", keyHex[:8], got)
		}
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	svc := NewService()
	for i := 0; i < 16; i++ {
		material, err := svc.GenerateKeyMaterial(rand.Reader)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		pub, err := svc.DerivePublicKey(material)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		for _, alg := range []domain.HashAlgorithm{domain.HashKeccak256, domain.HashSHA3_256} {
			d := randomDigest(t)
			sig, err := svc.Sign(material, d, alg)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if len(sig) != RecoverableSignatureSize || sig[64] > 3 {
				t.Fatalf("unexpected signature shape: len=%d v=%d", len(sig), sig[len(sig)-1])
			}
			ok, err := svc.Verify(d, sig, pub, alg)
			if err != nil || !ok {
				t.Fatalf("verify failed: ok=%v err=%v", ok, err)
			}
			ok, err = svc.Verify(d, sig[:64], pub, alg)
			if err != nil || !ok {
				t.Fatalf("verify r||s failed: ok=%v err=%v", ok, err)
			}
		}
	}
}

func TestSignIsDeterministicAndLowS(t *testing.T) {
	svc := NewService()
	material := mustKey(t, "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc")
	d := mustHex(t, "7d266152744bf8df4f7a2573d12856a635365fae4e74e19407fe3025a27a7733")
	first, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := svc.Sign(material, d, domain.HashSHA3_256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("signatures over the same precomputed digest must be identical")
	}
	n, _ := new(big.Int).SetString(curveOrderHex, 16)
	half := new(big.Int).Rsh(n, 1)
	if s := new(big.Int).SetBytes(first[32:64]); s.Cmp(half) > 0 {
		t.Fatal("expected low-S signature")
	}
}

func TestSignatureMatchesGoEthereum(t *testing.T) {
	svc := NewService()
	material := mustKey(t, "6a73b985cfd0142ba4be36d8fc0654836509b419ad241161cc40dff62025a81d")
	pub, err := svc.DerivePublicKey(material)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := ethcrypto.SigToPub(d, sig)
	if err != nil {
		t.Fatalf("go-ethereum recovery: %v", err)
	}
	if got := ethcrypto.FromECDSAPub(recovered)[1:]; !bytes.Equal(got, pub) {
		t.Fatal("go-ethereum recovered a different public key")
	}
	if !ethcrypto.VerifySignature(append([]byte{0x04}, pub...), d, sig[:64]) {
		t.Fatal("go-ethereum rejected the signature")
	}
}

func TestVerifyRejectsEveryBitFlip(t *testing.T) {
	svc := NewService()
	material := mustKey(t, "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc")
	pub, err := svc.DerivePublicKey(material)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for bit := 0; bit < len(sig)*8; bit++ {
		tampered := append([]byte(nil), sig...)
		tampered[bit/8] ^= 1 << (bit % 8)
		ok, err := svc.Verify(d, tampered, pub, domain.HashKeccak256)
		if err != nil {
			t.Fatalf("bit %d: unexpected error %v", bit, err)
		}
		if ok {
			t.Fatalf("bit %d: tampered signature verified", bit)
		}
	}
}

func TestVerifyWrongKeyOrDigest(t *testing.T) {
	svc := NewService()
	material := mustKey(t, keyOneHex)
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other, err := svc.DerivePublicKey(mustKey(t, "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if ok, err := svc.Verify(d, sig, other, domain.HashKeccak256); ok || err != nil {
		t.Fatalf("expected false for wrong key, got ok=%v err=%v", ok, err)
	}
	pub, _ := svc.DerivePublicKey(material)
	if ok, err := svc.Verify(randomDigest(t), sig, pub, domain.HashKeccak256); ok || err != nil {
		t.Fatalf("expected false for wrong digest, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyMalformedInputs(t *testing.T) {
	svc := NewService()
	pub := mustHex(t, generatorXY)
	d := randomDigest(t)
	if _, err := svc.Verify(d, make([]byte, 10), pub, domain.HashKeccak256); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for short signature, got %v", err)
	}
	if _, err := svc.Verify(d, make([]byte, 65), []byte{1, 2, 3}, domain.HashKeccak256); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for short public key, got %v", err)
	}
	notOnCurve := bytes.Repeat([]byte{0x01}, 64)
	if _, err := svc.Verify(d, make([]byte, 65), notOnCurve, domain.HashKeccak256); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for off-curve point, got %v", err)
	}
	if _, err := svc.Verify(d[:31], make([]byte, 65), pub, domain.HashKeccak256); !errors.Is(err, domain.ErrInvalidDigestLength) {
		t.Fatalf("expected ErrInvalidDigestLength, got %v", err)
	}
}

func TestVerifyAcceptsSEC1Encodings(t *testing.T) {
	svc := NewService()
	material := mustKey(t, keyOneHex)
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub, err := ParsePublicKey(mustHex(t, generatorXY))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, enc := range [][]byte{pub.SerializeUncompressed(), pub.SerializeCompressed()} {
		if ok, err := svc.Verify(d, sig, enc, domain.HashKeccak256); !ok || err != nil {
			t.Fatalf("verify with %d-byte key: ok=%v err=%v", len(enc), ok, err)
		}
	}
}

func TestSignRejectsInvalidScalar(t *testing.T) {
	svc := NewService()
	d := randomDigest(t)
	for _, keyHex := range []string{
		"0000000000000000000000000000000000000000000000000000000000000000",
		curveOrderHex,
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	} {
		if _, err := svc.Sign(mustKey(t, keyHex), d, domain.HashKeccak256); !errors.Is(err, domain.ErrInvalidKeyMaterial) {
			t.Fatalf("sign with %s...: expected ErrInvalidKeyMaterial, got %v", keyHex[:8], err)
		}
		if _, err := svc.DerivePublicKey(mustKey(t, keyHex)); !errors.Is(err, domain.ErrInvalidKeyMaterial) {
			t.Fatalf("derive with %s...: expected ErrInvalidKeyMaterial, got %v", keyHex[:8], err)
		}
	}
}

func TestSignAllZeroDigest(t *testing.T) {
	svc := NewService()
	material := mustKey(t, keyOneHex)
	zero := make([]byte, 32)
	sig, err := svc.Sign(material, zero, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := svc.Recover(zero, sig, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if hex.EncodeToString(recovered) != generatorXY {
		t.Fatal("all-zero digest must be signed as-is")
	}
}

func TestRecoverAndMakeRecoverable(t *testing.T) {
	svc := NewService()
	material := mustKey(t, "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc")
	pub, err := svc.DerivePublicKey(material)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := svc.Recover(d, sig, domain.HashKeccak256)
	if err != nil || !bytes.Equal(recovered, pub) {
		t.Fatalf("recover mismatch: %v", err)
	}
	rebuilt, err := svc.MakeRecoverable(d, sig[:64], pub, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("make recoverable: %v", err)
	}
	if !bytes.Equal(rebuilt, sig) {
		t.Fatal("recovery id mismatch")
	}
	if _, err := svc.MakeRecoverable(randomDigest(t), sig[:64], pub, domain.HashKeccak256); !errors.Is(err, domain.ErrSignatureVerificationFailed) {
		t.Fatalf("expected ErrSignatureVerificationFailed, got %v", err)
	}
	if _, err := svc.Recover(d, sig[:64], domain.HashKeccak256); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	svc := NewService()
	addr, err := svc.Address(mustHex(t, generatorXY))
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr != "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf" {
		t.Fatalf("unexpected address %s", addr)
	}
}

func TestGenerateKeyMaterialSkipsInvalidScalars(t *testing.T) {
	svc := NewService()
	stream := append(bytes.Repeat([]byte{0x00}, 32), mustHex(t, keyOneHex)...)
	material, err := svc.GenerateKeyMaterial(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if material.Hex() != keyOneHex {
		t.Fatal("expected the zero scalar to be skipped")
	}
	if _, err := svc.GenerateKeyMaterial(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error on exhausted randomness")
	}
}

func TestMakeRecoverableNormalizesHighS(t *testing.T) {
	svc := NewService()
	material := mustKey(t, "7009677dc021462d3db7ebc60077b6077f2b15837bf92b46ec5aa45afb820dbc")
	pub, err := svc.DerivePublicKey(material)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	d := randomDigest(t)
	sig, err := svc.Sign(material, d, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	n, _ := new(big.Int).SetString(curveOrderHex, 16)
	highS := new(big.Int).Sub(n, new(big.Int).SetBytes(sig[32:64]))
	malleated := make([]byte, SignatureSize)
	copy(malleated, sig[:32])
	highS.FillBytes(malleated[32:64])

	ok, err := svc.Verify(d, malleated, pub, domain.HashKeccak256)
	if err != nil || !ok {
		t.Fatalf("high-S signature should still verify: ok=%v err=%v", ok, err)
	}
	rebuilt, err := svc.MakeRecoverable(d, malleated, pub, domain.HashKeccak256)
	if err != nil {
		t.Fatalf("make recoverable: %v", err)
	}
	if !bytes.Equal(rebuilt, sig) {
		t.Fatalf("expected low-S form %x, got %x", sig, rebuilt)
	}
	recovered, err := svc.Recover(d, rebuilt, domain.HashKeccak256)
	if err != nil || !bytes.Equal(recovered, pub) {
		t.Fatalf("recover after normalization: %v", err)
	}
}
