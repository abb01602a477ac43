package domain

// SignatureBundle is only ever built for a signature that verified against
// PublicKey over Digest.
type SignatureBundle struct {
	Digest    []byte
	PublicKey []byte
	Signature []byte
	Algorithm HashAlgorithm
	KeyID     string
	Address   string
}

// GeneratedKey describes a key freshly placed in custody.
type GeneratedKey struct {
	KeyID     string
	PublicKey []byte
	Address   string
}
