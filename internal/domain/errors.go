package domain

import "errors"

var (
	ErrInvalidKeyLength            = errors.New("invalid key length")
	ErrInvalidDigestLength         = errors.New("invalid digest length")
	ErrHexDecode                   = errors.New("hex decode failed")
	ErrBase64Decode                = errors.New("base64 decode failed")
	ErrKeyNotFound                 = errors.New("key not found")
	ErrDuplicateKey                = errors.New("duplicate key")
	ErrMalformedInput              = errors.New("malformed signature or public key")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrExternalService             = errors.New("external service error")

	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPolicyDenied       = errors.New("policy denied")
)
