package domain

const ThresholdCurveSecp256k1 = "secp256k1"

type ThresholdKeyID struct {
	Curve string `json:"curve"`
	Name  string `json:"name"`
}

type ThresholdSignRequest struct {
	MessageHash    []byte         `json:"messageHash"`
	DerivationPath [][]byte       `json:"derivationPath"`
	KeyID          ThresholdKeyID `json:"keyId"`
}

type ThresholdSignReply struct {
	Signature []byte `json:"signature"`
}

type ThresholdPublicKeyRequest struct {
	DerivationPath [][]byte       `json:"derivationPath"`
	KeyID          ThresholdKeyID `json:"keyId"`
}

type ThresholdPublicKeyReply struct {
	PublicKey []byte `json:"publicKey"`
}
