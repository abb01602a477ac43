package crypto

import (
	encasn1 "encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"keyward/internal/domain"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const pemTypePublicKey = "PUBLIC KEY"

var (
	oidPublicKeyECDSA      = encasn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = encasn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// MarshalPKIXPublicKey encodes pub as a SubjectPublicKeyInfo DER structure.
func MarshalPKIXPublicKey(pub *secp256k1.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: public key is nil", domain.ErrMalformedInput)
	}
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(spki *cryptobyte.Builder) {
		spki.AddASN1(cbasn1.SEQUENCE, func(alg *cryptobyte.Builder) {
			alg.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			alg.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		spki.AddASN1BitString(pub.SerializeUncompressed())
	})
	return b.Bytes()
}

// EncodePublicKeyPEM renders any accepted public key encoding as a PEM
// "PUBLIC KEY" block.
func EncodePublicKeyPEM(publicKey []byte) (string, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	der, err := MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der})), nil
}

// ExtractPublicKey returns x||y from a PEM "PUBLIC KEY" block or from bare
// base64 DER.
func ExtractPublicKey(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty public key", domain.ErrMalformedInput)
	}
	var der []byte
	if strings.HasPrefix(text, "-----BEGIN") {
		block, _ := pem.Decode([]byte(text))
		if block == nil {
			return nil, fmt.Errorf("%w: invalid PEM framing", domain.ErrBase64Decode)
		}
		if block.Type != pemTypePublicKey {
			return nil, fmt.Errorf("%w: unexpected PEM type %q", domain.ErrMalformedInput, block.Type)
		}
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBase64Decode, err)
		}
		der = decoded
	}
	return parsePKIXPoint(der)
}

func parsePKIXPoint(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var spki, alg cryptobyte.String
	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("%w: invalid SubjectPublicKeyInfo", domain.ErrMalformedInput)
	}
	if !spki.ReadASN1(&alg, cbasn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: invalid algorithm identifier", domain.ErrMalformedInput)
	}
	var algOID, curveOID encasn1.ObjectIdentifier
	if !alg.ReadASN1ObjectIdentifier(&algOID) || !algOID.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("%w: not an EC public key", domain.ErrMalformedInput)
	}
	if !alg.ReadASN1ObjectIdentifier(&curveOID) || !curveOID.Equal(oidNamedCurveSecp256k1) || !alg.Empty() {
		return nil, fmt.Errorf("%w: not a secp256k1 key", domain.ErrMalformedInput)
	}
	var bits encasn1.BitString
	if !spki.ReadASN1BitString(&bits) || !spki.Empty() || bits.BitLength%8 != 0 {
		return nil, fmt.Errorf("%w: invalid public key bit string", domain.ErrMalformedInput)
	}
	point := bits.Bytes
	if len(point) != secp256k1.PubKeyBytesLenUncompressed || point[0] != 0x04 {
		return nil, fmt.Errorf("%w: expected uncompressed point", domain.ErrMalformedInput)
	}
	out := make([]byte, PublicKeySize)
	copy(out, point[1:])
	return out, nil
}
