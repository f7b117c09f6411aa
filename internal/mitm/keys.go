// CA root certificate generation for TLS interception
package mitm

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// DefaultRSABits is the RSA modulus size used when none is configured.
const DefaultRSABits = 2048

// KeyPair is a freshly generated asymmetric key pair tagged with its
// algorithm. Ownership passes to whichever component consumes it; it is never
// mutated after creation.
type KeyPair struct {
	Algorithm  string
	PublicKey  crypto.PublicKey
	PrivateKey crypto.PrivateKey
}

// KeyGenerator produces the key pair that a certificate will be built
// around. Implementations must be safe for concurrent use.
type KeyGenerator interface {
	Generate() (*KeyPair, error)
}

// RSAKeyGenerator generates RSA key pairs. The zero value generates
// DefaultRSABits keys.
type RSAKeyGenerator struct {
	Bits int
}

func (g RSAKeyGenerator) Generate() (*KeyPair, error) {
	bits := g.Bits
	if bits == 0 {
		bits = DefaultRSABits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key pair: %w", err)
	}

	return &KeyPair{
		Algorithm:  "RSA",
		PublicKey:  key.Public(),
		PrivateKey: key,
	}, nil
}

func (g RSAKeyGenerator) String() string {
	bits := g.Bits
	if bits == 0 {
		bits = DefaultRSABits
	}
	return fmt.Sprintf("RSA (%d bits)", bits)
}

// ECKeyGenerator generates ECDSA key pairs. The zero value uses P-256.
type ECKeyGenerator struct {
	Curve elliptic.Curve
}

func (g ECKeyGenerator) Generate() (*KeyPair, error) {
	curve := g.Curve
	if curve == nil {
		curve = elliptic.P256()
	}

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating EC key pair: %w", err)
	}

	return &KeyPair{
		Algorithm:  "EC",
		PublicKey:  key.Public(),
		PrivateKey: key,
	}, nil
}

func (g ECKeyGenerator) String() string {
	curve := g.Curve
	if curve == nil {
		curve = elliptic.P256()
	}
	return fmt.Sprintf("EC (%s)", curve.Params().Name)
}
