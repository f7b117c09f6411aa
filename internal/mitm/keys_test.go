package mitm

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSAKeyGenerator(t *testing.T) {
	pair, err := RSAKeyGenerator{Bits: 1024}.Generate()
	require.NoError(t, err)

	assert.Equal(t, "RSA", pair.Algorithm)

	key, ok := pair.PrivateKey.(*rsa.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, 1024, key.N.BitLen())
}

func TestRSAKeyGeneratorString(t *testing.T) {
	assert.Equal(t, "RSA (2048 bits)", RSAKeyGenerator{}.String())
	assert.Equal(t, "RSA (4096 bits)", RSAKeyGenerator{Bits: 4096}.String())
}

func TestECKeyGenerator(t *testing.T) {
	tests := []struct {
		name  string
		curve elliptic.Curve
		want  elliptic.Curve
	}{
		{name: "default curve", curve: nil, want: elliptic.P256()},
		{name: "explicit curve", curve: elliptic.P384(), want: elliptic.P384()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := ECKeyGenerator{Curve: tt.curve}.Generate()
			require.NoError(t, err)

			assert.Equal(t, "EC", pair.Algorithm)

			key, ok := pair.PrivateKey.(*ecdsa.PrivateKey)
			require.True(t, ok)
			assert.Equal(t, tt.want, key.Curve)
		})
	}
}
