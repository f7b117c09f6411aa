package mitm

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/sirupsen/logrus"
	"software.sslmate.com/src/go-pkcs12"
)

const (
	certificatePEMType = "CERTIFICATE"
	privateKeyPEMType  = "PRIVATE KEY"
)

// CertificateAndKey pairs a generated certificate with its private key.
type CertificateAndKey struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
}

// KeyStore is a built, password-protected key store ready to persist.
type KeyStore struct {
	Format string
	data   []byte
}

// Bytes returns the serialized key store.
func (ks *KeyStore) Bytes() []byte {
	return ks.data
}

// SecurityProvider performs the cryptographic construction and encoding work
// behind certificate generation: self-signing CA certificates, PEM encoding,
// and key store assembly. Swappable so tests can inject doubles.
type SecurityProvider interface {
	CreateCARootCertificate(info CertificateInfo, keys *KeyPair, digest string) (*CertificateAndKey, error)
	EncodeCertificateAsPEM(cert *x509.Certificate) (string, error)
	EncodePrivateKeyAsPEM(key crypto.PrivateKey, password, cipher string) (string, error)
	CreateRootCertificateKeyStore(format string, certAndKey *CertificateAndKey, alias, password string) (*KeyStore, error)
	SaveKeyStore(path string, ks *KeyStore) error
}

// DefaultSecurityProvider implements SecurityProvider on the standard
// library's x509 machinery, with go-pkcs12 and keystore-go for key stores.
type DefaultSecurityProvider struct{}

func (DefaultSecurityProvider) CreateCARootCertificate(info CertificateInfo, keys *KeyPair, digest string) (*CertificateAndKey, error) {
	sigAlg, err := signatureAlgorithm(digest, keys.Algorithm)
	if err != nil {
		return nil, err
	}

	serialNumber, err := randomSerialNumber()
	if err != nil {
		return nil, err
	}

	skid, err := subjectKeyID(keys.PublicKey)
	if err != nil {
		return nil, err
	}

	tpl := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      subjectName(info),
		SubjectKeyId: skid,

		NotBefore: info.NotBefore,
		NotAfter:  info.NotAfter,

		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,

		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,

		SignatureAlgorithm: sigAlg,
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, keys.PublicKey, keys.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("self-signing CA certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing generated CA certificate: %w", err)
	}

	return &CertificateAndKey{
		Certificate: cert,
		PrivateKey:  keys.PrivateKey,
	}, nil
}

func (DefaultSecurityProvider) EncodeCertificateAsPEM(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("certificate cannot be nil")
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  certificatePEMType,
		Bytes: cert.Raw,
	})), nil
}

func (DefaultSecurityProvider) EncodePrivateKeyAsPEM(key crypto.PrivateKey, password, cipher string) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("marshaling private key: %w", err)
	}

	if password == "" {
		logrus.Warnf("Encoding private key without a password. Private keys should not be stored unencrypted.")
		return string(pem.EncodeToMemory(&pem.Block{
			Type:  privateKeyPEMType,
			Bytes: der,
		})), nil
	}

	pemCipher, err := pemCipherByName(cipher)
	if err != nil {
		return "", err
	}

	//nolint:staticcheck // the OpenSSL legacy PEM encryption format is the export contract here
	block, err := x509.EncryptPEMBlock(rand.Reader, privateKeyPEMType, der, []byte(password), pemCipher)
	if err != nil {
		return "", fmt.Errorf("encrypting private key: %w", err)
	}
	return string(pem.EncodeToMemory(block)), nil
}

func (DefaultSecurityProvider) CreateRootCertificateKeyStore(format string, certAndKey *CertificateAndKey, alias, password string) (*KeyStore, error) {
	switch strings.ToUpper(format) {
	case "PKCS12":
		// The PKCS12 encoder stores the pair under a fixed friendly
		// name; the alias is accepted for interface symmetry.
		data, err := pkcs12.Modern.Encode(certAndKey.PrivateKey, certAndKey.Certificate, nil, password)
		if err != nil {
			return nil, fmt.Errorf("building PKCS12 key store: %w", err)
		}
		return &KeyStore{Format: "PKCS12", data: data}, nil

	case "JKS":
		der, err := x509.MarshalPKCS8PrivateKey(certAndKey.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("marshaling private key for JKS key store: %w", err)
		}

		ks := keystore.New()
		entry := keystore.PrivateKeyEntry{
			CreationTime: time.Now(),
			PrivateKey:   der,
			CertificateChain: []keystore.Certificate{{
				Type:    "X509",
				Content: certAndKey.Certificate.Raw,
			}},
		}
		if err := ks.SetPrivateKeyEntry(alias, entry, []byte(password)); err != nil {
			return nil, fmt.Errorf("adding private key entry to JKS key store: %w", err)
		}

		var buf bytes.Buffer
		if err := ks.Store(&buf, []byte(password)); err != nil {
			return nil, fmt.Errorf("serializing JKS key store: %w", err)
		}
		return &KeyStore{Format: "JKS", data: buf.Bytes()}, nil

	default:
		return nil, fmt.Errorf("unsupported key store format: %s", format)
	}
}

func (DefaultSecurityProvider) SaveKeyStore(path string, ks *KeyStore) error {
	if err := os.WriteFile(path, ks.data, 0600); err != nil {
		return fmt.Errorf("writing %s key store to %s: %w", ks.Format, path, err)
	}
	return nil
}

// signatureAlgorithm maps a digest name and key algorithm to the x509
// signature algorithm used for self-signing.
func signatureAlgorithm(digest, keyAlgorithm string) (x509.SignatureAlgorithm, error) {
	switch keyAlgorithm {
	case "RSA":
		switch digest {
		case "SHA256":
			return x509.SHA256WithRSA, nil
		case "SHA384":
			return x509.SHA384WithRSA, nil
		case "SHA512":
			return x509.SHA512WithRSA, nil
		}
	case "EC":
		switch digest {
		case "SHA256":
			return x509.ECDSAWithSHA256, nil
		case "SHA384":
			return x509.ECDSAWithSHA384, nil
		case "SHA512":
			return x509.ECDSAWithSHA512, nil
		}
	}
	return x509.UnknownSignatureAlgorithm, fmt.Errorf("unsupported digest %q for %s keys", digest, keyAlgorithm)
}

func pemCipherByName(name string) (x509.PEMCipher, error) {
	switch name {
	case "AES-128-CBC":
		return x509.PEMCipherAES128, nil
	case "AES-192-CBC":
		return x509.PEMCipherAES192, nil
	case "AES-256-CBC":
		return x509.PEMCipherAES256, nil
	case "DES-EDE3-CBC":
		return x509.PEMCipher3DES, nil
	default:
		return 0, fmt.Errorf("unsupported PEM encryption cipher: %s", name)
	}
}

func subjectName(info CertificateInfo) pkix.Name {
	name := pkix.Name{CommonName: info.CommonName}
	if info.Organization != "" {
		name.Organization = []string{info.Organization}
	}
	if info.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{info.OrganizationalUnit}
	}
	return name
}

func randomSerialNumber() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("generating certificate serial number: %w", err)
	}
	return serialNumber, nil
}

// subjectKeyID derives the subject key identifier from the SHA-1 hash of the
// subject public key bits, per RFC 5280 section 4.2.1.2.
func subjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spkiASN1, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}

	var spki struct {
		Algorithm        pkix.AlgorithmIdentifier
		SubjectPublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(spkiASN1, &spki); err != nil {
		return nil, fmt.Errorf("unmarshaling public key: %w", err)
	}

	skid := sha1.Sum(spki.SubjectPublicKey.Bytes)
	return skid[:], nil
}
