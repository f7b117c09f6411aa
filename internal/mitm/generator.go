package mitm

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang/groupcache/singleflight"
	"github.com/sirupsen/logrus"
)

// DefaultMessageDigest is the digest used for self-signing when none is
// configured.
const DefaultMessageDigest = "SHA384"

// DefaultPEMEncryptionCipher encrypts private keys in PEM exports when a
// password is supplied.
const DefaultPEMEncryptionCipher = "AES-128-CBC"

// maxCommonNameLength is the X.509 ub-common-name limit.
const maxCommonNameLength = 64

// RootCertificateGenerator generates a CA root certificate and private key on
// first use. Generation happens at most once per instance, no matter how many
// goroutines call Load concurrently; a failed generation leaves the instance
// ungenerated so a later call can retry. The export methods return
// independent artifacts with no back-reference to the generator.
type RootCertificateGenerator struct {
	certInfo CertificateInfo
	digest   string
	keyGen   KeyGenerator
	provider SecurityProvider

	// Concurrent first loads collapse into a single generation; the result
	// is memoized only on success.
	group     singleflight.Group
	mu        sync.Mutex
	generated *CertificateAndKey
}

// NewRootCertificateGenerator builds a generator from explicit collaborators.
// Most callers want NewGeneratorBuilder instead.
func NewRootCertificateGenerator(info CertificateInfo, digest string, keyGen KeyGenerator, provider SecurityProvider) (*RootCertificateGenerator, error) {
	if info.NotBefore.IsZero() || info.NotAfter.IsZero() {
		return nil, fmt.Errorf("certificate info must carry a validity window")
	}
	if digest == "" {
		return nil, fmt.Errorf("message digest cannot be empty")
	}
	if keyGen == nil {
		return nil, fmt.Errorf("key generator cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("security provider cannot be nil")
	}

	return &RootCertificateGenerator{
		certInfo: info,
		digest:   digest,
		keyGen:   keyGen,
		provider: provider,
	}, nil
}

// Load returns the CA certificate and private key, generating them on the
// first call. Every subsequent call returns the identical value for the life
// of the instance.
func (g *RootCertificateGenerator) Load() (*CertificateAndKey, error) {
	g.mu.Lock()
	if g.generated != nil {
		defer g.mu.Unlock()
		return g.generated, nil
	}
	g.mu.Unlock()

	v, err := g.group.Do("root", func() (interface{}, error) {
		// A caller that lost the race to a completed generation lands
		// here after the group entry expired; re-check before working.
		g.mu.Lock()
		if g.generated != nil {
			defer g.mu.Unlock()
			return g.generated, nil
		}
		g.mu.Unlock()

		certAndKey, err := g.generate()
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.generated = certAndKey
		g.mu.Unlock()
		return certAndKey, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CertificateAndKey), nil
}

func (g *RootCertificateGenerator) generate() (*CertificateAndKey, error) {
	start := time.Now()

	keys, err := g.keyGen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating CA key pair: %w", err)
	}

	certAndKey, err := g.provider.CreateCARootCertificate(g.certInfo, keys, g.digest)
	if err != nil {
		return nil, fmt.Errorf("creating CA root certificate: %w", err)
	}

	logrus.Infof("Generated CA root certificate and private key in %s. Key generator: %v. Message digest: %s.",
		time.Since(start).Round(time.Millisecond), g.keyGen, g.digest)

	return certAndKey, nil
}

// EncodeRootCertificateAsPEM returns the CA certificate as a PEM string,
// generating the certificate first if needed.
func (g *RootCertificateGenerator) EncodeRootCertificateAsPEM() (string, error) {
	certAndKey, err := g.Load()
	if err != nil {
		return "", err
	}
	return g.provider.EncodeCertificateAsPEM(certAndKey.Certificate)
}

// EncodePrivateKeyAsPEM returns the CA private key as a PEM string. A
// non-empty password encrypts the key with DefaultPEMEncryptionCipher; an
// empty password stores it unencrypted, which is permitted but unsafe.
func (g *RootCertificateGenerator) EncodePrivateKeyAsPEM(password string) (string, error) {
	certAndKey, err := g.Load()
	if err != nil {
		return "", err
	}
	return g.provider.EncodePrivateKeyAsPEM(certAndKey.PrivateKey, password, DefaultPEMEncryptionCipher)
}

// SaveRootCertificateAsPEMFile writes the PEM-encoded CA certificate to the
// given path, overwriting any existing file.
func (g *RootCertificateGenerator) SaveRootCertificateAsPEMFile(path string) error {
	encoded, err := g.EncodeRootCertificateAsPEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(encoded), 0644); err != nil {
		return fmt.Errorf("writing CA certificate to %s: %w", path, err)
	}
	return nil
}

// SavePrivateKeyAsPEMFile writes the PEM-encoded CA private key to the given
// path, encrypted when the password is non-empty.
func (g *RootCertificateGenerator) SavePrivateKeyAsPEMFile(path, password string) error {
	encoded, err := g.EncodePrivateKeyAsPEM(password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("writing CA private key to %s: %w", path, err)
	}
	return nil
}

// SaveRootCertificateAndKey builds a key store of the given format holding
// the CA certificate and private key under alias, protected by password, and
// persists it to path.
func (g *RootCertificateGenerator) SaveRootCertificateAndKey(format, path, alias, password string) error {
	certAndKey, err := g.Load()
	if err != nil {
		return err
	}

	ks, err := g.provider.CreateRootCertificateKeyStore(format, certAndKey, alias, password)
	if err != nil {
		return err
	}
	return g.provider.SaveKeyStore(path, ks)
}

// GeneratorBuilder assembles a RootCertificateGenerator, filling in defaults
// for anything not supplied: RSA key generation, the default message digest,
// and a certificate valid from one year ago (so already-issued leaf
// certificates stay valid under clock skew) until one year from now, with an
// auto-derived common name.
type GeneratorBuilder struct {
	certInfo *CertificateInfo
	digest   string
	keyGen   KeyGenerator
	provider SecurityProvider
}

func NewGeneratorBuilder() *GeneratorBuilder {
	return &GeneratorBuilder{}
}

func (b *GeneratorBuilder) CertificateInfo(info CertificateInfo) *GeneratorBuilder {
	b.certInfo = &info
	return b
}

func (b *GeneratorBuilder) MessageDigest(digest string) *GeneratorBuilder {
	b.digest = digest
	return b
}

func (b *GeneratorBuilder) KeyGenerator(keyGen KeyGenerator) *GeneratorBuilder {
	b.keyGen = keyGen
	return b
}

func (b *GeneratorBuilder) SecurityProvider(provider SecurityProvider) *GeneratorBuilder {
	b.provider = provider
	return b
}

func (b *GeneratorBuilder) Build() (*RootCertificateGenerator, error) {
	info := b.certInfo
	if info == nil {
		defaultInfo := defaultCertificateInfo(time.Now())
		info = &defaultInfo
	}

	digest := b.digest
	if digest == "" {
		digest = DefaultMessageDigest
	}

	keyGen := b.keyGen
	if keyGen == nil {
		keyGen = RSAKeyGenerator{}
	}

	provider := b.provider
	if provider == nil {
		provider = DefaultSecurityProvider{}
	}

	return NewRootCertificateGenerator(*info, digest, keyGen, provider)
}

func defaultCertificateInfo(now time.Time) CertificateInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return CertificateInfo{
		CommonName:   defaultCommonName(hostname, now),
		Organization: "CA dynamically generated by mitm-core",
		NotBefore:    now.AddDate(-1, 0, 0),
		NotAfter:     now.AddDate(1, 0, 0),
	}
}

// defaultCommonName combines the local hostname and the current time,
// truncated to the X.509 CN length limit.
func defaultCommonName(hostname string, now time.Time) string {
	cn := fmt.Sprintf("Generated CA (%s) %s", hostname, now.Format("2006-01-02 15:04:05 MST"))
	if len(cn) > maxCommonNameLength {
		cn = cn[:maxCommonNameLength]
	}
	return cn
}
