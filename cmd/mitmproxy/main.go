package main

import (
	"os"
	"time"

	"github.com/proxykit/mitm-core/internal/config"
	"github.com/proxykit/mitm-core/internal/dns"
	"github.com/proxykit/mitm-core/internal/mitm"
	"github.com/proxykit/mitm-core/internal/proxy"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	ca, err := buildCA(cfg)
	if err != nil {
		logrus.Fatalf("Failed to build CA generator: %v", err)
	}

	if err := exportCA(cfg, ca); err != nil {
		logrus.Fatalf("Failed to export CA artifacts: %v", err)
	}

	resolver, err := buildResolver(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create resolver: %v", err)
	}

	server, err := proxy.New(cfg, ca, resolver)
	if err != nil {
		logrus.Fatalf("Failed to create proxy server: %v", err)
	}

	// DNS cache TTLs follow the config file without a restart.
	stop, err := config.Watch(configPath, func(next *config.Config) {
		applyDNSTTLs(next, resolver)
	})
	if err != nil {
		logrus.Warnf("Config watching disabled: %v", err)
	} else {
		defer func() { _ = stop() }()
	}

	if err := server.Start(); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
}

func buildCA(cfg *config.Config) (*mitm.RootCertificateGenerator, error) {
	builder := mitm.NewGeneratorBuilder()

	if cfg.CA.CommonName != "" || cfg.CA.Organization != "" {
		now := time.Now()
		builder.CertificateInfo(mitm.CertificateInfo{
			CommonName:   cfg.CA.CommonName,
			Organization: cfg.CA.Organization,
			NotBefore:    now.AddDate(-1, 0, 0),
			NotAfter:     now.AddDate(1, 0, 0),
		})
	}
	if cfg.CA.KeyBits != 0 {
		builder.KeyGenerator(mitm.RSAKeyGenerator{Bits: cfg.CA.KeyBits})
	}

	return builder.Build()
}

// exportCA writes the root certificate, private key and key store to the
// locations the config asks for, so clients can install and trust the CA.
func exportCA(cfg *config.Config, ca *mitm.RootCertificateGenerator) error {
	if cfg.CA.CertFile != "" {
		if err := ca.SaveRootCertificateAsPEMFile(cfg.CA.CertFile); err != nil {
			return err
		}
		logrus.Infof("Root certificate written to %s", cfg.CA.CertFile)
	}

	if cfg.CA.KeyFile != "" {
		if err := ca.SavePrivateKeyAsPEMFile(cfg.CA.KeyFile, cfg.CA.KeyPassword); err != nil {
			return err
		}
		logrus.Infof("Private key written to %s", cfg.CA.KeyFile)
	}

	if ks := cfg.CA.KeyStore; ks.Path != "" {
		if err := ca.SaveRootCertificateAndKey(ks.Format, ks.Path, ks.Alias, ks.Password); err != nil {
			return err
		}
		logrus.Infof("%s key store written to %s", ks.Format, ks.Path)
	}

	return nil
}

func buildResolver(cfg *config.Config) (*dns.Resolver, error) {
	positiveTTL, err := cfg.GetPositiveTTL()
	if err != nil {
		return nil, err
	}
	negativeTTL, err := cfg.GetNegativeTTL()
	if err != nil {
		return nil, err
	}

	return dns.NewResolver(
		dns.WithPositiveTTL(positiveTTL),
		dns.WithNegativeTTL(negativeTTL),
	)
}

func applyDNSTTLs(cfg *config.Config, resolver *dns.Resolver) {
	if positiveTTL, err := cfg.GetPositiveTTL(); err == nil {
		resolver.SetPositiveCacheTimeout(positiveTTL)
	}
	if negativeTTL, err := cfg.GetNegativeTTL(); err == nil {
		resolver.SetNegativeCacheTimeout(negativeTTL)
	}
}
