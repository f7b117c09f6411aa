package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	CA     CAConfig     `yaml:"ca"`
	DNS    DNSConfig    `yaml:"dns"`
}

// ServerConfig contains proxy listener configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// TransparentHTTPSAddr, when set, accepts raw TLS connections and
	// routes them by SNI instead of requiring a CONNECT request.
	TransparentHTTPSAddr string `yaml:"transparent_https_addr"`
}

// CAConfig controls root certificate generation and export
type CAConfig struct {
	CommonName   string         `yaml:"common_name"`
	Organization string         `yaml:"organization"`
	KeyBits      int            `yaml:"key_bits"`
	CertFile     string         `yaml:"cert_file"`
	KeyFile      string         `yaml:"key_file"`
	KeyPassword  string         `yaml:"key_password"`
	KeyStore     KeyStoreConfig `yaml:"key_store"`
}

// KeyStoreConfig describes an optional key store export of the root CA
type KeyStoreConfig struct {
	Format   string `yaml:"format"`
	Path     string `yaml:"path"`
	Alias    string `yaml:"alias"`
	Password string `yaml:"password"`
}

// DNSConfig contains resolver cache configuration
type DNSConfig struct {
	PositiveTTL string `yaml:"positive_ttl"`
	NegativeTTL string `yaml:"negative_ttl"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Set defaults
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.DNS.PositiveTTL == "" {
		config.DNS.PositiveTTL = "5m"
	}
	if config.DNS.NegativeTTL == "" {
		config.DNS.NegativeTTL = "10s"
	}
	if config.CA.KeyStore.Path != "" {
		if config.CA.KeyStore.Format == "" {
			config.CA.KeyStore.Format = "PKCS12"
		}
		if config.CA.KeyStore.Alias == "" {
			config.CA.KeyStore.Alias = "mitm-core"
		}
	}

	return &config, nil
}

// GetPositiveTTL parses and returns the positive DNS cache TTL
func (c *Config) GetPositiveTTL() (time.Duration, error) {
	return time.ParseDuration(c.DNS.PositiveTTL)
}

// GetNegativeTTL parses and returns the negative DNS cache TTL
func (c *Config) GetNegativeTTL() (time.Duration, error) {
	return time.ParseDuration(c.DNS.NegativeTTL)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}

	if _, err := c.GetPositiveTTL(); err != nil {
		return fmt.Errorf("invalid positive DNS TTL: %w", err)
	}

	if _, err := c.GetNegativeTTL(); err != nil {
		return fmt.Errorf("invalid negative DNS TTL: %w", err)
	}

	if c.CA.KeyBits < 0 {
		return fmt.Errorf("invalid CA key bits: %d", c.CA.KeyBits)
	}

	if c.CA.KeyStore.Path != "" {
		switch c.CA.KeyStore.Format {
		case "PKCS12", "JKS":
		default:
			return fmt.Errorf("key store format must be 'PKCS12' or 'JKS', got: %s", c.CA.KeyStore.Format)
		}
	}

	return nil
}
