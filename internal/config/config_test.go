package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
server:
  addr: ":9999"
ca:
  common_name: "Test MITM CA"
  organization: "test org"
  cert_file: "./ca.pem"
  key_store:
    path: "./ca.p12"
    password: "changeit"
dns:
  positive_ttl: "30m"
  negative_ttl: "15s"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	// Test loading the config
	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if config.Server.Addr != ":9999" {
		t.Errorf("Expected addr ':9999', got '%s'", config.Server.Addr)
	}

	if config.CA.CommonName != "Test MITM CA" {
		t.Errorf("Expected common name 'Test MITM CA', got '%s'", config.CA.CommonName)
	}

	if config.DNS.PositiveTTL != "30m" {
		t.Errorf("Expected positive TTL '30m', got '%s'", config.DNS.PositiveTTL)
	}

	// Key store defaults kick in when only a path is given
	if config.CA.KeyStore.Format != "PKCS12" {
		t.Errorf("Expected key store format 'PKCS12', got '%s'", config.CA.KeyStore.Format)
	}

	if config.CA.KeyStore.Alias != "mitm-core" {
		t.Errorf("Expected key store alias 'mitm-core', got '%s'", config.CA.KeyStore.Alias)
	}
}

func TestLoadDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "empty_config.yaml")

	if err := os.WriteFile(configFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Server.Addr != ":8080" {
		t.Errorf("Expected default addr ':8080', got '%s'", config.Server.Addr)
	}

	if config.DNS.PositiveTTL != "5m" {
		t.Errorf("Expected default positive TTL '5m', got '%s'", config.DNS.PositiveTTL)
	}

	if config.DNS.NegativeTTL != "10s" {
		t.Errorf("Expected default negative TTL '10s', got '%s'", config.DNS.NegativeTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Server: ServerConfig{Addr: ":8080"},
				DNS:    DNSConfig{PositiveTTL: "5m", NegativeTTL: "10s"},
			},
			wantErr: false,
		},
		{
			name: "missing addr",
			config: Config{
				DNS: DNSConfig{PositiveTTL: "5m", NegativeTTL: "10s"},
			},
			wantErr: true,
		},
		{
			name: "invalid positive TTL",
			config: Config{
				Server: ServerConfig{Addr: ":8080"},
				DNS:    DNSConfig{PositiveTTL: "invalid", NegativeTTL: "10s"},
			},
			wantErr: true,
		},
		{
			name: "invalid negative TTL",
			config: Config{
				Server: ServerConfig{Addr: ":8080"},
				DNS:    DNSConfig{PositiveTTL: "5m", NegativeTTL: "invalid"},
			},
			wantErr: true,
		},
		{
			name: "negative key bits",
			config: Config{
				Server: ServerConfig{Addr: ":8080"},
				CA:     CAConfig{KeyBits: -1},
				DNS:    DNSConfig{PositiveTTL: "5m", NegativeTTL: "10s"},
			},
			wantErr: true,
		},
		{
			name: "invalid key store format",
			config: Config{
				Server: ServerConfig{Addr: ":8080"},
				CA:     CAConfig{KeyStore: KeyStoreConfig{Path: "./ca.bks", Format: "BKS"}},
				DNS:    DNSConfig{PositiveTTL: "5m", NegativeTTL: "10s"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetTTLs(t *testing.T) {
	config := Config{
		DNS: DNSConfig{PositiveTTL: "1h30m", NegativeTTL: "45s"},
	}

	positive, err := config.GetPositiveTTL()
	if err != nil {
		t.Fatalf("GetPositiveTTL() error = %v", err)
	}
	if positive != time.Hour+30*time.Minute {
		t.Errorf("GetPositiveTTL() = %v, want 1h30m", positive)
	}

	negative, err := config.GetNegativeTTL()
	if err != nil {
		t.Fatalf("GetNegativeTTL() error = %v", err)
	}
	if negative != 45*time.Second {
		t.Errorf("GetNegativeTTL() = %v, want 45s", negative)
	}
}
