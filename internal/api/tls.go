package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds the certificate paths the API serves with.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	// ClientCAFile, when set, requires clients to present a certificate
	// signed by one of its CAs.
	ClientCAFile string
}

var tlsConfig *TLSConfig

// InitTLS takes the paths from service.yaml, each overridable by
// STROKEFORGE_TLS_CERT, STROKEFORGE_TLS_KEY and STROKEFORGE_TLS_CLIENT_CA.
// TLS is enabled only when both cert and key are known.
func InitTLS(fromFile TLSConfig) {
	cfg := TLSConfig{
		CertFile:     envOr("STROKEFORGE_TLS_CERT", fromFile.CertFile),
		KeyFile:      envOr("STROKEFORGE_TLS_KEY", fromFile.KeyFile),
		ClientCAFile: envOr("STROKEFORGE_TLS_CLIENT_CA", fromFile.ClientCAFile),
	}

	tlsConfig = nil
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig = &cfg
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig builds a tls.Config from the configured files. It returns
// nil, nil when TLS is not enabled.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if tlsConfig.ClientCAFile != "" {
		pem, err := os.ReadFile(tlsConfig.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("client CA %s: no certificates found", tlsConfig.ClientCAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
