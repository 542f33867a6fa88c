package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a throwaway certificate and key into dir.
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "strokeforge-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func clearTLSEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STROKEFORGE_TLS_CERT", "")
	t.Setenv("STROKEFORGE_TLS_KEY", "")
	t.Setenv("STROKEFORGE_TLS_CLIENT_CA", "")
}

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name     string
		file     TLSConfig
		envCert  string
		envKey   string
		enabled  bool
		wantCert string
	}{
		{"none", TLSConfig{}, "", "", false, ""},
		{"only cert", TLSConfig{CertFile: "/etc/sf/cert.pem"}, "", "", false, ""},
		{"only key from env", TLSConfig{}, "", "/env/key.pem", false, ""},
		{"from file", TLSConfig{CertFile: "/etc/sf/cert.pem", KeyFile: "/etc/sf/key.pem"}, "", "", true, "/etc/sf/cert.pem"},
		{"env overrides file", TLSConfig{CertFile: "/etc/sf/cert.pem", KeyFile: "/etc/sf/key.pem"}, "/env/cert.pem", "", true, "/env/cert.pem"},
		{"env only", TLSConfig{}, "/env/cert.pem", "/env/key.pem", true, "/env/cert.pem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTLSEnv(t)
			t.Setenv("STROKEFORGE_TLS_CERT", tt.envCert)
			t.Setenv("STROKEFORGE_TLS_KEY", tt.envKey)
			SetTLSConfigForTest(&TLSConfig{CertFile: "stale", KeyFile: "stale"})

			InitTLS(tt.file)

			if IsTLSEnabled() != tt.enabled {
				t.Fatalf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.enabled)
			}
			if tt.enabled && GetTLSConfig().CertFile != tt.wantCert {
				t.Errorf("unexpected config: %+v", GetTLSConfig())
			}
		})
	}
	SetTLSConfigForTest(nil)
}

func TestLoadTLSConfig_NotEnabled(t *testing.T) {
	SetTLSConfigForTest(nil)

	cfg, err := LoadTLSConfig()
	if cfg != nil || err != nil {
		t.Errorf("expected nil, nil when TLS is not enabled, got %v, %v", cfg, err)
	}
}

func TestLoadTLSConfig_InvalidFiles(t *testing.T) {
	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	defer SetTLSConfigForTest(nil)

	if _, err := LoadTLSConfig(); err == nil {
		t.Error("expected error when cert files don't exist")
	}
}

func TestLoadTLSConfig_ClientCA(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)
	defer SetTLSConfigForTest(nil)

	SetTLSConfigForTest(&TLSConfig{CertFile: certFile, KeyFile: keyFile})
	cfg, err := LoadTLSConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientAuth != tls.NoClientCert || cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("unexpected server-only config: %+v", cfg)
	}

	SetTLSConfigForTest(&TLSConfig{CertFile: certFile, KeyFile: keyFile, ClientCAFile: certFile})
	cfg, err = LoadTLSConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert || cfg.ClientCAs == nil {
		t.Error("expected mutual TLS with the client CA")
	}

	SetTLSConfigForTest(&TLSConfig{CertFile: certFile, KeyFile: keyFile, ClientCAFile: keyFile})
	if _, err := LoadTLSConfig(); err == nil {
		t.Error("expected error for a client CA file without certificates")
	}
}
