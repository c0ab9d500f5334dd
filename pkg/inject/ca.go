// Package inject implements the Injection Planner (C8, spec.md §4.8): a
// host-side one-shot program that issues a CA/leaf certificate pair,
// synthesises a fake ServiceAccount bundle, probes container-runtime
// sockets, and rewrites a compose graph to wire services to the façade.
package inject

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// CertBundle is the three PEM files the TLS terminator (C7) and clients
// consume (spec.md §4.8 phase 2-3).
type CertBundle struct {
	CACert  []byte
	TLSCert []byte
	TLSKey  []byte
	SANs    []string
}

// reservedSANs are always present in the leaf certificate regardless of
// what the operator requests (spec.md §4.8 phase 2).
var reservedSANs = []string{"h2c-api", "kubernetes", "kubernetes.default", "kubernetes.default.svc", "localhost", "127.0.0.1"}

const caValidity = 10 * 365 * 24 * time.Hour
const leafValidity = 2 * 365 * 24 * time.Hour

// IssueOrReuse loads an existing bundle from dir if its SAN set is a
// superset of the requested one (spec.md §4.8 "Reuse semantics"), otherwise
// issues a fresh CA and leaf and persists them there.
func IssueOrReuse(dir string, extraSANs []string) (*CertBundle, error) {
	wanted := mergeSANs(reservedSANs, extraSANs)

	if existing, ok := loadBundle(dir); ok && supersetOf(existing.SANs, wanted) {
		return existing, nil
	}
	return issue(dir, wanted)
}

func mergeSANs(base, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(append([]string{}, base...), extra...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func supersetOf(have, want []string) bool {
	set := map[string]bool{}
	for _, s := range have {
		set[s] = true
	}
	for _, s := range want {
		if !set[s] {
			return false
		}
	}
	return true
}

func loadBundle(dir string) (*CertBundle, bool) {
	caPath := filepath.Join(dir, "ca.crt")
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")

	ca, err1 := os.ReadFile(caPath)
	cert, err2 := os.ReadFile(certPath)
	key, err3 := os.ReadFile(keyPath)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, false
	}

	block, _ := pem.Decode(cert)
	if block == nil {
		return nil, false
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, false
	}

	sans := append(append([]string{}, leaf.DNSNames...), ipStrings(leaf.IPAddresses)...)
	return &CertBundle{CACert: ca, TLSCert: cert, TLSKey: key, SANs: sans}, true
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

// issue mints a self-signed CA (CN h2c-ca) and a leaf certificate (CN
// h2c-api) signed by it, and persists all three PEM files under dir.
func issue(dir string, sans []string) (*CertBundle, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	caSerial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	caTemplate := &x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: "h2c-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate leaf key: %w", err)
	}
	leafSerial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	dnsNames, ipAddrs := splitSANs(sans)
	leafTemplate := &x509.Certificate{
		SerialNumber: leafSerial,
		Subject:      pkix.Name{CommonName: "h2c-api"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     dnsNames,
		IPAddresses:  ipAddrs,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create leaf certificate: %w", err)
	}

	bundle := &CertBundle{
		CACert:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		TLSCert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER}),
		TLSKey:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(leafKey)}),
		SANs:    sans,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cert directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ca.crt"), bundle.CACert, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "tls.crt"), bundle.TLSCert, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "tls.key"), bundle.TLSKey, 0o600); err != nil {
		return nil, err
	}
	return bundle, nil
}

func splitSANs(sans []string) ([]string, []net.IP) {
	var dns []string
	var ips []net.IP
	for _, s := range sans {
		if ip := net.ParseIP(s); ip != nil {
			ips = append(ips, ip)
		} else {
			dns = append(dns, s)
		}
	}
	return dns, ips
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}
