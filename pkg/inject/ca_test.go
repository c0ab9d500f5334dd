package inject

import (
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"testing"
)

func TestIssueOrReuseIssuesFreshBundleWithRequestedSANs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")

	bundle, err := IssueOrReuse(dir, []string{"kube.example"})
	if err != nil {
		t.Fatalf("IssueOrReuse failed: %v", err)
	}

	block, _ := pem.Decode(bundle.TLSCert)
	if block == nil {
		t.Fatal("expected a decodable PEM leaf certificate")
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse leaf certificate: %v", err)
	}

	wantDNS := map[string]bool{"h2c-api": true, "kubernetes": true, "localhost": true, "kube.example": true}
	for name := range wantDNS {
		found := false
		for _, dns := range leaf.DNSNames {
			if dns == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected SAN %q in leaf certificate, got %v", name, leaf.DNSNames)
		}
	}

	caBlock, _ := pem.Decode(bundle.CACert)
	if caBlock == nil {
		t.Fatal("expected a decodable PEM CA certificate")
	}
	ca, err := x509.ParseCertificate(caBlock.Bytes)
	if err != nil {
		t.Fatalf("failed to parse CA certificate: %v", err)
	}
	if !ca.IsCA {
		t.Error("expected issued CA certificate to have IsCA set")
	}
	if ca.Subject.CommonName != "h2c-ca" {
		t.Errorf("got CA CN %q, want h2c-ca", ca.Subject.CommonName)
	}
	if leaf.Subject.CommonName != "h2c-api" {
		t.Errorf("got leaf CN %q, want h2c-api", leaf.Subject.CommonName)
	}
}

func TestIssueOrReuseReusesBundleWhenSANsAreSubset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")

	first, err := IssueOrReuse(dir, []string{"kube.example", "other.example"})
	if err != nil {
		t.Fatalf("first IssueOrReuse failed: %v", err)
	}

	second, err := IssueOrReuse(dir, []string{"kube.example"})
	if err != nil {
		t.Fatalf("second IssueOrReuse failed: %v", err)
	}

	if string(first.TLSCert) != string(second.TLSCert) {
		t.Error("expected reuse to return the identical leaf certificate")
	}
}

func TestIssueOrReuseReissuesWhenSANsGrow(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")

	first, err := IssueOrReuse(dir, []string{"kube.example"})
	if err != nil {
		t.Fatalf("first IssueOrReuse failed: %v", err)
	}

	second, err := IssueOrReuse(dir, []string{"kube.example", "new-host.example"})
	if err != nil {
		t.Fatalf("second IssueOrReuse failed: %v", err)
	}

	if string(first.TLSCert) == string(second.TLSCert) {
		t.Error("expected a new SAN to force re-issuance of the leaf certificate")
	}

	found := false
	for _, san := range second.SANs {
		if san == "new-host.example" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reissued bundle to include new-host.example, got %v", second.SANs)
	}
}
