package inject

import (
	"fmt"
	"os"
	"path/filepath"
)

// fixedToken is the literal bearer token baked into every synthesized
// ServiceAccount bundle (spec.md §4.8 phase 3). It authenticates nothing
// real; the façade never inspects it.
const fixedToken = "h2c-synthetic-serviceaccount-token"

// WriteServiceAccountBundle writes the {ca.crt, token, namespace} trio
// (plus the tls.crt/tls.key already written by IssueOrReuse) into dir, the
// mount payload described in spec.md §6 "Emitted files".
func WriteServiceAccountBundle(dir, project string, bundle *CertBundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create service account bundle directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ca.crt"), bundle.CACert, 0o644); err != nil {
		return fmt.Errorf("failed to write ca.crt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte(fixedToken), 0o644); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "namespace"), []byte(project), 0o644); err != nil {
		return fmt.Errorf("failed to write namespace: %w", err)
	}
	return nil
}
