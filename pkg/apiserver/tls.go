package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

// Serve probes cfg.SADir for tls.crt/tls.key and serves HTTPS with them if
// present, otherwise binds plain HTTP on the same port (spec.md §4.7). No
// client-certificate verification is performed either way.
func (s *Server) Serve(ctx context.Context) error {
	addr := ":" + s.cfg.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout is left at 0: log-follow streams opt out of a
		// write deadline (spec.md §5).
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	certPath := filepath.Join(s.cfg.SADir, "tls.crt")
	keyPath := filepath.Join(s.cfg.SADir, "tls.key")

	if fileExists(certPath) && fileExists(keyPath) {
		klog.Infof("apiserver: serving HTTPS on %s (cert: %s)", addr, certPath)
		if err := srv.ListenAndServeTLS(certPath, keyPath); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to serve HTTPS: %w", err)
		}
		return nil
	}

	klog.Warningf("apiserver: no TLS material found under %s, serving plain HTTP on %s", s.cfg.SADir, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
