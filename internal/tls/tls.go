// Package tls builds the client TLS configuration used when talking to an
// SMTP server.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Options describes how the SMTP client should verify the server and,
// optionally, authenticate itself with a certificate.
type Options struct {
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

// ClientConfig returns a tls.Config for the given options. The system roots
// are used unless CAFile is set. CertFile and KeyFile must be given together.
func ClientConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", opts.CAFile)
		}
		cfg.RootCAs = pool
	}

	switch {
	case opts.CertFile != "" && opts.KeyFile != "":
		if _, err := os.Stat(opts.CertFile); err != nil {
			return nil, fmt.Errorf("certificate file not found: %w", err)
		}
		if _, err := os.Stat(opts.KeyFile); err != nil {
			return nil, fmt.Errorf("key file not found: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case opts.CertFile != "" || opts.KeyFile != "":
		return nil, fmt.Errorf("both cert_file and key_file are required for a client certificate")
	}

	return cfg, nil
}
