// Package seal applies a certificate-based digital signature to PDFs.
package seal

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"software.sslmate.com/src/go-pkcs12"

	"docsign/internal/config"
)

var (
	// ErrNoIdentity means no signing identity is configured.
	ErrNoIdentity = errors.New("no signing identity configured")
	// ErrUnsupportedMode is returned for an unknown SIGNING_MODE.
	ErrUnsupportedMode = errors.New("unsupported signing mode")
)

// Identity is a private key with its certificate and issuing chain.
type Identity struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
}

// CertProvider loads the signing identity on first use and caches the
// outcome, error included.
type CertProvider struct {
	cfg  config.SigningConfig
	read func(string) ([]byte, error)

	once sync.Once
	id   *Identity
	err  error
}

func NewCertProvider(cfg config.SigningConfig) *CertProvider {
	return &CertProvider{cfg: cfg, read: os.ReadFile}
}

// Certificate returns the configured identity or ErrNoIdentity.
func (p *CertProvider) Certificate() (*Identity, error) {
	p.once.Do(func() {
		p.id, p.err = p.load()
	})
	return p.id, p.err
}

func (p *CertProvider) load() (*Identity, error) {
	var (
		pfx []byte
		err error
	)
	switch strings.ToLower(strings.TrimSpace(p.cfg.Mode)) {
	case "", "disabled", "none":
		return nil, ErrNoIdentity
	case "base64", "pfxbase64":
		if p.cfg.PfxBase64 == "" {
			return nil, ErrNoIdentity
		}
		pfx, err = base64.StdEncoding.DecodeString(strings.TrimSpace(p.cfg.PfxBase64))
		if err != nil {
			return nil, fmt.Errorf("decode pfx base64: %w", err)
		}
	case "file", "pfxfile":
		if p.cfg.PfxPath == "" {
			return nil, ErrNoIdentity
		}
		pfx, err = p.read(p.cfg.PfxPath)
		if err != nil {
			return nil, fmt.Errorf("read pfx: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, p.cfg.Mode)
	}
	return Decode(pfx, p.cfg.PfxPassword)
}

// Decode parses a PKCS#12 bundle.
func Decode(pfx []byte, password string) (*Identity, error) {
	key, cert, chain, err := pkcs12.DecodeChain(pfx, password)
	if err != nil {
		return nil, fmt.Errorf("decode pfx: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("pfx private key %T cannot sign", key)
	}
	return &Identity{Signer: signer, Certificate: cert, Chain: chain}, nil
}
