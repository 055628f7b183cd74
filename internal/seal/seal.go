package seal

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
	"go.uber.org/zap"
)

// Status tells whether a seal was applied.
type Status string

const (
	Applied Status = "applied"
	Skipped Status = "skipped"
)

// Result is the outcome of a Seal call. Reason is set when Skipped.
type Result struct {
	Status Status
	Reason string
}

// Identities supplies the signing identity.
type Identities interface {
	Certificate() (*Identity, error)
}

// Sealer signs PDFs with an approval signature. It never fails: problems
// turn into a Skipped result and the input is returned unchanged.
type Sealer struct {
	ids      Identities
	reason   string
	location string
	log      *zap.Logger
	now      func() time.Time
}

func NewSealer(ids Identities, reason, location string, log *zap.Logger) *Sealer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sealer{ids: ids, reason: reason, location: location, log: log, now: time.Now}
}

// Seal signs doc on behalf of signerName.
func (s *Sealer) Seal(ctx context.Context, doc []byte, signerName string) ([]byte, Result) {
	id, err := s.ids.Certificate()
	if err != nil {
		if !errors.Is(err, ErrNoIdentity) {
			s.log.Warn("signing identity unavailable", zap.Error(err))
		}
		return doc, Result{Status: Skipped, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return doc, Result{Status: Skipped, Reason: err.Error()}
	}

	out, err := s.sign(doc, id, signerName)
	if err != nil {
		s.log.Warn("pdf seal failed", zap.Error(err))
		return doc, Result{Status: Skipped, Reason: err.Error()}
	}
	return out, Result{Status: Applied}
}

func (s *Sealer) sign(doc []byte, id *Identity, signerName string) ([]byte, error) {
	in := bytes.NewReader(doc)
	rdr, err := pdf.NewReader(in, int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	chain := append([]*x509.Certificate{id.Certificate}, id.Chain...)
	var out bytes.Buffer
	err = sign.Sign(in, &out, rdr, int64(len(doc)), sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name:     signerName,
				Location: s.location,
				Reason:   s.reason,
				Date:     s.now().UTC(),
			},
			CertType:   sign.ApprovalSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:            id.Signer,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       id.Certificate,
		CertificateChains: [][]*x509.Certificate{chain},
	})
	if err != nil {
		return nil, fmt.Errorf("sign pdf: %w", err)
	}
	return out.Bytes(), nil
}
