// Package readerauth evaluates whether a verifier's certificate chain is
// authorized to request credential attributes (ISO/IEC 18013-5 reader
// authentication).
package readerauth

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"time"
)

// Extended key usage assigned to mdoc reader authentication certificates.
// ISO/IEC 18013-5 B.1.7
var readerAuthOID = asn1.ObjectIdentifier{1, 0, 18013, 5, 1, 6}

// Result is the outcome of evaluating a reader certificate chain. It is a
// value, computed once per chain, and never an error: an unverifiable chain
// degrades to ChainVerified=false so the caller can still surface the
// request for a manual trust decision.
type Result struct {
	// ChainVerified records the raw X.509 path validation outcome against
	// the configured IACA anchors.
	ChainVerified bool

	// Validated is the final reader-authentication verdict; it also requires
	// the reader-auth key usage on the leaf, so it can differ from
	// ChainVerified.
	Validated bool

	// IssuerCommonName is extracted best effort from the leaf certificate
	// even when path validation fails. Empty when the leaf does not decode.
	IssuerCommonName string

	ValidationMessage string
}

type EvaluatorOption func(*Evaluator)

func WithCertCurrentTime(date time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.certCurrentTime = date
	}
}

// Evaluator validates reader certificate chains against a set of IACA trust
// anchors. It holds no per-evaluation state; Evaluate is safe to call
// repeatedly and from the authorization engine's goroutine.
type Evaluator struct {
	roots           *x509.CertPool
	certCurrentTime time.Time
}

func NewEvaluator(roots *x509.CertPool, opts ...EvaluatorOption) *Evaluator {
	evaluator := &Evaluator{
		roots:           roots,
		certCurrentTime: time.Now(),
	}

	for _, opt := range opts {
		opt(evaluator)
	}
	return evaluator
}

// Evaluate verifies a base64-encoded certificate chain, leaf first.
func (e *Evaluator) Evaluate(chain []string) Result {
	if len(chain) == 0 {
		return Result{ValidationMessage: "empty reader certificate chain"}
	}

	certs, decodeErr := decodeChain(chain)

	var result Result
	result.ChainVerified = e.verifyChainPath(certs)

	// The leaf is inspected independently of path validation so the holder
	// can still show who claims to be asking.
	if len(certs) == 0 {
		result.ValidationMessage = fmt.Sprintf("failed to decode reader certificate: %v", decodeErr)
		return result
	}
	leaf := certs[0]
	result.IssuerCommonName = leaf.Subject.CommonName

	switch {
	case !hasReaderAuthUsage(leaf):
		result.ValidationMessage = "leaf certificate lacks mdoc reader authentication key usage"
	case !result.ChainVerified:
		result.ValidationMessage = "certificate chain does not terminate at a trusted IACA"
	default:
		result.Validated = true
		result.ValidationMessage = "reader certificate validated"
	}

	return result
}

// VerifyChain lets an Evaluator serve as the certificate-chain trust
// callback of an authorization engine.
func (e *Evaluator) VerifyChain(chain []string) Result {
	return e.Evaluate(chain)
}

func decodeChain(chain []string) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(chain))
	for _, encoded := range chain {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return certs, fmt.Errorf("failed to decode base64: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return certs, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func (e *Evaluator) verifyChainPath(certs []*x509.Certificate) bool {
	if len(certs) == 0 || e.roots == nil {
		return false
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         e.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		CurrentTime:   e.certCurrentTime,
	}

	if _, err := certs[0].Verify(opts); err != nil {
		return false
	}
	return true
}

func hasReaderAuthUsage(cert *x509.Certificate) bool {
	for _, usage := range cert.UnknownExtKeyUsage {
		if usage.Equal(readerAuthOID) {
			return true
		}
	}
	return false
}
