package openid4vp

import (
	"crypto/ecdsa"
	"fmt"

	jose "gopkg.in/square/go-jose.v2"
)

const (
	SchemeX509SanDNS    = "x509_san_dns"
	SchemePreregistered = "pre-registered"
)

// ClientIDScheme pairs a client_id_scheme name with the trust evaluation
// used for request objects presented under it.
type ClientIDScheme struct {
	Name  string
	Trust ChainVerifier
}

// PreregisteredVerifier is a verifier the wallet accepts under the
// pre-registered scheme.
type PreregisteredVerifier struct {
	ClientID   string
	APIBaseURL string
}

// WalletConfig is the assembled identity and policy of the wallet: its
// holder binding key, the certificate chain advertising it, and the
// client_id_schemes it is willing to respond under.
type WalletConfig struct {
	SignKey          *ecdsa.PrivateKey
	CertChain        []string
	KeySet           jose.JSONWebKeySet
	SupportedSchemes []ClientIDScheme
	Verifiers        []PreregisteredVerifier
}

// SupportsScheme reports whether the wallet responds to requests made
// under the named client_id_scheme.
func (c *WalletConfig) SupportsScheme(name string) bool {
	_, ok := c.scheme(name)
	return ok
}

func (c *WalletConfig) scheme(name string) (ClientIDScheme, bool) {
	for _, scheme := range c.SupportedSchemes {
		if scheme.Name == name {
			return scheme, true
		}
	}
	return ClientIDScheme{}, false
}

// VerifierFor looks up a pre-registered verifier by client_id.
func (c *WalletConfig) VerifierFor(clientID string) (PreregisteredVerifier, bool) {
	for _, v := range c.Verifiers {
		if v.ClientID == clientID {
			return v, true
		}
	}
	return PreregisteredVerifier{}, false
}

func (c *WalletConfig) checkClientIdentity(ar *AuthorizationRequest) error {
	name := ar.ClientIDScheme
	if name == "" {
		name = SchemeX509SanDNS
	}
	scheme, ok := c.scheme(name)
	if !ok {
		return fmt.Errorf("unsupported client_id_scheme: %s", name)
	}
	switch name {
	case SchemeX509SanDNS:
		// The certificate-bound scheme is only usable with a chain verifier.
		if scheme.Trust == nil {
			return fmt.Errorf("no trust evaluation configured for client_id_scheme: %s", name)
		}
	case SchemePreregistered:
		if _, ok := c.VerifierFor(ar.ClientID); !ok {
			return fmt.Errorf("client is not pre-registered: %s", ar.ClientID)
		}
	}
	return nil
}
