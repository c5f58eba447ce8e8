package holder

import (
	"fmt"

	"github.com/kokukuma/mdoc-wallet/internal/cryptoroot"
	"github.com/kokukuma/mdoc-wallet/openid4vp"
	jose "gopkg.in/square/go-jose.v2"
)

// assembleWalletConfig builds the wallet's response-side identity: an
// ephemeral ES256 signing key with its x5c chain, the matching JWK set, and
// the client identity schemes this session answers to. Any failure yields
// ErrConfigurationFailure and no partial configuration.
func (s *Session) assembleWalletConfig() (*openid4vp.WalletConfig, error) {
	signKey, x5c, err := cryptoroot.GenSigningKeys()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationFailure, err)
	}

	keySet := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &signKey.PublicKey,
				KeyID:     "holder-binding",
				Algorithm: "ES256",
				Use:       "sig",
			},
		},
	}

	cfg := &openid4vp.WalletConfig{
		SignKey:   signKey,
		CertChain: x5c,
		KeySet:    keySet,
		SupportedSchemes: []openid4vp.ClientIDScheme{
			{Name: openid4vp.SchemeX509SanDNS, Trust: s.trust},
		},
	}

	if s.verifierAPI != "" {
		cfg.SupportedSchemes = append(cfg.SupportedSchemes, openid4vp.ClientIDScheme{
			Name: openid4vp.SchemePreregistered,
		})
		cfg.Verifiers = append(cfg.Verifiers, openid4vp.PreregisteredVerifier{
			ClientID:   s.verifierAPI,
			APIBaseURL: s.verifierAPI,
		})
	}

	return cfg, nil
}
