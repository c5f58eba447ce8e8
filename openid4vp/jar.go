package openid4vp

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kokukuma/mdoc-wallet/readerauth"
	"github.com/mitchellh/mapstructure"
)

// ParseRequestObject verifies a JWT-secured authorization request
// (RFC 9101) against the leaf of its x5c header and decodes the claims.
// The full chain is handed to the trust callback; its result is returned
// alongside the request and never blocks parsing.
func ParseRequestObject(tokenString string, trust ChainVerifier) (*AuthorizationRequest, *readerauth.Result, error) {
	var chain []string

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		rawX5c, ok := token.Header["x5c"].([]interface{})
		if !ok || len(rawX5c) == 0 {
			return nil, fmt.Errorf("x5c header not found")
		}

		for _, raw := range rawX5c {
			encoded, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected x5c entry type: %T", raw)
			}
			chain = append(chain, encoded)
		}

		der, err := base64.StdEncoding.DecodeString(chain[0])
		if err != nil {
			return nil, fmt.Errorf("failed to decode leaf certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
		}
		return cert.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify request object: %w", err)
	}

	var readerAuth *readerauth.Result
	if trust != nil && len(chain) > 0 {
		result := trust.VerifyChain(chain)
		readerAuth = &result
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, readerAuth, fmt.Errorf("unexpected claims type: %T", token.Claims)
	}

	var ar AuthorizationRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &ar,
	})
	if err != nil {
		return nil, readerAuth, fmt.Errorf("failed to create claims decoder: %w", err)
	}
	if err := decoder.Decode(map[string]interface{}(claims)); err != nil {
		return nil, readerAuth, fmt.Errorf("failed to decode request object claims: %w", err)
	}

	return &ar, readerAuth, nil
}
