// Package cryptoroot generates the ephemeral signing identity the wallet
// advertises when it responds to a verifier: an ES256 key and the x5c chain
// certifying it. Nothing is persisted; every wallet configuration gets a
// fresh identity.
package cryptoroot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
)

// GenSigningKeys returns an end-entity ECDSA P-256 key together with its
// certificate chain (end entity first, root last), base64 encoded DER the
// way x5c headers and JWK sets carry certificates.
func GenSigningKeys() (*ecdsa.PrivateKey, []string, error) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate root key: %w", err)
	}

	rootCert, rootDerBytes, err := createRootCertificate(rootKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create root certificate: %w", err)
	}

	eeKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate end-entity key: %w", err)
	}

	_, eeDerBytes, err := createEndEntityCertificate(eeKey, rootCert, rootKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create end-entity certificate: %w", err)
	}

	x5c := []string{
		base64.StdEncoding.EncodeToString(eeDerBytes),
		base64.StdEncoding.EncodeToString(rootDerBytes),
	}

	return eeKey, x5c, nil
}

func CalcKID(pub *ecdsa.PublicKey, hashAlgo string) []byte {
	b := elliptic.Marshal(pub.Curve, pub.X, pub.Y)

	var h hash.Hash
	switch hashAlgo {
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	default:
		h = sha256.New()
	}

	h.Write(b)
	return h.Sum(nil)
}
