package openid4vp

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

func sha256Sum(b []byte) []byte {
	hash := sha256.Sum256(b)
	return hash[:]
}

// SessionTranscript builds the OID4VPHandover session transcript the
// device signature binds to. The wallet and the verifier must derive the
// same bytes, so the hashed inputs come straight from the authorization
// request plus the wallet-generated mdoc nonce.
//
// https://github.com/eu-digital-identity-wallet/eudi-lib-android-wallet-core/blob/327c006eeb256353a8ed064adb12487db1bd352c/wallet-core/src/main/java/eu/europa/ec/eudi/wallet/internal/Openid4VpUtils.kt#L26
func SessionTranscript(nonce, clientID, responseURI, mdocGeneratedNonce string) ([]byte, error) {
	if nonce == "" {
		return nil, fmt.Errorf("nonce cannot be empty")
	}
	if clientID == "" {
		return nil, fmt.Errorf("clientID cannot be empty")
	}
	if responseURI == "" {
		return nil, fmt.Errorf("responseURI cannot be empty")
	}
	if mdocGeneratedNonce == "" {
		return nil, fmt.Errorf("mdocGeneratedNonce cannot be empty")
	}

	clientIDToHash, err := cbor.Marshal([]interface{}{clientID, mdocGeneratedNonce})
	if err != nil {
		return nil, fmt.Errorf("failed to encode clientID for hashing: %w", err)
	}

	responseURIToHash, err := cbor.Marshal([]interface{}{responseURI, mdocGeneratedNonce})
	if err != nil {
		return nil, fmt.Errorf("failed to encode responseURI for hashing: %w", err)
	}

	oid4vpHandover := []interface{}{
		nil, // DeviceEngagementBytes
		nil, // EReaderKeyBytes
		[]interface{}{ // OID4VPHandover
			sha256Sum(clientIDToHash),
			sha256Sum(responseURIToHash),
			nonce,
		},
	}

	transcript, err := cbor.Marshal(oid4vpHandover)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session transcript: %w", err)
	}
	return transcript, nil
}
