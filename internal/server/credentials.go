package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/kokukuma/mdoc-wallet/holder"
	"github.com/kokukuma/mdoc-wallet/mdoc"
	"github.com/kokukuma/mdoc-wallet/pkg/pki"
)

// loadCredentialBundle assembles the wallet's stored credentials. A
// provisioned holder key and IACA anchors come from the environment, either
// an anchor directory or a single bundled PEM; without anchors the builder
// skips the issuer chain check so the demo wallet can run on self-issued
// sample data.
func loadCredentialBundle() (holder.CredentialBundle, []mdoc.BuilderOption, error) {
	var opts []mdoc.BuilderOption

	var key *ecdsa.PrivateKey
	var err error
	if walletKeyPath != "" {
		key, err = pki.LoadPrivateKey(walletKeyPath)
		if err != nil {
			return holder.CredentialBundle{}, nil, fmt.Errorf("failed to load holder key: %w", err)
		}
	} else {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return holder.CredentialBundle{}, nil, fmt.Errorf("failed to generate holder key: %w", err)
		}
	}

	bundle := holder.CredentialBundle{
		PrivateKey: key,
		DeviceAuth: mdoc.DeviceAuthSignature,
	}

	switch {
	case anchorsDir != "":
		bundle.TrustAnchors, err = pki.GetRootCertificates(anchorsDir)
		if err != nil {
			return holder.CredentialBundle{}, nil, fmt.Errorf("failed to load trust anchors: %w", err)
		}
	case anchorsPemPath != "":
		bundle.TrustAnchors, err = pki.GetRootCertificate(anchorsPemPath)
		if err != nil {
			return holder.CredentialBundle{}, nil, fmt.Errorf("failed to load trust anchor: %w", err)
		}
	default:
		opts = append(opts, mdoc.SkipIssuerChainVerification())
	}

	bundle.Documents, err = sampleDocuments()
	if err != nil {
		return holder.CredentialBundle{}, nil, err
	}

	return bundle, opts, nil
}

// sampleDocuments fabricates one mDL credential so the demo wallet has
// something to present.
func sampleDocuments() ([]mdoc.IssuedDocument, error) {
	elements := []struct {
		id    mdoc.ElementIdentifier
		value mdoc.ElementValue
	}{
		{"family_name", "Yamada"},
		{"given_name", "Taro"},
		{"birth_date", "1990-01-01"},
		{"document_number", "1234567890"},
		{"age_over_21", true},
	}

	var items []mdoc.IssuerSignedItemBytes
	for i, elem := range elements {
		random := make([]byte, 16)
		if _, err := rand.Read(random); err != nil {
			return nil, fmt.Errorf("failed to generate item random: %w", err)
		}
		raw, err := cbor.Marshal(mdoc.IssuerSignedItem{
			DigestID:          mdoc.DigestID(i),
			Random:            random,
			ElementIdentifier: elem.id,
			ElementValue:      elem.value,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sample item: %w", err)
		}
		items = append(items, mdoc.IssuerSignedItemBytes(raw))
	}

	return []mdoc.IssuedDocument{
		{
			DocType: "org.iso.18013.5.1.mDL",
			IssuerSigned: mdoc.IssuerSigned{
				NameSpaces: mdoc.IssuerNameSpaces{"org.iso.18013.5.1": items},
			},
		},
	}, nil
}
