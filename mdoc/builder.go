package mdoc

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// DeviceAuthMethod selects how the holder authenticates the device response.
type DeviceAuthMethod string

const (
	DeviceAuthSignature DeviceAuthMethod = "signature"
	DeviceAuthMAC       DeviceAuthMethod = "mac"
)

type BuilderOption func(*Builder)

// SkipIssuerChainVerification disables the pre-disclosure check of each
// document's issuer certificate chain against the IACA anchors.
func SkipIssuerChainVerification() BuilderOption {
	return func(b *Builder) {
		b.skipIssuerChainVerification = true
	}
}

func WithCertCurrentTime(date time.Time) BuilderOption {
	return func(b *Builder) {
		b.certCurrentTime = date
	}
}

// Builder assembles a DeviceResponse restricted to the elements a holder
// agreed to disclose, and signs the device authentication with the holder key.
type Builder struct {
	anchors                     *x509.CertPool
	method                      DeviceAuthMethod
	skipIssuerChainVerification bool
	certCurrentTime             time.Time
}

func NewBuilder(anchors *x509.CertPool, method DeviceAuthMethod, opts ...BuilderOption) *Builder {
	builder := &Builder{
		anchors:         anchors,
		method:          method,
		certCurrentTime: time.Now(),
	}

	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// BuildDeviceResponse filters the stored documents down to the selected
// elements and produces a signed DeviceResponse. Every selected document and
// element must be present in the store; anything missing fails the build.
func (b *Builder) BuildDeviceResponse(
	stored []IssuedDocument,
	selected map[DocType]map[NameSpace][]ElementIdentifier,
	key *ecdsa.PrivateKey,
	sessionTranscript []byte,
) (*DeviceResponse, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("no elements selected")
	}
	if key == nil {
		return nil, fmt.Errorf("holder private key is nil")
	}

	resp := &DeviceResponse{
		Version: "1.0",
		Status:  0,
	}

	for docType, namespaces := range selected {
		issued, err := findIssuedDocument(stored, docType)
		if err != nil {
			return nil, err
		}

		if !b.skipIssuerChainVerification {
			if err := b.verifyIssuerChain(issued.IssuerSigned); err != nil {
				return nil, fmt.Errorf("failed to verify issuer chain for %s: %w", docType, err)
			}
		}

		issuerSigned, err := restrictIssuerSigned(issued.IssuerSigned, namespaces)
		if err != nil {
			return nil, fmt.Errorf("failed to restrict %s: %w", docType, err)
		}

		deviceSigned, err := b.buildDeviceSigned(docType, key, sessionTranscript)
		if err != nil {
			return nil, fmt.Errorf("failed to build device auth for %s: %w", docType, err)
		}

		resp.Documents = append(resp.Documents, Document{
			DocType:      docType,
			IssuerSigned: *issuerSigned,
			DeviceSigned: *deviceSigned,
		})
	}

	return resp, nil
}

// Encode marshals a device response and encodes it the way OpenID4VP carries
// vp_token values: base64url without padding over the CBOR bytes.
func (b *Builder) Encode(resp *DeviceResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("device response is nil")
	}
	data, err := cbor.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal device response: %w", err)
	}
	return EncodeBase64URL(data), nil
}

func findIssuedDocument(stored []IssuedDocument, docType DocType) (*IssuedDocument, error) {
	for i := range stored {
		if stored[i].DocType == docType {
			return &stored[i], nil
		}
	}
	return nil, fmt.Errorf("document not held: doctype=%s", docType)
}

func restrictIssuerSigned(issuerSigned IssuerSigned, namespaces map[NameSpace][]ElementIdentifier) (*IssuerSigned, error) {
	restricted := IssuerSigned{
		NameSpaces: IssuerNameSpaces{},
		IssuerAuth: issuerSigned.IssuerAuth,
	}

	for ns, wanted := range namespaces {
		items, exists := issuerSigned.NameSpaces[ns]
		if !exists {
			return nil, fmt.Errorf("namespace %s not found", ns)
		}

		for _, id := range wanted {
			item, err := findIssuerSignedItem(items, id)
			if err != nil {
				return nil, err
			}
			restricted.NameSpaces[ns] = append(restricted.NameSpaces[ns], item)
		}
	}

	return &restricted, nil
}

func findIssuerSignedItem(items []IssuerSignedItemBytes, id ElementIdentifier) (IssuerSignedItemBytes, error) {
	for _, ib := range items {
		item, err := ib.IssuerSignedItem()
		if err != nil {
			return nil, fmt.Errorf("failed to parse issuer signed item: %w", err)
		}
		if item.ElementIdentifier == id {
			return ib, nil
		}
	}
	return nil, fmt.Errorf("element %s not found", id)
}

func (b *Builder) buildDeviceSigned(docType DocType, key *ecdsa.PrivateKey, sessionTranscript []byte) (*DeviceSigned, error) {
	if b.method != DeviceAuthSignature {
		return nil, fmt.Errorf("unsupported device auth method: %s", b.method)
	}

	emptyNS, err := cbor.Marshal(DeviceNameSpaces{})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal device namespaces: %w", err)
	}
	nsBytes := DeviceNameSpacesBytes(emptyNS)

	deviceSigned := DeviceSigned{
		NameSpaces: &nsBytes,
	}

	payload, err := deviceSigned.DeviceAuthenticationBytes(docType, sessionTranscript)
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	sig := cose.UntaggedSign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
			},
		},
		Payload: payload,
	}
	if err := sig.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("failed to sign device authentication: %w", err)
	}

	// The payload is carried detached; the verifier reconstructs it from the
	// session transcript.
	sig.Payload = nil

	deviceSigned.DeviceAuth = &DeviceAuth{DeviceSignature: &sig}
	return &deviceSigned, nil
}

func (b *Builder) verifyIssuerChain(issuerSigned IssuerSigned) error {
	if b.anchors == nil {
		return fmt.Errorf("no trust anchors configured")
	}

	certs, err := issuerSigned.DocumentSigningCertificateChain()
	if err != nil {
		return err
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         b.anchors,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		CurrentTime:   b.certCurrentTime,
	}

	if _, err := certs[0].Verify(opts); err != nil {
		return fmt.Errorf("failed to verify certificate chain: %w", err)
	}
	return nil
}
