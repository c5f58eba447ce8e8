package mdoc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

const (
	testDocType   = DocType("org.iso.18013.5.1.mDL")
	testNameSpace = NameSpace("org.iso.18013.5.1")
)

func testIssuedDocument(t *testing.T) IssuedDocument {
	t.Helper()

	items := map[ElementIdentifier]ElementValue{
		"family_name": "Yamada",
		"given_name":  "Taro",
		"age_over_21": true,
	}

	var itemBytes []IssuerSignedItemBytes
	digestID := DigestID(0)
	for id, value := range items {
		raw, err := cbor.Marshal(IssuerSignedItem{
			DigestID:          digestID,
			Random:            []byte("0123456789abcdef"),
			ElementIdentifier: id,
			ElementValue:      value,
		})
		if err != nil {
			t.Fatalf("failed to marshal issuer signed item: %v", err)
		}
		itemBytes = append(itemBytes, IssuerSignedItemBytes(raw))
		digestID++
	}

	return IssuedDocument{
		DocType: testDocType,
		IssuerSigned: IssuerSigned{
			NameSpaces: IssuerNameSpaces{testNameSpace: itemBytes},
		},
	}
}

func testTranscript(t *testing.T) []byte {
	t.Helper()
	transcript, err := cbor.Marshal([]interface{}{nil, nil, []interface{}{"handover"}})
	if err != nil {
		t.Fatalf("failed to marshal transcript: %v", err)
	}
	return transcript
}

func TestBuildDeviceResponse(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	stored := []IssuedDocument{testIssuedDocument(t)}
	transcript := testTranscript(t)

	builder := NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification())

	selected := map[DocType]map[NameSpace][]ElementIdentifier{
		testDocType: {testNameSpace: {"given_name"}},
	}
	resp, err := builder.BuildDeviceResponse(stored, selected, key, transcript)
	if err != nil {
		t.Fatalf("BuildDeviceResponse() error = %v", err)
	}

	if len(resp.Documents) != 1 {
		t.Fatalf("Documents = %d, want 1", len(resp.Documents))
	}
	doc, err := resp.GetDocument(testDocType)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}

	value, err := doc.IssuerSigned.GetElementValue(testNameSpace, "given_name")
	if err != nil {
		t.Fatalf("selected element missing from response: %v", err)
	}
	if value != "Taro" {
		t.Errorf("given_name = %v, want Taro", value)
	}
	if _, err := doc.IssuerSigned.GetElementValue(testNameSpace, "family_name"); err == nil {
		t.Error("family_name leaked into the response without being selected")
	}
}

func TestBuildDeviceResponseSignature(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	stored := []IssuedDocument{testIssuedDocument(t)}
	transcript := testTranscript(t)

	builder := NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification())
	resp, err := builder.BuildDeviceResponse(stored, map[DocType]map[NameSpace][]ElementIdentifier{
		testDocType: {testNameSpace: {"age_over_21"}},
	}, key, transcript)
	if err != nil {
		t.Fatalf("BuildDeviceResponse() error = %v", err)
	}

	deviceSigned := resp.Documents[0].DeviceSigned
	sig := deviceSigned.DeviceAuth.DeviceSignature
	if sig == nil {
		t.Fatal("device signature missing")
	}
	if sig.Payload != nil {
		t.Error("device signature payload must be detached")
	}

	payload, err := deviceSigned.DeviceAuthenticationBytes(testDocType, transcript)
	if err != nil {
		t.Fatalf("failed to rebuild device authentication bytes: %v", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, &key.PublicKey)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	sig.Payload = payload
	if err := sig.Verify(nil, verifier); err != nil {
		t.Errorf("device signature does not verify over the session transcript: %v", err)
	}
}

func TestBuildDeviceResponseErrors(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	stored := []IssuedDocument{testIssuedDocument(t)}
	transcript := testTranscript(t)

	tests := []struct {
		name      string
		builder   *Builder
		selected  map[DocType]map[NameSpace][]ElementIdentifier
		key       *ecdsa.PrivateKey
		errSubstr string
	}{
		{
			name:      "empty selection",
			builder:   NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification()),
			selected:  nil,
			key:       key,
			errSubstr: "no elements selected",
		},
		{
			name:      "nil key",
			builder:   NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification()),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {testNameSpace: {"given_name"}}},
			key:       nil,
			errSubstr: "private key is nil",
		},
		{
			name:      "document not held",
			builder:   NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification()),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{"org.iso.18013.5.1.unknown": {testNameSpace: {"given_name"}}},
			key:       key,
			errSubstr: "document not held",
		},
		{
			name:      "element not held",
			builder:   NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification()),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {testNameSpace: {"portrait"}}},
			key:       key,
			errSubstr: "element portrait not found",
		},
		{
			name:      "namespace not held",
			builder:   NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification()),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {"org.iso.18013.5.2": {"given_name"}}},
			key:       key,
			errSubstr: "namespace org.iso.18013.5.2 not found",
		},
		{
			name:      "mac device auth unsupported",
			builder:   NewBuilder(nil, DeviceAuthMAC, SkipIssuerChainVerification()),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {testNameSpace: {"given_name"}}},
			key:       key,
			errSubstr: "unsupported device auth method",
		},
		{
			name:      "issuer chain check without anchors",
			builder:   NewBuilder(nil, DeviceAuthSignature),
			selected:  map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {testNameSpace: {"given_name"}}},
			key:       key,
			errSubstr: "no trust anchors configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.BuildDeviceResponse(stored, tt.selected, tt.key, transcript)
			if err == nil {
				t.Fatal("BuildDeviceResponse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error = %q, want containing %q", err, tt.errSubstr)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	builder := NewBuilder(nil, DeviceAuthSignature, SkipIssuerChainVerification())
	resp, err := builder.BuildDeviceResponse(
		[]IssuedDocument{testIssuedDocument(t)},
		map[DocType]map[NameSpace][]ElementIdentifier{testDocType: {testNameSpace: {"given_name"}}},
		key,
		testTranscript(t),
	)
	if err != nil {
		t.Fatalf("BuildDeviceResponse() error = %v", err)
	}

	token, err := builder.Encode(resp)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q is not base64url without padding", token)
	}

	data, err := DecodeBase64URL(token)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	var decoded DeviceResponse
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("token is not a CBOR device response: %v", err)
	}
	if len(decoded.Documents) != 1 || decoded.Documents[0].DocType != testDocType {
		t.Errorf("decoded response lost the document: %+v", decoded)
	}

	if _, err := builder.Encode(nil); err == nil {
		t.Error("Encode(nil) error = nil, want error")
	}
}
