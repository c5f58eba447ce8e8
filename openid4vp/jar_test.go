package openid4vp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kokukuma/mdoc-wallet/readerauth"
)

type recordingVerifier struct {
	seen   [][]string
	result readerauth.Result
}

func (r *recordingVerifier) VerifyChain(chain []string) readerauth.Result {
	r.seen = append(r.seen, chain)
	return r.result
}

func newSignedRequestObject(t *testing.T, claims jwt.MapClaims) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "verifier.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"verifier.example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(der)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["x5c"] = []interface{}{encoded}
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign request object: %v", err)
	}
	return signed, encoded
}

func TestParseRequestObject(t *testing.T) {
	signed, cert := newSignedRequestObject(t, jwt.MapClaims{
		"client_id":        "verifier.example.com",
		"client_id_scheme": "x509_san_dns",
		"response_type":    "vp_token",
		"response_mode":    "direct_post.jwt",
		"response_uri":     "https://verifier.example.com/wallet/direct_post",
		"nonce":            "n-0S6_WzA2Mj",
		"presentation_definition": map[string]interface{}{
			"id": "mDL-request-demo",
			"input_descriptors": []interface{}{
				map[string]interface{}{"id": "org.iso.18013.5.1.mDL"},
			},
		},
	})

	trust := &recordingVerifier{result: readerauth.Result{Validated: true}}
	ar, readerAuth, err := ParseRequestObject(signed, trust)
	if err != nil {
		t.Fatalf("ParseRequestObject() error = %v", err)
	}

	if ar.ClientID != "verifier.example.com" {
		t.Errorf("ClientID = %q, want %q", ar.ClientID, "verifier.example.com")
	}
	if ar.ResponseType != "vp_token" {
		t.Errorf("ResponseType = %q, want %q", ar.ResponseType, "vp_token")
	}
	if ar.ResponseMode != "direct_post.jwt" {
		t.Errorf("ResponseMode = %q, want %q", ar.ResponseMode, "direct_post.jwt")
	}
	if ar.Nonce != "n-0S6_WzA2Mj" {
		t.Errorf("Nonce = %q, want %q", ar.Nonce, "n-0S6_WzA2Mj")
	}
	if ar.PresentationDefinition.ID != "mDL-request-demo" {
		t.Errorf("PresentationDefinition.ID = %q, want %q", ar.PresentationDefinition.ID, "mDL-request-demo")
	}
	if len(ar.PresentationDefinition.InputDescriptors) != 1 {
		t.Fatalf("InputDescriptors = %d, want 1", len(ar.PresentationDefinition.InputDescriptors))
	}

	if readerAuth == nil || !readerAuth.Validated {
		t.Errorf("readerAuth = %+v, want validated result", readerAuth)
	}
	if len(trust.seen) != 1 || len(trust.seen[0]) != 1 || trust.seen[0][0] != cert {
		t.Errorf("trust callback saw %v, want the x5c chain", trust.seen)
	}
}

func TestParseRequestObjectTampered(t *testing.T) {
	signed, _ := newSignedRequestObject(t, jwt.MapClaims{
		"response_type": "vp_token",
	})

	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"response_type": "vp_token",
		"nonce":         "forged",
	}).SignedString(otherKey)
	if err != nil {
		t.Fatalf("failed to sign forged token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing x5c header", forged},
		{"garbage token", "not.a.jwt"},
		{"truncated token", signed[:len(signed)-10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseRequestObject(tt.token, nil); err == nil {
				t.Error("ParseRequestObject() error = nil, want error")
			}
		})
	}
}
