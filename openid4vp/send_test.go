package openid4vp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	jose "gopkg.in/square/go-jose.v2"
)

func testWalletConfig() *WalletConfig {
	return &WalletConfig{
		SupportedSchemes: []ClientIDScheme{
			{Name: SchemeX509SanDNS, Trust: &recordingVerifier{}},
		},
	}
}

func TestSendResponseAccepted(t *testing.T) {
	var form url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		form = r.PostForm
		json.NewEncoder(w).Encode(map[string]string{
			"redirect_uri": "https://verifier.example.com/done?session=42",
		})
	}))
	defer ts.Close()

	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:     "verifier.example.com",
		ResponseURI:  ts.URL,
		ResponseMode: "direct_post",
	}}
	resp := &AuthorizationResponse{
		VPToken: "dG9rZW4",
		State:   "state-1",
		PresentationSubmission: &PresentationSubmission{
			ID:           "submission-1",
			DefinitionID: "mDL-request-demo",
			DescriptorMap: []Descriptor{
				{ID: "org.iso.18013.5.1.mDL", Format: "mso_mdoc", Path: "$"},
			},
		},
	}

	outcome, err := NewClient().SendResponse(context.Background(), req, resp, testWalletConfig())
	if err != nil {
		t.Fatalf("SendResponse() error = %v", err)
	}

	accepted, ok := outcome.(Accepted)
	if !ok {
		t.Fatalf("outcome = %T, want Accepted", outcome)
	}
	if accepted.RedirectURI == nil || accepted.RedirectURI.String() != "https://verifier.example.com/done?session=42" {
		t.Errorf("RedirectURI = %v, want the verifier redirect", accepted.RedirectURI)
	}

	if got := form["vp_token"]; len(got) != 1 || got[0] != "dG9rZW4" {
		t.Errorf("vp_token = %v, want [dG9rZW4]", got)
	}
	if got := form["state"]; len(got) != 1 || got[0] != "state-1" {
		t.Errorf("state = %v, want [state-1]", got)
	}
	var submission PresentationSubmission
	if err := json.Unmarshal([]byte(form.Get("presentation_submission")), &submission); err != nil {
		t.Fatalf("presentation_submission did not decode: %v", err)
	}
	if submission.DefinitionID != "mDL-request-demo" {
		t.Errorf("DefinitionID = %q, want %q", submission.DefinitionID, "mDL-request-demo")
	}
}

func TestSendResponseRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "declined by user", http.StatusBadRequest)
	}))
	defer ts.Close()

	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ResponseURI:  ts.URL,
		ResponseMode: "direct_post",
	}}
	resp := &AuthorizationResponse{Error: "access_denied", ErrorDescription: "Rejected"}

	outcome, err := NewClient().SendResponse(context.Background(), req, resp, testWalletConfig())
	if err != nil {
		t.Fatalf("SendResponse() error = %v", err)
	}

	rejected, ok := outcome.(Rejected)
	if !ok {
		t.Fatalf("outcome = %T, want Rejected", outcome)
	}
	if rejected.Reason != "declined by user" {
		t.Errorf("Reason = %q, want the verifier's text unmodified", rejected.Reason)
	}
}

func TestSendResponseAcceptedWithoutRedirect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ResponseURI:  ts.URL,
		ResponseMode: "direct_post",
	}}

	outcome, err := NewClient().SendResponse(context.Background(), req, &AuthorizationResponse{VPToken: "x"}, testWalletConfig())
	if err != nil {
		t.Fatalf("SendResponse() error = %v", err)
	}
	accepted, ok := outcome.(Accepted)
	if !ok {
		t.Fatalf("outcome = %T, want Accepted", outcome)
	}
	if accepted.RedirectURI != nil {
		t.Errorf("RedirectURI = %v, want nil", accepted.RedirectURI)
	}
}

func TestSendResponseEncrypted(t *testing.T) {
	verifierKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate verifier key: %v", err)
	}

	var encrypted string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		encrypted = r.PostForm.Get("response")
		if len(r.PostForm) != 1 {
			t.Errorf("form = %v, want only the response field", r.PostForm)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:     "verifier.example.com",
		ResponseURI:  ts.URL,
		ResponseMode: "direct_post.jwt",
		ClientMetadata: ClientMetadata{
			AuthorizationEncryptedResponseAlg: "ECDH-ES",
			AuthorizationEncryptedResponseEnc: "A128CBC-HS256",
			Jwks: &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
				{Key: &verifierKey.PublicKey, Use: "enc", KeyID: "verifier-enc"},
			}},
		},
	}}
	resp := &AuthorizationResponse{
		VPToken: "dG9rZW4",
		State:   "state-7",
		APU:     "bWRvYy1ub25jZQ",
		APV:     "dmVyaWZpZXItbm9uY2U",
	}

	outcome, err := NewClient().SendResponse(context.Background(), req, resp, testWalletConfig())
	if err != nil {
		t.Fatalf("SendResponse() error = %v", err)
	}
	if _, ok := outcome.(Accepted); !ok {
		t.Fatalf("outcome = %T, want Accepted", outcome)
	}

	object, err := jose.ParseEncrypted(encrypted)
	if err != nil {
		t.Fatalf("response is not a JWE: %v", err)
	}

	protected, err := base64.RawURLEncoding.DecodeString(strings.SplitN(encrypted, ".", 2)[0])
	if err != nil {
		t.Fatalf("failed to decode protected header: %v", err)
	}
	var header map[string]interface{}
	if err := json.Unmarshal(protected, &header); err != nil {
		t.Fatalf("failed to parse protected header: %v", err)
	}
	if header["apu"] != "bWRvYy1ub25jZQ" {
		t.Errorf("apu = %v, want the wallet nonce", header["apu"])
	}
	if header["apv"] != "dmVyaWZpZXItbm9uY2U" {
		t.Errorf("apv = %v, want the verifier nonce", header["apv"])
	}
	if header["enc"] != "A128CBC-HS256" {
		t.Errorf("enc = %v, want A128CBC-HS256", header["enc"])
	}

	payload, err := object.Decrypt(verifierKey)
	if err != nil {
		t.Fatalf("failed to decrypt response: %v", err)
	}
	var decoded AuthorizationResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode decrypted response: %v", err)
	}
	if decoded.VPToken != "dG9rZW4" {
		t.Errorf("VPToken = %q, want %q", decoded.VPToken, "dG9rZW4")
	}
	if decoded.State != "state-7" {
		t.Errorf("State = %q, want it carried inside the JWE payload", decoded.State)
	}
}

func TestSendResponseWithoutTrustEvaluation(t *testing.T) {
	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:    "verifier.example.com",
		ResponseURI: "https://verifier.example.com/wallet/direct_post",
	}}
	cfg := &WalletConfig{
		SupportedSchemes: []ClientIDScheme{{Name: SchemeX509SanDNS}},
	}

	_, err := NewClient().SendResponse(context.Background(), req, &AuthorizationResponse{VPToken: "x"}, cfg)
	if err == nil {
		t.Fatal("SendResponse() error = nil, want missing trust evaluation error")
	}
	if !strings.Contains(err.Error(), "no trust evaluation") {
		t.Errorf("error = %q, want a missing trust evaluation error", err)
	}
}

func TestSendResponseUnsupportedScheme(t *testing.T) {
	req := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:       "some-client",
		ClientIDScheme: "pre-registered",
		ResponseURI:    "https://verifier.example.com/wallet/direct_post",
	}}

	if _, err := NewClient().SendResponse(context.Background(), req, &AuthorizationResponse{}, testWalletConfig()); err == nil {
		t.Error("SendResponse() error = nil, want unsupported scheme error")
	}
}

func TestSendResponsePreregisteredVerifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := &WalletConfig{
		SupportedSchemes: []ClientIDScheme{{Name: SchemePreregistered}},
		Verifiers:        []PreregisteredVerifier{{ClientID: "registered-client"}},
	}

	known := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:       "registered-client",
		ClientIDScheme: "pre-registered",
		ResponseURI:    ts.URL,
		ResponseMode:   "direct_post",
	}}
	if _, err := NewClient().SendResponse(context.Background(), known, &AuthorizationResponse{VPToken: "x"}, cfg); err != nil {
		t.Errorf("SendResponse() error = %v for registered client", err)
	}

	unknown := &VPTokenRequest{AuthorizationRequest: AuthorizationRequest{
		ClientID:       "stranger",
		ClientIDScheme: "pre-registered",
		ResponseURI:    ts.URL,
		ResponseMode:   "direct_post",
	}}
	if _, err := NewClient().SendResponse(context.Background(), unknown, &AuthorizationResponse{VPToken: "x"}, cfg); err == nil {
		t.Error("SendResponse() error = nil for unregistered client, want error")
	}
}
