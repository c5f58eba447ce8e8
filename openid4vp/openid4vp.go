// Package openid4vp implements the wallet side of the OpenID for
// Verifiable Presentations authorization exchange: resolving an engagement
// link into a typed request and posting the authorization response back to
// the verifier.
//
// https://openid.net/specs/openid-4-verifiable-presentations-1_0.html
package openid4vp

import (
	"github.com/kokukuma/mdoc-wallet/document"
	"github.com/kokukuma/mdoc-wallet/readerauth"
	jose "gopkg.in/square/go-jose.v2"
)

type AuthorizationRequest struct {
	ClientID               string                          `json:"client_id"`
	ClientIDScheme         string                          `json:"client_id_scheme"`
	ResponseType           string                          `json:"response_type"`
	Nonce                  string                          `json:"nonce"`
	PresentationDefinition document.PresentationDefinition `json:"presentation_definition"`
	ResponseURI            string                          `json:"response_uri"`
	ResponseMode           string                          `json:"response_mode"`
	Scope                  string                          `json:"scope"`
	State                  string                          `json:"state"`
	ClientMetadata         ClientMetadata                  `json:"client_metadata"`
}

type ClientMetadata struct {
	AuthorizationEncryptedResponseAlg string               `json:"authorization_encrypted_response_alg"`
	AuthorizationEncryptedResponseEnc string               `json:"authorization_encrypted_response_enc"`
	JwksURI                           string               `json:"jwks_uri"`
	Jwks                              *jose.JSONWebKeySet  `json:"jwks"`
	SubjectSyntaxTypesSupported       []string             `json:"subject_syntax_types_supported"`
}

type AuthorizationResponse struct {
	VPToken                string                  `json:"vp_token,omitempty"`
	State                  string                  `json:"state,omitempty"`
	PresentationSubmission *PresentationSubmission `json:"presentation_submission,omitempty"`
	Error                  string                  `json:"error,omitempty"`
	ErrorDescription       string                  `json:"error_description,omitempty"`

	// https://datatracker.ietf.org/doc/html/rfc7518#section-4.6.1.2
	APU string `json:"-"`
	APV string `json:"-"`
}

type PresentationSubmission struct {
	ID            string       `json:"id"`
	DefinitionID  string       `json:"definition_id"`
	DescriptorMap []Descriptor `json:"descriptor_map"`
}

type Descriptor struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Path   string `json:"path"`
}

// ChainVerifier evaluates a verifier's certificate chain (base64 encoded,
// leaf first) during request resolution. Implementations never fail; an
// untrusted chain degrades to an unverified result.
type ChainVerifier interface {
	VerifyChain(chain []string) readerauth.Result
}

// ResolvedRequest is the classification of an authorization request. The
// variant set is closed: consumers switch exhaustively so a future request
// kind is a compile-time-visible change.
type ResolvedRequest interface {
	isResolvedRequest()
}

// Unsecured is a request carried as plain query parameters without a signed
// request object.
type Unsecured struct {
	Params map[string][]string
}

// VPTokenRequest asks the wallet to present a verifiable-presentation token
// satisfying a presentation definition.
type VPTokenRequest struct {
	AuthorizationRequest
}

// UnknownRequest is a signed request object of a kind this wallet does not
// handle.
type UnknownRequest struct {
	ResponseType string
}

func (Unsecured) isResolvedRequest()      {}
func (VPTokenRequest) isResolvedRequest() {}
func (UnknownRequest) isResolvedRequest() {}

// AuthorizeResult carries the classified request together with the reader
// trust evaluation performed while validating the request object, so the
// caller never depends on hidden callback state.
type AuthorizeResult struct {
	Request    ResolvedRequest
	ReaderAuth *readerauth.Result
}
