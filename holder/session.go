// Package holder implements the wallet-side presentation session: resolving
// a QR-originated verifier request, matching it against stored credentials,
// and dispatching the holder's consent as an OpenID4VP authorization
// response.
package holder

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/kokukuma/mdoc-wallet/document"
	"github.com/kokukuma/mdoc-wallet/mdoc"
	"github.com/kokukuma/mdoc-wallet/openid4vp"
	"github.com/kokukuma/mdoc-wallet/readerauth"
)

// Status is the lifecycle position of a session. Transitions only move
// forward; StatusError is terminal.
type Status string

const (
	StatusInitialized     Status = "initialized"
	StatusRequestReceived Status = "request_received"
	StatusResponseSent    Status = "response_sent"
	StatusError           Status = "error"
)

// AuthorizationEngine resolves engagement links and dispatches
// authorization responses. *openid4vp.Client is the production
// implementation.
type AuthorizationEngine interface {
	Authorize(ctx context.Context, uri *url.URL, trust openid4vp.ChainVerifier) (*openid4vp.AuthorizeResult, error)
	SendResponse(ctx context.Context, req *openid4vp.VPTokenRequest, resp *openid4vp.AuthorizationResponse, cfg *openid4vp.WalletConfig) (openid4vp.Outcome, error)
}

// ResponseEncoder turns stored credentials plus a selection into an encoded
// vp_token. *mdoc.Builder is the production implementation.
type ResponseEncoder interface {
	BuildDeviceResponse(stored []mdoc.IssuedDocument, selected map[mdoc.DocType]map[mdoc.NameSpace][]mdoc.ElementIdentifier, key *ecdsa.PrivateKey, sessionTranscript []byte) (*mdoc.DeviceResponse, error)
	Encode(resp *mdoc.DeviceResponse) (string, error)
}

// CredentialBundle is what the wallet holds: issued documents, the holder
// binding key, and the IACA anchors the issuer chains must terminate at.
type CredentialBundle struct {
	Documents    []mdoc.IssuedDocument
	PrivateKey   *ecdsa.PrivateKey
	TrustAnchors *x509.CertPool
	DeviceAuth   mdoc.DeviceAuthMethod
}

// ReceivedRequest is what the UI layer needs to render a consent screen:
// the requested items and the reader trust evaluation. The trust fields are
// only set when the request was bound to a verifier certificate.
type ReceivedRequest struct {
	Items                       document.Elements
	ReaderAuthValidated         *bool
	ReaderCertIssuer            string
	ReaderCertValidationMessage string
}

type SessionOption func(*Session)

// WithVerifierAPI registers a verifier base URL the wallet accepts under
// the pre-registered client identity scheme.
func WithVerifierAPI(baseURL string) SessionOption {
	return func(s *Session) {
		s.verifierAPI = baseURL
	}
}

func WithEngine(engine AuthorizationEngine) SessionOption {
	return func(s *Session) {
		s.engine = engine
	}
}

func WithEncoder(encoder ResponseEncoder) SessionOption {
	return func(s *Session) {
		s.encoder = encoder
	}
}

func WithTrustEvaluator(trust openid4vp.ChainVerifier) SessionOption {
	return func(s *Session) {
		s.trust = trust
	}
}

// Session drives one presentation exchange from engagement link to
// dispatched response. A session is single-use: one request, one response.
type Session struct {
	mu          sync.Mutex
	status      Status
	resolving   bool
	dispatching bool

	bundle      CredentialBundle
	engagement  string
	verifierAPI string

	engine  AuthorizationEngine
	encoder ResponseEncoder
	trust   openid4vp.ChainVerifier

	request    *openid4vp.VPTokenRequest
	requested  document.Elements
	readerAuth *readerauth.Result
	mdocNonce  string
}

func NewSession(bundle CredentialBundle, engagement string, opts ...SessionOption) *Session {
	session := &Session{
		status:     StatusInitialized,
		bundle:     bundle,
		engagement: engagement,
		engine:     openid4vp.NewClient(),
		encoder:    mdoc.NewBuilder(bundle.TrustAnchors, bundle.DeviceAuth),
		trust:      readerauth.NewEvaluator(bundle.TrustAnchors),
		mdocNonce:  uuid.NewString(),
	}

	for _, opt := range opts {
		opt(session)
	}
	return session
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StartEngagement is reserved for proximity flows where the wallet itself
// produces the engagement payload. The remote OpenID4VP flow starts from a
// scanned link, so there is nothing to emit.
func (s *Session) StartEngagement() ([]byte, error) {
	return nil, nil
}

// ReceiveRequest resolves the engagement link into a verifier request and
// matches its presentation definition against the doctype/namespace model.
// Every failure is terminal for the session; a concurrent second call fails
// fast with ErrSessionBusy.
func (s *Session) ReceiveRequest(ctx context.Context) (*ReceivedRequest, error) {
	s.mu.Lock()
	if s.resolving {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	if s.status != StatusInitialized {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot receive request in status %s", s.status)
	}
	s.resolving = true
	s.mu.Unlock()

	received, err := s.receiveRequest(ctx)

	s.mu.Lock()
	s.resolving = false
	if err != nil {
		s.status = StatusError
	} else {
		s.status = StatusRequestReceived
	}
	s.mu.Unlock()

	return received, err
}

func (s *Session) receiveRequest(ctx context.Context) (*ReceivedRequest, error) {
	uri, err := openid4vp.ParseEngagementURI(s.engagement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkMalformed, err)
	}

	result, err := s.engine.Authorize(ctx, uri, s.trust)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve request: %w", err)
	}

	var request openid4vp.VPTokenRequest
	switch req := result.Request.(type) {
	case openid4vp.Unsecured:
		return nil, ErrUnsecuredRequest
	case openid4vp.UnknownRequest:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRequestType, req.ResponseType)
	case openid4vp.VPTokenRequest:
		request = req
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedRequestType, result.Request)
	}

	// A matched definition may request zero data elements; only a missing
	// doctype or namespace sentinel makes it invalid.
	items := document.MatchDefinition(request.PresentationDefinition)
	if items == nil {
		return nil, ErrDefinitionInvalid
	}

	s.mu.Lock()
	s.request = &request
	s.requested = items
	s.readerAuth = result.ReaderAuth
	s.mu.Unlock()

	received := &ReceivedRequest{Items: items}
	if result.ReaderAuth != nil {
		validated := result.ReaderAuth.Validated
		received.ReaderAuthValidated = &validated
		received.ReaderCertIssuer = result.ReaderAuth.IssuerCommonName
		received.ReaderCertValidationMessage = result.ReaderAuth.ValidationMessage
	}
	return received, nil
}

// SendResponse turns the holder's consent decision into an authorization
// response and posts it. Dispatch failures leave the session in
// StatusRequestReceived so the caller can retry, except cancellation, which
// is terminal; only a verifier acceptance moves it to StatusResponseSent.
func (s *Session) SendResponse(ctx context.Context, accepted bool, selected document.Elements, onSuccess func(redirect *url.URL)) error {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	if s.request == nil || s.status != StatusRequestReceived {
		s.mu.Unlock()
		return ErrNoActiveRequest
	}
	s.dispatching = true
	request := s.request
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	consent, err := s.buildResponse(request, accepted, selected)
	if err != nil {
		return err
	}

	cfg, err := s.assembleWalletConfig()
	if err != nil {
		return err
	}

	response := s.authorizationResponse(request, consent)

	outcome, err := s.engine.SendResponse(ctx, request, response, cfg)
	if err != nil {
		// A torn-down session cannot be retried; transport failures can.
		if ctx.Err() != nil {
			s.mu.Lock()
			s.status = StatusError
			s.mu.Unlock()
		}
		return fmt.Errorf("failed to dispatch response: %w", err)
	}

	switch o := outcome.(type) {
	case openid4vp.Accepted:
		s.mu.Lock()
		s.status = StatusResponseSent
		s.mu.Unlock()
		if onSuccess != nil {
			onSuccess(o.RedirectURI)
		}
		return nil
	case openid4vp.Rejected:
		return &DispatchRejectedError{Reason: o.Reason}
	default:
		return fmt.Errorf("unexpected dispatch outcome: %T", outcome)
	}
}
