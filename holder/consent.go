package holder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kokukuma/mdoc-wallet/document"
	"github.com/kokukuma/mdoc-wallet/mdoc"
	"github.com/kokukuma/mdoc-wallet/openid4vp"
)

// Consent is the holder's decision turned into response material. The
// variant set is closed: a token to present, or a refusal.
type Consent interface {
	isConsent()
}

// ConsentToken carries the encoded vp_token for an approved presentation.
type ConsentToken struct {
	VPToken string
}

// ConsentNegative is a refusal; Reason is what the verifier is told.
type ConsentNegative struct {
	Reason string
}

func (ConsentToken) isConsent()    {}
func (ConsentNegative) isConsent() {}

const rejectedReason = "Rejected"

// buildResponse maps the consent decision to response material. A refusal,
// or an approval that selects nothing, never touches the credential store
// or the encoder.
func (s *Session) buildResponse(request *openid4vp.VPTokenRequest, accepted bool, selected document.Elements) (Consent, error) {
	if !accepted || selected.Empty() {
		return ConsentNegative{Reason: rejectedReason}, nil
	}

	s.mu.Lock()
	requested := s.requested
	s.mu.Unlock()

	if !requested.Contains(selected) {
		return nil, fmt.Errorf("%w: selection exceeds the requested items", ErrDocumentBuildFailure)
	}

	transcript, err := openid4vp.SessionTranscript(request.Nonce, request.ClientID, request.ResponseURI, s.mdocNonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentBuildFailure, err)
	}

	deviceResponse, err := s.encoder.BuildDeviceResponse(s.bundle.Documents, selected, s.bundle.PrivateKey, transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentBuildFailure, err)
	}

	token, err := s.encoder.Encode(deviceResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentBuildFailure, err)
	}

	return ConsentToken{VPToken: token}, nil
}

// authorizationResponse shapes the wire-level response for a consent value.
func (s *Session) authorizationResponse(request *openid4vp.VPTokenRequest, consent Consent) *openid4vp.AuthorizationResponse {
	switch c := consent.(type) {
	case ConsentToken:
		docTypes := s.requested.DocTypes()
		descriptors := make([]openid4vp.Descriptor, 0, len(docTypes))
		for _, docType := range docTypes {
			descriptors = append(descriptors, openid4vp.Descriptor{
				ID:     string(docType),
				Format: "mso_mdoc",
				Path:   "$",
			})
		}
		return &openid4vp.AuthorizationResponse{
			VPToken: c.VPToken,
			State:   request.State,
			PresentationSubmission: &openid4vp.PresentationSubmission{
				ID:            uuid.NewString(),
				DefinitionID:  request.PresentationDefinition.ID,
				DescriptorMap: descriptors,
			},
			APU: mdoc.EncodeBase64URL([]byte(s.mdocNonce)),
			APV: mdoc.EncodeBase64URL([]byte(request.Nonce)),
		}
	case ConsentNegative:
		return &openid4vp.AuthorizationResponse{
			State:            request.State,
			Error:            "access_denied",
			ErrorDescription: c.Reason,
		}
	default:
		return &openid4vp.AuthorizationResponse{
			State: request.State,
			Error: "access_denied",
		}
	}
}
