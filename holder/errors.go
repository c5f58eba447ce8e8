package holder

import (
	"errors"
	"fmt"
)

var (
	// ErrLinkMalformed means the engagement string did not parse as a URI.
	ErrLinkMalformed = errors.New("engagement link is malformed")

	// ErrUnsecuredRequest means the verifier sent plain query parameters
	// instead of a signed request object. This wallet only answers signed
	// requests.
	ErrUnsecuredRequest = errors.New("request is not a signed request object")

	// ErrUnsupportedRequestType means the request object asked for something
	// other than a vp_token presentation.
	ErrUnsupportedRequestType = errors.New("request type is not supported")

	// ErrDefinitionInvalid means the presentation definition requested
	// nothing this wallet can map to stored document elements.
	ErrDefinitionInvalid = errors.New("presentation definition is invalid")

	// ErrNoActiveRequest means consent was given before a request was
	// resolved on this session.
	ErrNoActiveRequest = errors.New("no active request on session")

	// ErrDocumentBuildFailure wraps failures while assembling the device
	// response from the stored credentials.
	ErrDocumentBuildFailure = errors.New("failed to build device response")

	// ErrConfigurationFailure wraps failures while assembling the wallet
	// configuration (signing identity, key set, client identity schemes).
	ErrConfigurationFailure = errors.New("failed to assemble wallet configuration")

	// ErrSessionBusy means the same operation is already in flight on this
	// session. Callers are not queued.
	ErrSessionBusy = errors.New("session operation already in progress")
)

// DispatchRejectedError is returned when the verifier actively refused the
// authorization response. Reason carries the verifier's text unmodified.
type DispatchRejectedError struct {
	Reason string
}

func (e *DispatchRejectedError) Error() string {
	return fmt.Sprintf("verifier rejected the response: %s", e.Reason)
}
