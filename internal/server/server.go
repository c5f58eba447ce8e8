// Package server bridges HTTP clients (the demo wallet UI) to holder
// presentation sessions.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/kokukuma/mdoc-wallet/document"
	"github.com/kokukuma/mdoc-wallet/holder"
	"github.com/kokukuma/mdoc-wallet/mdoc"
)

var (
	walletKeyPath  = os.Getenv("WALLET_PRIVATE_KEY_PATH")
	anchorsDir     = os.Getenv("WALLET_TRUST_ANCHORS_DIR")
	anchorsPemPath = os.Getenv("WALLET_TRUST_ANCHOR_PEM")
	verifierAPI    = os.Getenv("VERIFIER_API_BASE_URL")
)

func NewServer() *Server {
	bundle, encoderOpts, err := loadCredentialBundle()
	if err != nil {
		panic("failed to load credential bundle: " + err.Error())
	}

	return &Server{
		sessions:    NewSessions(),
		bundle:      bundle,
		encoderOpts: encoderOpts,
	}
}

type Server struct {
	sessions    *Sessions
	bundle      holder.CredentialBundle
	encoderOpts []mdoc.BuilderOption
}

type ReceiveRequestInput struct {
	EngagementURI string `json:"engagement_uri"`
}

type ReceiveRequestOutput struct {
	SessionID                   string                         `json:"session_id"`
	Items                       map[string]map[string][]string `json:"items"`
	Credentials                 []CredentialPreview            `json:"credentials,omitempty"`
	ReaderAuthValidated         *bool                          `json:"reader_auth_validated,omitempty"`
	ReaderCertIssuer            string                         `json:"reader_cert_issuer,omitempty"`
	ReaderCertValidationMessage string                         `json:"reader_cert_validation_message,omitempty"`
}

// CredentialPreview carries the stored values behind the requested items so
// the consent screen can show what would actually be disclosed.
type CredentialPreview struct {
	DocType string                            `json:"doc_type"`
	Issuer  string                            `json:"issuer,omitempty"`
	Values  map[string]map[string]interface{} `json:"values"`
}

type SendConsentInput struct {
	SessionID string                         `json:"session_id"`
	Accepted  bool                           `json:"accepted"`
	Selected  map[string]map[string][]string `json:"selected,omitempty"`
}

type SendConsentOutput struct {
	Status      string `json:"status"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReceiveRequest resolves a scanned engagement link into the consent data
// the UI renders: requested items plus the reader trust evaluation.
func (s *Server) ReceiveRequest(w http.ResponseWriter, r *http.Request) {
	input := ReceiveRequestInput{}
	if err := parseJSON(r, &input); err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	opts := []holder.SessionOption{
		holder.WithEncoder(mdoc.NewBuilder(s.bundle.TrustAnchors, s.bundle.DeviceAuth, s.encoderOpts...)),
	}
	if verifierAPI != "" {
		opts = append(opts, holder.WithVerifierAPI(verifierAPI))
	}
	session := holder.NewSession(s.bundle, input.EngagementURI, opts...)
	sessionID := s.sessions.Save(session)

	received, err := session.ReceiveRequest(r.Context())
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to receive request: %v", err), http.StatusBadRequest)
		return
	}
	spew.Dump(received)

	jsonResponse(w, ReceiveRequestOutput{
		SessionID:                   sessionID,
		Items:                       elementsToJSON(received.Items),
		Credentials:                 s.credentialPreviews(received.Items),
		ReaderAuthValidated:         received.ReaderAuthValidated,
		ReaderCertIssuer:            received.ReaderCertIssuer,
		ReaderCertValidationMessage: received.ReaderCertValidationMessage,
	}, http.StatusOK)
}

// SendConsent applies the holder's decision and dispatches the response.
func (s *Server) SendConsent(w http.ResponseWriter, r *http.Request) {
	input := SendConsentInput{}
	if err := parseJSON(r, &input); err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	session, err := s.sessions.Get(input.SessionID)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to get session: %v", err), http.StatusBadRequest)
		return
	}

	var redirectURI string
	err = session.SendResponse(r.Context(), input.Accepted, elementsFromJSON(input.Selected), func(redirect *url.URL) {
		if redirect != nil {
			redirectURI = redirect.String()
		}
	})

	var rejected *holder.DispatchRejectedError
	if errors.As(err, &rejected) {
		jsonResponse(w, SendConsentOutput{Status: "rejected", Reason: rejected.Reason}, http.StatusOK)
		return
	}
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to send response: %v", err), http.StatusBadRequest)
		return
	}

	jsonResponse(w, SendConsentOutput{Status: "sent", RedirectURI: redirectURI}, http.StatusOK)
}

// credentialPreviews resolves the requested items against the stored
// documents. The issuer name is best effort; sample credentials carry no
// document signer chain.
func (s *Server) credentialPreviews(items document.Elements) []CredentialPreview {
	previews := []CredentialPreview{}
	for _, doc := range s.bundle.Documents {
		namespaces, ok := items[doc.DocType]
		if !ok {
			continue
		}

		preview := CredentialPreview{
			DocType: string(doc.DocType),
			Values:  map[string]map[string]interface{}{},
		}
		if cert, err := doc.IssuerSigned.DocumentSigningCertificate(); err == nil {
			preview.Issuer = cert.Subject.CommonName
		}

		for _, ns := range doc.IssuerSigned.GetNameSpaces() {
			requested, ok := namespaces[ns]
			if !ok {
				continue
			}
			stored, err := doc.IssuerSigned.GetIssuerSignedItems(ns)
			if err != nil {
				continue
			}
			values := map[string]interface{}{}
			for _, item := range stored {
				for _, id := range requested {
					if item.ElementIdentifier == id {
						values[string(id)] = item.ElementValue
					}
				}
			}
			preview.Values[string(ns)] = values
		}
		previews = append(previews, preview)
	}
	return previews
}

func elementsToJSON(items document.Elements) map[string]map[string][]string {
	out := map[string]map[string][]string{}
	for docType, namespaces := range items {
		out[string(docType)] = map[string][]string{}
		for ns, elems := range namespaces {
			names := []string{}
			for _, elem := range elems {
				names = append(names, string(elem))
			}
			out[string(docType)][string(ns)] = names
		}
	}
	return out
}

func elementsFromJSON(items map[string]map[string][]string) document.Elements {
	out := document.Elements{}
	for docType, namespaces := range items {
		out[mdoc.DocType(docType)] = map[mdoc.NameSpace][]mdoc.ElementIdentifier{}
		for ns, elems := range namespaces {
			ids := []mdoc.ElementIdentifier{}
			for _, elem := range elems {
				ids = append(ids, mdoc.ElementIdentifier(elem))
			}
			out[mdoc.DocType(docType)][mdoc.NameSpace(ns)] = ids
		}
	}
	return out
}

func parseJSON(r *http.Request, v interface{}) error {
	if r == nil || r.Body == nil {
		return errors.New("No request given")
	}

	defer r.Body.Close()
	defer io.Copy(io.Discard, r.Body)

	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, d interface{}, c int) {
	dj, err := json.Marshal(d)
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}

func jsonErrorResponse(w http.ResponseWriter, e error, c int) {
	dj, err := json.Marshal(errorResponse{Error: e.Error()})
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}
