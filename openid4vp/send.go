package openid4vp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jose "gopkg.in/square/go-jose.v2"
)

// Outcome is the verifier's reaction to an authorization response. The
// variant set is closed; the exchange only distinguishes acceptance and
// rejection.
type Outcome interface {
	isOutcome()
}

// Accepted carries the verifier's optional post-presentation redirect.
type Accepted struct {
	RedirectURI *url.URL
}

// Rejected carries the verifier's reason text unmodified.
type Rejected struct {
	Reason string
}

func (Accepted) isOutcome() {}
func (Rejected) isOutcome() {}

// SendResponse posts the authorization response to the verifier's
// response_uri using the response mode the request asked for.
func (c *Client) SendResponse(ctx context.Context, req *VPTokenRequest, resp *AuthorizationResponse, cfg *WalletConfig) (Outcome, error) {
	if req == nil || req.ResponseURI == "" {
		return nil, fmt.Errorf("request has no response_uri")
	}
	if cfg != nil {
		if err := cfg.checkClientIdentity(&req.AuthorizationRequest); err != nil {
			return nil, err
		}
	}

	form := url.Values{}
	switch req.ResponseMode {
	case "direct_post.jwt":
		encrypted, err := c.encryptResponse(ctx, req, resp)
		if err != nil {
			return nil, err
		}
		form.Set("response", encrypted)
	case "direct_post", "":
		if resp.Error != "" {
			form.Set("error", resp.Error)
			if resp.ErrorDescription != "" {
				form.Set("error_description", resp.ErrorDescription)
			}
		} else {
			form.Set("vp_token", resp.VPToken)
			submission, err := json.Marshal(resp.PresentationSubmission)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal presentation submission: %w", err)
			}
			form.Set("presentation_submission", string(submission))
		}
		// In the encrypted mode the state travels inside the JWE payload.
		if resp.State != "" {
			form.Set("state", resp.State)
		}
	default:
		return nil, fmt.Errorf("unsupported response mode: %s", req.ResponseMode)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.ResponseURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to post authorization response: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verifier response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = res.Status
		}
		return Rejected{Reason: reason}, nil
	}

	var ack struct {
		RedirectURI string `json:"redirect_uri"`
	}
	if err := json.Unmarshal(body, &ack); err == nil && ack.RedirectURI != "" {
		redirect, err := url.Parse(ack.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redirect_uri: %w", err)
		}
		return Accepted{RedirectURI: redirect}, nil
	}
	return Accepted{}, nil
}

func (c *Client) encryptResponse(ctx context.Context, req *VPTokenRequest, resp *AuthorizationResponse) (string, error) {
	key, err := c.verifierEncryptionKey(ctx, req.ClientMetadata)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorization response: %w", err)
	}

	alg := req.ClientMetadata.AuthorizationEncryptedResponseAlg
	if alg == "" {
		alg = string(jose.ECDH_ES)
	}
	enc := req.ClientMetadata.AuthorizationEncryptedResponseEnc
	if enc == "" {
		enc = string(jose.A128CBC_HS256)
	}

	opts := &jose.EncrypterOptions{}
	if resp.APU != "" {
		opts = opts.WithHeader("apu", resp.APU)
	}
	if resp.APV != "" {
		opts = opts.WithHeader("apv", resp.APV)
	}

	encrypter, err := jose.NewEncrypter(
		jose.ContentEncryption(enc),
		jose.Recipient{Algorithm: jose.KeyAlgorithm(alg), Key: key},
		opts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypter: %w", err)
	}

	object, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt authorization response: %w", err)
	}
	return object.CompactSerialize()
}

func (c *Client) verifierEncryptionKey(ctx context.Context, metadata ClientMetadata) (interface{}, error) {
	var keySet jose.JSONWebKeySet

	switch {
	case metadata.Jwks != nil:
		keySet = *metadata.Jwks
	case metadata.JwksURI != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadata.JwksURI, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch verifier JWKS: %w", err)
		}
		defer res.Body.Close()

		if err := json.NewDecoder(res.Body).Decode(&keySet); err != nil {
			return nil, fmt.Errorf("failed to decode verifier JWKS: %w", err)
		}
	default:
		return nil, fmt.Errorf("client metadata has no encryption keys")
	}

	for _, key := range keySet.Keys {
		if key.Use == "enc" {
			return key.Key, nil
		}
	}
	if len(keySet.Keys) > 0 {
		return keySet.Keys[0].Key, nil
	}
	return nil, fmt.Errorf("verifier JWKS is empty")
}
