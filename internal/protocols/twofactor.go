package protocols

import (
	"context"
	"net/http"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

// TwoFactor drives a code-plus-identity handshake: the provider sends a
// code to the bound identifier, and enrollment may require a registration
// step instead of a code exchange.
type TwoFactor struct {
	cfg        config.PlatformCfg
	identifier string
	httpClient *http.Client
}

type twoFactorReply struct {
	Body       string `json:"body"`
	InitURL    string `json:"initialization_url"`
	Token      string `json:"token"`
	Identifier string `json:"identifier"`
}

// Authorization bootstraps the handshake at the provider, which delivers a
// code to the identifier out of band.
func (t *TwoFactor) Authorization(ctx context.Context) (*AuthorizationResult, error) {
	if t.identifier == "" {
		return nil, apperr.New(apperr.BadRequest, "missing phone_number")
	}

	var resp twoFactorReply
	reqBody := map[string]string{"identifier": t.identifier}
	if err := postJSON(ctx, t.httpClient, t.cfg.GatewayURL+"/init", reqBody, &resp); err != nil {
		return nil, err
	}
	return &AuthorizationResult{Body: resp.Body}, nil
}

// Validation completes the handshake with the delivered code.
func (t *TwoFactor) Validation(ctx context.Context, code, scope, codeVerifier string) (*ExchangeResult, error) {
	if code == "" {
		return nil, apperr.New(apperr.BadRequest, "missing code")
	}

	var resp twoFactorReply
	reqBody := map[string]string{
		"identifier": t.identifier,
		"code":       code,
	}
	if err := postJSON(ctx, t.httpClient, t.cfg.GatewayURL+"/validate", reqBody, &resp); err != nil {
		return nil, err
	}
	return t.exchangeResult(resp), nil
}

// Registration is the enrollment completion path for identities the
// provider has not seen before.
func (t *TwoFactor) Registration(ctx context.Context, firstName, lastName string) (*ExchangeResult, error) {
	var resp twoFactorReply
	reqBody := map[string]string{
		"identifier": t.identifier,
		"first_name": firstName,
		"last_name":  lastName,
	}
	if err := postJSON(ctx, t.httpClient, t.cfg.GatewayURL+"/register", reqBody, &resp); err != nil {
		return nil, err
	}
	return t.exchangeResult(resp), nil
}

// Invalidation deactivates the provider-side registration.
func (t *TwoFactor) Invalidation(ctx context.Context, token string) error {
	reqBody := map[string]string{"token": token}
	return postJSON(ctx, t.httpClient, t.cfg.GatewayURL+"/deactivate", reqBody, nil)
}

func (t *TwoFactor) exchangeResult(resp twoFactorReply) *ExchangeResult {
	result := &ExchangeResult{
		Body:              resp.Body,
		InitializationURL: resp.InitURL,
	}
	// Some providers park enrollment behind another step and return no token
	// yet; only a delivered token becomes a grant.
	if resp.Token != "" {
		identifier := resp.Identifier
		if identifier == "" {
			identifier = t.identifier
		}
		result.Grant = &models.GrantPayload{Token: resp.Token, Identifier: identifier}
	}
	return result
}
