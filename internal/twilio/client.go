// Package twilio is the OTP delivery adapter: a thin pass-through to a
// Twilio Verify-style provider. It reports delivery statuses and knows
// nothing about attempt counting.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Statuses the core understands. Anything else is treated as an internal
// error by the caller.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusFailed   = "failed"
)

// Verifier requests and checks OTP codes for a phone number.
type Verifier interface {
	Verification(ctx context.Context, phoneNumber string) (string, error)
	VerificationCheck(ctx context.Context, phoneNumber, code string) (string, error)
}

type verifyClient struct {
	accountSID string
	authToken  string
	serviceSID string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Verify API client. baseURL is overridable for tests;
// empty means the public Twilio endpoint.
func NewClient(accountSID, authToken, serviceSID, baseURL string) Verifier {
	if baseURL == "" {
		baseURL = "https://verify.twilio.com"
	}
	return &verifyClient{
		accountSID: accountSID,
		authToken:  authToken,
		serviceSID: serviceSID,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Verification starts an SMS challenge for phoneNumber.
func (c *verifyClient) Verification(ctx context.Context, phoneNumber string) (string, error) {
	data := url.Values{}
	data.Set("To", phoneNumber)
	data.Set("Channel", "sms")

	endpoint := fmt.Sprintf("%s/v2/Services/%s/Verifications", c.baseURL, c.serviceSID)
	return c.post(ctx, endpoint, data)
}

// VerificationCheck submits a code for the pending challenge.
func (c *verifyClient) VerificationCheck(ctx context.Context, phoneNumber, code string) (string, error) {
	data := url.Values{}
	data.Set("To", phoneNumber)
	data.Set("Code", code)

	endpoint := fmt.Sprintf("%s/v2/Services/%s/VerificationCheck", c.baseURL, c.serviceSID)
	return c.post(ctx, endpoint, data)
}

func (c *verifyClient) post(ctx context.Context, endpoint string, data url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create verify request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("verify API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse verify response: %w", err)
	}
	return parsed.Status, nil
}
