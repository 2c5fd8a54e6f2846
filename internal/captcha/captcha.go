// Package captcha gates the login flow behind a human check when enabled.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
)

// Verifier checks a captcha token for a remote address.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type httpVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewVerifier builds a reCAPTCHA-style verifier. verifyURL is overridable
// for tests; empty means the public endpoint.
func NewVerifier(secret, verifyURL string) Verifier {
	if verifyURL == "" {
		verifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	return &httpVerifier{
		secret:     secret,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *httpVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	data := url.Values{}
	data.Set("secret", v.secret)
	data.Set("response", token)
	data.Set("remoteip", remoteIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "creating captcha request", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "captcha request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "reading captcha response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.Internal, fmt.Sprintf("captcha API returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apperr.Wrap(apperr.Internal, "parsing captcha response", err)
	}
	if !parsed.Success {
		return apperr.New(apperr.BadRequest, "captcha verification failed")
	}
	return nil
}
