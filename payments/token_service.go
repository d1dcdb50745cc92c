package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const tokenPath = "/oauth/v1/generate?grant_type=client_credentials"

// tokenExpiryMargin is taken off the advertised lifetime so a cached token is never used at the edge.
const tokenExpiryMargin = 60 * time.Second

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   flexibleInt `json:"expires_in"`
}

// flexibleInt accepts both 3599 and "3599"; the gateway sends the latter.
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*f = flexibleInt(n)
	return nil
}

// AccessToken returns a cached bearer token, fetching a new one when the cached token has expired.
func (m *MpesaClient) AccessToken(ctx context.Context) (string, error) {
	m.tokenMu.RLock()
	if m.token != "" && m.now().Before(m.tokenExpiry) {
		token := m.token
		m.tokenMu.RUnlock()
		return token, nil
	}
	m.tokenMu.RUnlock()

	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()

	if m.token != "" && m.now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	tokenResp, err := m.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	m.token = tokenResp.AccessToken
	lifetime := time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpiryMargin
	if lifetime < 0 {
		lifetime = 0
	}
	m.tokenExpiry = m.now().Add(lifetime)
	logrus.Debug("Fetched and cached M-Pesa access token")

	return m.token, nil
}

// FetchToken always asks the gateway for a fresh token. Used by credential checks.
func (m *MpesaClient) FetchToken(ctx context.Context) (*TokenResponse, error) {
	return m.fetchToken(ctx)
}

func (m *MpesaClient) fetchToken(ctx context.Context) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return nil, unavailable("token", 0, nil, err)
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.do(req, "token")
	if err != nil {
		return nil, unavailable("token", 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("token", resp.StatusCode, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.WithField("status", resp.StatusCode).Errorf("M-Pesa token API error: %s", string(body))
		return nil, unavailable("token", resp.StatusCode, body, nil)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, unavailable("token", resp.StatusCode, body, fmt.Errorf("failed to unmarshal token response: %w", err))
	}
	if tokenResp.AccessToken == "" {
		return nil, unavailable("token", resp.StatusCode, body, fmt.Errorf("no access token received"))
	}

	return &tokenResp, nil
}
