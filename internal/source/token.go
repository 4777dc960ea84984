package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

// ServiceAccount is the subset of a Google service-account key file the
// token exchange needs. Loaded from an operator-provided file; never
// embedded in source or logged.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

func LoadServiceAccount(path string) (ServiceAccount, error) {
	var account ServiceAccount
	raw, err := os.ReadFile(path)
	if err != nil {
		return account, fmt.Errorf("read service account: %w", err)
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return account, fmt.Errorf("parse service account: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return account, fmt.Errorf("service account file missing client_email or private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = "https://oauth2.googleapis.com/token"
	}
	return account, nil
}

// tokenSource exchanges a signed RS256 service-account assertion for a
// bearer token and caches it until shortly before expiry.
type tokenSource struct {
	mu      sync.Mutex
	account ServiceAccount
	client  *http.Client
	token   string
	expiry  time.Time
}

func newTokenSource(account ServiceAccount, client *http.Client) *tokenSource {
	return &tokenSource{account: account, client: client}
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Until(ts.expiry) > time.Minute {
		return ts.token, nil
	}

	assertion, err := ts.assertion(time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("token exchange: decode: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access token")
	}

	ts.token = parsed.AccessToken
	ts.expiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return ts.token, nil
}

func (ts *tokenSource) assertion(now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(ts.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":   ts.account.ClientEmail,
		"scope": datastoreScope,
		"aud":   ts.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
