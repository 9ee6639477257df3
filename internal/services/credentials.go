package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

const (
	// MessagingScope is the OAuth2 scope required by the FCM send endpoint.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	// GrantTypeJWTBearer is the grant used to trade a signed assertion for a bearer token.
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// DefaultTokenURI is Google's OAuth2 token endpoint.
	DefaultTokenURI = "https://oauth2.googleapis.com/token"
	// AssertionLifetime is the validity window of a signed assertion.
	AssertionLifetime = time.Hour

	cacheSafetyMargin = time.Minute
)

// ServiceAccount is the subset of a Google service-account key file used to
// mint bearer tokens.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads the key document from path, or parses raw when path
// is empty.
func LoadServiceAccount(path, raw string) (*ServiceAccount, error) {
	data := []byte(raw)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account: %w", err)
		}
		data = b
	}
	return ParseServiceAccount(data)
}

// ParseServiceAccount decodes and validates a service-account JSON document.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account must contain client_email and private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURI
	}
	return &sa, nil
}

// NewAssertion signs the RS256 assertion exchanged for a bearer token. The
// assertion expires exactly AssertionLifetime after now.
func NewAssertion(sa *ServiceAccount, audience string, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": MessagingScope,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(AssertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if sa.PrivateKeyID != "" {
		token.Header["kid"] = sa.PrivateKeyID
	}
	return token.SignedString(key)
}

// AuthError reports a credential exchange that produced no bearer token.
type AuthError struct {
	StatusCode  int
	Reason      string
	Description string
}

func (e *AuthError) Error() string {
	msg := "credential exchange failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenSource exchanges signed assertions for FCM bearer tokens.
type TokenSource struct {
	account  *ServiceAccount
	endpoint string
	client   *http.Client
	cache    *cache.Cache
	now      func() time.Time
}

// NewTokenSource builds a token source. endpoint overrides the account's
// token_uri when non-empty; a nil tokenCache disables caching.
func NewTokenSource(account *ServiceAccount, endpoint string, timeout time.Duration, tokenCache *cache.Cache) *TokenSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if endpoint == "" {
		endpoint = account.TokenURI
	}
	return &TokenSource{
		account:  account,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		cache: tokenCache,
		now:   time.Now,
	}
}

// Token returns a bearer token, from the cache when a live one is held.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	key := "bearer:" + s.account.ClientEmail
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(string), nil
		}
	}

	assertion, err := NewAssertion(s.account, s.endpoint, s.now())
	if err != nil {
		return "", &AuthError{Reason: "sign assertion", Description: err.Error()}
	}

	tok, err := s.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	if s.cache != nil && tok.ExpiresIn > 0 {
		ttl := time.Duration(tok.ExpiresIn)*time.Second - cacheSafetyMargin
		if ttl > 0 {
			s.cache.Set(key, tok.AccessToken, ttl)
		}
	}
	return tok.AccessToken, nil
}

func (s *TokenSource) exchange(ctx context.Context, assertion string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type": {GrantTypeJWTBearer},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &AuthError{Reason: "token endpoint unreachable", Description: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "read token response", Description: err.Error()}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil && resp.StatusCode < 400 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "decode token response", Description: err.Error()}
	}
	if resp.StatusCode >= 400 || tok.AccessToken == "" {
		reason := tok.Error
		if reason == "" {
			reason = "no access token in response"
		}
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: reason, Description: tok.ErrorDescription}
	}
	return &tok, nil
}
