package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// Google's public OAuth 2.0 endpoints. Overridable through GoogleConfig so
// tests can point the provider at an httptest server.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// DefaultProviderTimeout bounds each outbound call to the identity provider.
const DefaultProviderTimeout = 10 * time.Second

// GoogleProfile is the part of the userinfo response we keep.
//
// Only Email is required. The name fields feed the new user's first/last
// name and the username fallback when the email has no usable local part.
type GoogleProfile struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
}

// GoogleConfig holds the client registration and endpoint overrides.
// Empty endpoint fields fall back to Google's public URLs.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	Timeout time.Duration
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the browser to Google's consent page with our client ID, the
//     requested scopes and a random state value.
//  2. The user approves (or denies) on Google.
//  3. Google redirects back to RedirectURL with a short-lived "code".
//  4. We POST the code plus our client secret to the token endpoint.
//  5. We call the userinfo endpoint with the resulting access token.
//
// Steps 4 and 5 are server-to-server and each one is bounded by Timeout.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	client      *http.Client
}

// NewGoogleProvider builds a provider. It never fails: an empty ClientID
// yields a provider whose Configured() is false, and the login routes then
// answer with an error instead of redirecting.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = GoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// client_id/client_secret go in the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.Timeout,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether client credentials were supplied.
func (p *GoogleProvider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the consent-page URL to redirect the browser to.
//
// The request asks for offline access with a forced consent prompt and
// incremental authorization, and carries state for the callback to check.
func (p *GoogleProvider) AuthURL(state string) (string, error) {
	if !p.Configured() {
		return "", ErrProviderNotConfigured
	}
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// Exchange trades an authorization code for the user's Google profile.
//
// Errors:
//   - ErrProviderNotConfigured: no client credentials
//   - ErrMissingCode: code is empty
//   - ErrTokenExchangeFailed: the token endpoint rejected the code or returned
//     no access token
//   - ErrProviderError: network failure, timeout or a bad userinfo response
//   - ErrNoEmailProvided: the profile has no email
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if !p.Configured() {
		return nil, ErrProviderNotConfigured
	}
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := p.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := p.fetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	if profile.Email == "" {
		return nil, ErrNoEmailProvided
	}

	return profile, nil
}

func (p *GoogleProvider) exchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenExchangeFailed)
	}

	return tok, nil
}

func (p *GoogleProvider) fetchProfile(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	// The returned client adds "Authorization: Bearer <token>" to each request.
	client := p.config.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo request: %v", ErrProviderError, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling userinfo: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned status %d", ErrProviderError, resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo: %v", ErrProviderError, err)
	}

	return &profile, nil
}

// classifyExchangeError separates "Google said no" from "we could not reach Google".
func classifyExchangeError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if rErr.ErrorCode != "" {
			return fmt.Errorf("%w: %s", ErrTokenExchangeFailed, rErr.ErrorCode)
		}
		return fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	var uErr *url.Error
	if errors.As(err, &uErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	return fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
}
