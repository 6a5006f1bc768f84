package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultAccount is the account name used when none is configured.
const DefaultAccount = "default"

// ErrNoToken is returned when no token has been stored for an account.
var ErrNoToken = errors.New("no stored Google OAuth token")

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// TokenStore keeps one OAuth token per account in a directory, next to the
// installed-app client credentials downloaded from the Google Cloud console.
type TokenStore struct {
	credentialsFile string
	tokensDir       string
}

// NewTokenStore returns a TokenStore reading client credentials from
// credentialsFile and keeping tokens below tokensDir.
func NewTokenStore(credentialsFile, tokensDir string) *TokenStore {
	return &TokenStore{credentialsFile: credentialsFile, tokensDir: tokensDir}
}

// OAuthConfig loads the client credentials file.
func (s *TokenStore) OAuthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", s.credentialsFile, err)
	}
	conf, err := google.ConfigFromJSON(data, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", s.credentialsFile, err)
	}
	return conf, nil
}

// validateAccountName checks that an account name is safe to use in a file name.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphen and underscore are allowed", account)
	}
	return nil
}

// TokenFilePath returns the token file of an account.
func (s *TokenStore) TokenFilePath(account string) (string, error) {
	if err := validateAccountName(account); err != nil {
		return "", err
	}
	return filepath.Join(s.tokensDir, "google-"+account+".token"), nil
}

// HasTokenForAccount reports whether a token file exists for the account.
func (s *TokenStore) HasTokenForAccount(account string) bool {
	_, err := s.ReadToken(account)
	return err == nil
}

// ReadToken loads the stored token of an account.
func (s *TokenStore) ReadToken(account string) (*oauth2.Token, error) {
	path, err := s.TokenFilePath(account)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for account %s", ErrNoToken, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("invalid token file %s: no tokens", path)
	}
	return &tok, nil
}

// WriteToken stores the token of an account, readable by the owner only.
func (s *TokenStore) WriteToken(account string, tok *oauth2.Token) error {
	path, err := s.TokenFilePath(account)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.tokensDir, 0700); err != nil {
		return fmt.Errorf("failed to create tokens directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// AuthURL returns the consent page URL. redirectURL must match a redirect
// registered for the client; installed-app clients accept any loopback port.
func (s *TokenStore) AuthURL(redirectURL, state string) (string, error) {
	conf, err := s.OAuthConfig()
	if err != nil {
		return "", err
	}
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// SaveToken exchanges an authorization code for tokens and saves them.
func (s *TokenStore) SaveToken(ctx context.Context, account, redirectURL, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	conf, err := s.OAuthConfig()
	if err != nil {
		return err
	}
	conf.RedirectURL = redirectURL
	tok, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return s.WriteToken(account, tok)
}

// TokenSourceForAccount returns a token source for the stored token of an
// account. Refreshed tokens are written back to the token file. The token
// is validated, so an expired refresh token is reported here.
func (s *TokenStore) TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	conf, err := s.OAuthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := s.ReadToken(account)
	if err != nil {
		return nil, err
	}
	ts := &persistingTokenSource{
		store:   s,
		account: account,
		base:    conf.TokenSource(ctx, tok),
		last:    tok.AccessToken,
	}
	reuse := oauth2.ReuseTokenSource(tok, ts)
	if _, err := reuse.Token(); err != nil {
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}
	return reuse, nil
}

// HTTPClientForAccount returns an HTTP client authorized as the account.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
// on large raw message downloads.
func (s *TokenStore) HTTPClientForAccount(ctx context.Context, account string) (*http.Client, error) {
	ts, err := s.TokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &http.Transport{Proxy: http.ProxyFromEnvironment, ForceAttemptHTTP2: false},
		},
	}, nil
}

// GetAuthenticationErrorMessage returns a user-facing hint for a missing or
// invalid token.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("Google OAuth token for account %q is missing or invalid. "+
		"Run 'attachextract auth --account %s' to authorize access to Gmail.", account, account)
}
