package google

import (
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// persistingTokenSource writes every newly issued access token back to the
// account's token file so the next run does not start with an expired one.
type persistingTokenSource struct {
	store   *TokenStore
	account string
	base    oauth2.TokenSource

	mu   sync.Mutex
	last string
}

// Token returns a token from the underlying source, saving it when it changed.
func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	if err := p.store.WriteToken(p.account, tok); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	p.last = tok.AccessToken
	return tok, nil
}
