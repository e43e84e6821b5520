// Package session supplies the current user identity to the realtime
// channel and the REST client.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned when no user is logged in.
var ErrNoSession = errors.New("no active session")

// Provider exposes the logged-in user, if any.
type Provider interface {
	CurrentUserID() (string, bool)
}

// Static is a fixed identity, used when the user id is configured directly.
type Static string

func (s Static) CurrentUserID() (string, bool) {
	return string(s), s != ""
}

// userClaims are tried in order when the subject claim is empty.
var userClaims = []string{"userId", "user_id", "_id", "id"}

// TokenProvider derives the user from an access token's claims. The token
// is issued by the server, which verifies it; the client only reads it.
// It also serves the token to HTTP and socket clients as an oauth2.TokenSource.
type TokenProvider struct {
	mu     sync.RWMutex
	raw    string
	claims jwt.MapClaims
	now    func() time.Time
}

// NewTokenProvider parses token. An empty token yields a logged-out provider.
func NewTokenProvider(token string) (*TokenProvider, error) {
	p := &TokenProvider{now: time.Now}
	if err := p.SetToken(token); err != nil {
		return nil, err
	}
	return p, nil
}

// SetToken replaces the current token, e.g. after a refresh or logout ("").
func (p *TokenProvider) SetToken(token string) error {
	var claims jwt.MapClaims
	if token != "" {
		claims = jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return fmt.Errorf("parse access token: %w", err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw = token
	p.claims = claims
	return nil
}

func (p *TokenProvider) expired() bool {
	if p.claims == nil {
		return true
	}
	exp, err := p.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !p.now().Before(exp.Time)
}

// CurrentUserID returns the user in the token, unless it is missing or expired.
func (p *TokenProvider) CurrentUserID() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.expired() {
		return "", false
	}
	if sub, err := p.claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	for _, key := range userClaims {
		if v, ok := p.claims[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Token implements oauth2.TokenSource.
func (p *TokenProvider) Token() (*oauth2.Token, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.raw == "" || p.expired() {
		return nil, ErrNoSession
	}
	tok := &oauth2.Token{AccessToken: p.raw, TokenType: "Bearer"}
	if exp, err := p.claims.GetExpirationTime(); err == nil && exp != nil {
		tok.Expiry = exp.Time
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*TokenProvider)(nil)
