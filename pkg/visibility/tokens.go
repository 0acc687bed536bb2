package visibility

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownToken is returned when a token has no filter
var ErrUnknownToken = errors.New("unknown api token")

// Grant is one token entry of a token file
type Grant struct {
	Token   string   `yaml:"token"`
	User    string   `yaml:"user"`
	Readers []string `yaml:"readers"`
	Admin   bool     `yaml:"admin"`
}

// Filter returns the filter this grant confers. The user can always read its
// own records.
func (g Grant) Filter() Filter {
	if g.Admin {
		return AllowAll()
	}
	return ReadableBy(append([]string{g.User}, g.Readers...)...)
}

type tokenFile struct {
	Tokens []Grant `yaml:"tokens"`
}

// TokenStore maps API tokens to visibility filters
type TokenStore struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

// NewTokenStore creates a token store from grants
func NewTokenStore(grants ...Grant) *TokenStore {
	ts := &TokenStore{grants: make(map[string]Grant, len(grants))}
	for _, g := range grants {
		ts.grants[g.Token] = g
	}
	return ts
}

// LoadTokenFile reads a YAML token file
func LoadTokenFile(path string) (*TokenStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return ParseTokens(data)
}

// ParseTokens parses YAML token file content
func ParseTokens(data []byte) (*TokenStore, error) {
	var tf tokenFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	for i, g := range tf.Tokens {
		if g.Token == "" {
			return nil, fmt.Errorf("token entry %d: token is required", i)
		}
		if g.User == "" && !g.Admin {
			return nil, fmt.Errorf("token entry %d: user is required for non-admin tokens", i)
		}
	}

	return NewTokenStore(tf.Tokens...), nil
}

// Lookup returns the grant for a token
func (ts *TokenStore) Lookup(token string) (Grant, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	g, ok := ts.grants[token]
	if !ok || token == "" {
		return Grant{}, ErrUnknownToken
	}
	return g, nil
}

// Len returns the number of tokens
func (ts *TokenStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.grants)
}
