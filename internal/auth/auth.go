// Package auth verifies caller credentials against an in-memory registry of
// HMAC-hashed API keys.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/prooftamil/ime-gateway/internal/config"
)

// Header names carrying the caller's credentials.
const (
	HeaderAPIKey   = "X-API-Key"
	HeaderClientID = "X-Client-Id"
)

// Credential is a registered client. KeyHash is HMAC-SHA256(secret, apiKey);
// the raw key is never retained.
type Credential struct {
	ClientID string
	Name     string
	KeyHash  []byte
}

// Identity is the authenticated caller.
type Identity struct {
	ClientID string
	Name     string
}

// Store holds the credential registry. Reads take no lock: the registry is
// an immutable snapshot swapped whole by Replace.
type Store struct {
	secret   []byte
	registry atomic.Pointer[map[string]Credential]
}

// NewStore creates a store over the given credentials.
func NewStore(secret string, creds []Credential) *Store {
	s := &Store{secret: []byte(secret)}
	s.Replace(creds)
	return s
}

// Authenticate checks apiKey against the credential registered for clientID.
// Failures are returned as *Failure.
func (s *Store) Authenticate(apiKey, clientID string) (*Identity, error) {
	if apiKey == "" || clientID == "" {
		return nil, &Failure{Reason: ReasonMissingHeader}
	}

	cred, ok := (*s.registry.Load())[clientID]
	if !ok {
		return nil, &Failure{Reason: ReasonUnknownClient}
	}

	// hmac.Equal is constant time.
	if !hmac.Equal(HashAPIKey(s.secret, apiKey), cred.KeyHash) {
		return nil, &Failure{Reason: ReasonBadKey}
	}

	return &Identity{ClientID: cred.ClientID, Name: cred.Name}, nil
}

// Replace installs a new registry snapshot. In-flight Authenticate calls keep
// using the snapshot they loaded.
func (s *Store) Replace(creds []Credential) {
	registry := make(map[string]Credential, len(creds))
	for _, c := range creds {
		registry[c.ClientID] = c
	}
	s.registry.Store(&registry)
}

// Len returns the number of registered clients.
func (s *Store) Len() int {
	return len(*s.registry.Load())
}

// HashAPIKey returns HMAC-SHA256(secret, apiKey).
func HashAPIKey(secret []byte, apiKey string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(apiKey))
	return mac.Sum(nil)
}

// CredentialsFromConfig hashes raw keys and decodes pre-hashed ones.
func CredentialsFromConfig(secret string, clients []config.ClientConfig) ([]Credential, error) {
	creds := make([]Credential, 0, len(clients))
	for _, c := range clients {
		cred := Credential{ClientID: c.ID, Name: c.Name}
		if c.KeyHash != "" {
			hash, err := hex.DecodeString(strings.TrimSpace(c.KeyHash))
			if err != nil {
				return nil, fmt.Errorf("client %s: decode key_hash: %w", c.ID, err)
			}
			if len(hash) != sha256.Size {
				return nil, fmt.Errorf("client %s: key_hash must be %d bytes, got %d", c.ID, sha256.Size, len(hash))
			}
			cred.KeyHash = hash
		} else {
			cred.KeyHash = HashAPIKey([]byte(secret), c.APIKey)
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// ExtractCredentials reads the API key and client id headers.
func ExtractCredentials(r *http.Request) (apiKey, clientID string) {
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey)), strings.TrimSpace(r.Header.Get(HeaderClientID))
}
