// Package auth resolves the API key and secret token used against the Jason API.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted when a credential is not given explicitly.
const (
	APIKeyEnv      = "JASON_API_KEY"
	SecretTokenEnv = "JASON_SECRET_TOKEN"
)

// ErrMissingCredentials is returned when a required credential could not be resolved.
var ErrMissingCredentials = errors.New("missing credentials")

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Credentials is the pair sent with every authenticated call.
type Credentials struct {
	APIKey      string
	SecretToken string
}

// Resolve fills the empty values from the environment via lookup.
// lookup is only called for values that were not given explicitly.
func Resolve(apiKey, secretToken string, lookup LookupFunc) Credentials {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		if v, ok := lookup(APIKeyEnv); ok {
			apiKey = strings.TrimSpace(v)
		}
	}

	secretToken = strings.TrimSpace(secretToken)
	if secretToken == "" {
		if v, ok := lookup(SecretTokenEnv); ok {
			secretToken = strings.TrimSpace(v)
		}
	}

	return Credentials{APIKey: apiKey, SecretToken: secretToken}
}

// Require checks that the API key, and the secret token when needToken is set, are present.
func (c Credentials) Require(needToken bool) error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key not found, set --api-key or %s", ErrMissingCredentials, APIKeyEnv)
	}
	if needToken && c.SecretToken == "" {
		return fmt.Errorf("%w: secret token not found, set --secret-token or %s", ErrMissingCredentials, SecretTokenEnv)
	}
	return nil
}

// Fingerprint returns a short SHA-256 prefix of the API key, safe to log.
func (c Credentials) Fingerprint() string {
	if c.APIKey == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(c.APIKey))
	return hex.EncodeToString(hash[:])[:12]
}
