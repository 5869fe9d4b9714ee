package reranker

import (
	"fmt"
	"os"
	"strings"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// Credential bindings of the Cohere backend, in lookup order
const (
	CredentialCohere       = "cohere"
	CredentialCohereLegacy = "cohere_legacy"
)

// CredentialStore resolves a named credential binding to a secret
type CredentialStore interface {
	Lookup(binding string) (string, bool)
}

// StaticCredentials is an in-memory binding table, usually filled from config
type StaticCredentials map[string]string

// Lookup implements CredentialStore
func (s StaticCredentials) Lookup(binding string) (string, bool) {
	v, ok := s[binding]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// EnvCredentials reads bindings from environment variables named
// <PREFIX><BINDING>_API_KEY, e.g. COHERE_API_KEY for "cohere"
type EnvCredentials struct {
	Prefix string
}

// Lookup implements CredentialStore
func (e EnvCredentials) Lookup(binding string) (string, bool) {
	name := e.Prefix + strings.ToUpper(binding) + "_API_KEY"
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ChainCredentials consults each store in order
type ChainCredentials []CredentialStore

// Lookup implements CredentialStore
func (c ChainCredentials) Lookup(binding string) (string, bool) {
	for _, store := range c {
		if store == nil {
			continue
		}
		if v, ok := store.Lookup(binding); ok {
			return v, true
		}
	}
	return "", false
}

// ResolveCredential returns the secret of the first binding that resolves
func ResolveCredential(store CredentialStore, bindings ...string) (string, error) {
	if store != nil {
		for _, binding := range bindings {
			if v, ok := store.Lookup(binding); ok {
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("%w: tried %s", types.ErrCredentialNotFound, strings.Join(bindings, ", "))
}
