// Package keycache fetches and memoizes the verification keys external
// identity providers publish, keyed by (provider, key id).
//
// Entries carry a TTL; an expired entry is treated as a miss and refreshed.
// Concurrent misses for the same key coalesce into a single network fetch.
package keycache

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

// ErrKeyNotFound is returned when the provider's key set was fetched
// successfully but does not contain the requested key id.
var ErrKeyNotFound = fmt.Errorf("key id not present in provider key set: %w", sentinel.ErrNotFound)

const (
	defaultTTL          = time.Hour
	defaultFetchTimeout = 5 * time.Second
	maxKeySetBytes      = 1 << 20
)

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long a cached key is served before the next request for
// it triggers a refresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithHTTPClient overrides the HTTP client used for key set fetches. The
// client's timeout bounds each fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithEndpoint overrides the key set URL for a provider. Used by tests to
// point at a local server.
func WithEndpoint(provider identity.Provider, url string) Option {
	return func(c *Cache) {
		c.endpoints[provider] = url
	}
}

type entry struct {
	key       *rsa.PublicKey
	fetchedAt time.Time
}

// Cache is a concurrent, TTL-bounded cache of provider verification keys.
// Safe for simultaneous reads and writes; simultaneous misses for the same
// key share one fetch.
type Cache struct {
	mu        sync.RWMutex
	keys      map[string]entry
	ttl       time.Duration
	client    *http.Client
	endpoints map[identity.Provider]string
	group     singleflight.Group
}

// New constructs a key cache with the default provider endpoints.
func New(opts ...Option) *Cache {
	c := &Cache{
		keys: make(map[string]entry),
		ttl:  defaultTTL,
		client: &http.Client{
			Timeout: defaultFetchTimeout,
		},
		endpoints: map[identity.Provider]string{
			identity.ProviderGoogle: identity.ProviderGoogle.KeySetURL(),
			identity.ProviderApple:  identity.ProviderApple.KeySetURL(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the verification key for (provider, keyID). On a miss it
// fetches the provider's full key set, stores every key it contains, and
// returns the requested one. A fetched set lacking keyID fails with
// ErrKeyNotFound and is not retried within the same call.
func (c *Cache) Get(ctx context.Context, provider identity.Provider, keyID string) (*rsa.PublicKey, error) {
	ck := cacheKey(provider, keyID)

	c.mu.RLock()
	e, ok := c.keys[ck]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.key, nil
	}

	// Coalesce concurrent misses for the same key into one fetch.
	v, err, _ := c.group.Do(ck, func() (any, error) {
		// A racing call may have refreshed the entry while we queued.
		c.mu.RLock()
		e, ok := c.keys[ck]
		c.mu.RUnlock()
		if ok && time.Since(e.fetchedAt) < c.ttl {
			return e.key, nil
		}

		fetched, err := c.fetchKeySet(ctx, provider)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		c.mu.Lock()
		for kid, key := range fetched {
			c.keys[cacheKey(provider, kid)] = entry{key: key, fetchedAt: now}
		}
		c.mu.Unlock()

		key, ok := fetched[keyID]
		if !ok {
			return nil, fmt.Errorf("provider %s key %q: %w", provider, keyID, ErrKeyNotFound)
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

func cacheKey(provider identity.Provider, keyID string) string {
	return string(provider) + "_" + keyID
}

// keySetResponse is the JSON shape of a provider's published key set. Only
// RSA fields are needed; both Google and Apple sign with RS256.
type keySetResponse struct {
	Keys []keyRecord `json:"keys"`
}

type keyRecord struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (c *Cache) fetchKeySet(ctx context.Context, provider identity.Provider) (map[string]*rsa.PublicKey, error) {
	url, ok := c.endpoints[provider]
	if !ok || url == "" {
		return nil, fmt.Errorf("no key set endpoint configured for provider %s", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create key set request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set for %s: %w", provider, errors.Join(err, sentinel.ErrUnavailable))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set endpoint for %s returned status %d: %w", provider, resp.StatusCode, sentinel.ErrUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("read key set response: %w", err)
	}

	var keySet keySetResponse
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, fmt.Errorf("parse key set JSON for %s: %w", provider, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(keySet.Keys))
	for _, record := range keySet.Keys {
		if record.Kid == "" || record.Kty != "RSA" {
			continue
		}
		key, err := reconstructRSAKey(record.N, record.E)
		if err != nil {
			continue // skip malformed records, the rest of the set is usable
		}
		keys[record.Kid] = key
	}
	return keys, nil
}

// reconstructRSAKey builds an *rsa.PublicKey from the base64url-no-pad
// modulus and exponent in a key record.
func reconstructRSAKey(nEncoded, eEncoded string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nEncoded)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eEncoded)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
