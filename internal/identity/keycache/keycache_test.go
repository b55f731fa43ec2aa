package keycache

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func keySetJSON(t *testing.T, kids map[string]*rsa.PublicKey) []byte {
	t.Helper()
	var set keySetResponse
	for kid, pub := range kids {
		set.Keys = append(set.Keys, keyRecord{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	body, err := json.Marshal(set)
	require.NoError(t, err)
	return body
}

func TestCache_FetchesAndMemoizes(t *testing.T) {
	key := generateKey(t)
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(keySetJSON(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey}))
	}))
	defer srv.Close()

	cache := New(WithEndpoint(identity.ProviderGoogle, srv.URL))

	got, err := cache.Get(context.Background(), identity.ProviderGoogle, "k1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.PublicKey.N))

	// Second call is a cache hit.
	_, err = cache.Get(context.Background(), identity.ProviderGoogle, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCache_StoresAllKeysFromFetchedSet(t *testing.T) {
	k1, k2 := generateKey(t), generateKey(t)
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(keySetJSON(t, map[string]*rsa.PublicKey{
			"k1": &k1.PublicKey,
			"k2": &k2.PublicKey,
		}))
	}))
	defer srv.Close()

	cache := New(WithEndpoint(identity.ProviderGoogle, srv.URL))

	_, err := cache.Get(context.Background(), identity.ProviderGoogle, "k1")
	require.NoError(t, err)

	// k2 was stored by the first fetch; no second network call.
	_, err = cache.Get(context.Background(), identity.ProviderGoogle, "k2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCache_KeyAbsentFromSet(t *testing.T) {
	key := generateKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(keySetJSON(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey}))
	}))
	defer srv.Close()

	cache := New(WithEndpoint(identity.ProviderGoogle, srv.URL))

	_, err := cache.Get(context.Background(), identity.ProviderGoogle, "unknown-kid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCache_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cache := New(WithEndpoint(identity.ProviderApple, srv.URL))

	_, err := cache.Get(context.Background(), identity.ProviderApple, "k1")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.False(t, errors.Is(err, ErrKeyNotFound))
}

func TestCache_ExpiredEntryIsRefetched(t *testing.T) {
	key := generateKey(t)
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(keySetJSON(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey}))
	}))
	defer srv.Close()

	cache := New(
		WithEndpoint(identity.ProviderGoogle, srv.URL),
		WithTTL(10*time.Millisecond),
	)

	_, err := cache.Get(context.Background(), identity.ProviderGoogle, "k1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = cache.Get(context.Background(), identity.ProviderGoogle, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCache_ConcurrentMissesCoalesce(t *testing.T) {
	key := generateKey(t)
	var fetches atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		<-release
		_, _ = w.Write(keySetJSON(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey}))
	}))
	defer srv.Close()

	cache := New(WithEndpoint(identity.ProviderGoogle, srv.URL))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = cache.Get(context.Background(), identity.ProviderGoogle, "k1")
		}()
	}

	// Give the goroutines time to pile up behind the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fetches.Load(), "concurrent misses must share one fetch")
}

func TestCache_ProviderWithoutEndpoint(t *testing.T) {
	cache := New()
	_, err := cache.Get(context.Background(), identity.Provider("unknown"), "k1")
	require.Error(t, err)
}

func TestReconstructRSAKey_RejectsBadEncoding(t *testing.T) {
	_, err := reconstructRSAKey("not base64!!", "AQAB")
	require.Error(t, err)
}
