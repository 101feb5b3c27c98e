package services

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/cryptox"
	"github.com/stretchr/testify/require"
)

// RSA generation dominates test time, so keys are shared by user id across
// the whole package.
var (
	testKeysMu sync.Mutex
	testKeys   = map[string]*rsa.PrivateKey{}
)

func testKey(t *testing.T, id string) *rsa.PrivateKey {
	t.Helper()
	testKeysMu.Lock()
	defer testKeysMu.Unlock()
	if k, ok := testKeys[id]; ok {
		return k
	}
	k, err := cryptox.GenerateKeyPair(2048)
	require.NoError(t, err)
	testKeys[id] = k
	return k
}

// fakeKeys is a KeyRegistry over a fixed set of users. Users are unlocked
// on registration unless locked explicitly.
type fakeKeys struct {
	mu       sync.Mutex
	keys     map[string]*rsa.PrivateKey
	unlocked map[string]bool
}

func newFakeKeys(t *testing.T, ids ...string) *fakeKeys {
	t.Helper()
	f := &fakeKeys{keys: map[string]*rsa.PrivateKey{}, unlocked: map[string]bool{}}
	for _, id := range ids {
		f.keys[id] = testKey(t, id)
		f.unlocked[id] = true
	}
	return f
}

func (f *fakeKeys) lock(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked[id] = false
}

func (f *fakeKeys) PublicKeyOf(_ context.Context, id string) (*rsa.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, common.ErrUnknownRecipient)
	}
	return &k.PublicKey, nil
}

func (f *fakeKeys) PrivateKeyFor(_ context.Context, id string) (*rsa.PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.unlocked[id] {
		return nil, common.ErrSessionLocked
	}
	return f.keys[id], nil
}
