// Package keys is the key registry of the vault: it provisions per-user RSA
// key pairs, serves public keys from the users table and holds private keys
// unlocked by an authenticated session in a bounded session table.
//
// Private keys are stored only sealed under the user's passphrase-derived
// master key; the clear key exists solely in process memory after Unlock.
package keys

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/cryptox"
	"github.com/dmitrijs2005/papervault/internal/server/models"
)

// UserReader is the part of the users repository the registry needs.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// KeyMaterial is what gets persisted on the user row at registration.
type KeyMaterial struct {
	PublicKey        []byte
	SealedPrivateKey []byte
	Salt             []byte
	Verifier         []byte
}

type session struct {
	key     *rsa.PrivateKey
	expires time.Time
}

// Registry implements PublicKeyOf / PrivateKeyFor over a UserReader.
// Unlocked private keys live in a bounded session table that only expiry,
// Lock or Forget clear; public keys are cached in ristretto, where eviction
// just costs another lookup.
type Registry struct {
	users      UserReader
	publicKeys *ristretto.Cache
	sessionTTL time.Duration
	bits       int

	mu          sync.Mutex
	sessions    map[string]session
	maxSessions int
	now         func() time.Time
}

// NewRegistry builds a registry holding up to maxSessions unlocked keys,
// each for sessionTTL after its last Unlock or Extend.
func NewRegistry(users UserReader, sessionTTL time.Duration, bits int, maxSessions int64) (*Registry, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxSessions * 10,
		MaxCost:            maxSessions,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("public key cache: %w", err)
	}
	return &Registry{
		users:       users,
		publicKeys:  cache,
		sessionTTL:  sessionTTL,
		bits:        bits,
		sessions:    make(map[string]session),
		maxSessions: int(maxSessions),
		now:         time.Now,
	}, nil
}

// Close releases the cache goroutines and drops every session.
func (r *Registry) Close() {
	r.publicKeys.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.sessions)
}

// Provision generates a key pair for a new account and seals the private
// half under a master key derived from passphrase.
func (r *Registry) Provision(passphrase string) (*KeyMaterial, error) {
	priv, err := cryptox.GenerateKeyPair(r.bits)
	if err != nil {
		return nil, err
	}

	pub, err := cryptox.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	der, err := cryptox.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(der)

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	masterKey := cryptox.DeriveMasterKey([]byte(passphrase), salt)
	defer common.WipeByteArray(masterKey)

	sealed, err := cryptox.SealBlob(masterKey, der)
	if err != nil {
		return nil, err
	}

	return &KeyMaterial{
		PublicKey:        pub,
		SealedPrivateKey: sealed,
		Salt:             salt,
		Verifier:         cryptox.MakeVerifier(masterKey),
	}, nil
}

// Unlock checks passphrase against the user's verifier, opens the sealed
// private key and binds it to the user id for the session lifetime.
// A wrong passphrase yields common.ErrorUnauthorized.
func (r *Registry) Unlock(ctx context.Context, user *models.User, passphrase string) error {
	masterKey := cryptox.DeriveMasterKey([]byte(passphrase), user.Salt)
	defer common.WipeByteArray(masterKey)

	if subtle.ConstantTimeCompare(cryptox.MakeVerifier(masterKey), user.Verifier) != 1 {
		return common.ErrorUnauthorized
	}

	der, err := cryptox.OpenBlob(masterKey, user.SealedPrivateKey)
	if err != nil {
		return fmt.Errorf("open private key: %w", common.ErrorUnauthorized)
	}
	defer common.WipeByteArray(der)

	priv, err := cryptox.ParsePrivateKey(der)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if _, ok := r.sessions[user.ID]; !ok && len(r.sessions) >= r.maxSessions {
		r.purgeExpired(now)
		if len(r.sessions) >= r.maxSessions {
			return fmt.Errorf("session limit of %d reached: %w", r.maxSessions, common.ErrorInternal)
		}
	}
	r.sessions[user.ID] = session{key: priv, expires: now.Add(r.sessionTTL)}

	return nil
}

// Extend restarts the lifetime of userID's session. It reports false when
// there is no live session to extend.
func (r *Registry) Extend(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s, ok := r.sessions[userID]
	if !ok || !now.Before(s.expires) {
		delete(r.sessions, userID)
		return false
	}
	s.expires = now.Add(r.sessionTTL)
	r.sessions[userID] = s
	return true
}

// Lock drops the unlocked private key of userID, if any.
func (r *Registry) Lock(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Forget drops everything cached for userID, used on account removal.
func (r *Registry) Forget(userID string) {
	r.Lock(userID)
	r.publicKeys.Del(userID)
	r.publicKeys.Wait()
}

// PublicKeyOf returns the public key of userID or common.ErrUnknownRecipient.
func (r *Registry) PublicKeyOf(ctx context.Context, userID string) (*rsa.PublicKey, error) {
	if v, ok := r.publicKeys.Get(userID); ok {
		return v.(*rsa.PublicKey), nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, common.ErrUnknownRecipient)
		}
		return nil, err
	}

	pub, err := cryptox.ParsePublicKeyPEM(user.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("user %s public key: %w", userID, err)
	}

	r.publicKeys.Set(userID, pub, 1)

	return pub, nil
}

// PrivateKeyFor returns the private key unlocked for userID by a live
// session. Without one the caller gets common.ErrSessionLocked and must log
// in again.
func (r *Registry) PrivateKeyFor(ctx context.Context, userID string) (*rsa.PrivateKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok || !r.now().Before(s.expires) {
		delete(r.sessions, userID)
		return nil, fmt.Errorf("no unlocked key for %s: %w", userID, common.ErrSessionLocked)
	}
	return s.key, nil
}

func (r *Registry) purgeExpired(now time.Time) {
	for id, s := range r.sessions {
		if !now.Before(s.expires) {
			delete(r.sessions, id)
		}
	}
}
