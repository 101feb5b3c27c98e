package services

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/cryptox"
	"github.com/dmitrijs2005/papervault/internal/envelope"
	"github.com/google/uuid"
)

// KeyRegistry resolves recipient keys. Private keys are only available
// for users with an unlocked session.
type KeyRegistry interface {
	PublicKeyOf(ctx context.Context, userID string) (*rsa.PublicKey, error)
	PrivateKeyFor(ctx context.Context, userID string) (*rsa.PrivateKey, error)
}

// EncryptionService produces and opens envelopes: one AES-256-GCM payload
// with its content key wrapped under each recipient's RSA public key.
type EncryptionService struct {
	keys KeyRegistry
}

func NewEncryptionService(keys KeyRegistry) *EncryptionService {
	return &EncryptionService{keys: keys}
}

// EncryptForRecipients seals plaintext under a fresh content key and nonce
// and wraps the key for every recipient. Two calls never share a key or a
// nonce, so equal inputs give unrelated envelopes.
func (s *EncryptionService) EncryptForRecipients(ctx context.Context, recipientIDs []string, plaintext []byte) (string, error) {
	if err := checkRecipientIDs(recipientIDs); err != nil {
		return "", err
	}

	contentKey := cryptox.NewContentKey()
	defer common.WipeByteArray(contentKey)

	keyID := uuid.New()
	ciphertext, nonce, tag, err := cryptox.Seal(contentKey, plaintext, envelope.AssociatedData(envelope.Version1, keyID))
	if err != nil {
		return "", err
	}

	recipients, err := s.wrapFor(ctx, recipientIDs, contentKey)
	if err != nil {
		return "", err
	}

	return envelope.Encode(&envelope.Envelope{
		Version:    envelope.Version1,
		KeyID:      keyID,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
		Recipients: recipients,
	})
}

// DecryptForUser opens env for userID. A user absent from the recipient
// list, or one whose entry does not unwrap with their key, gets
// common.ErrNotAuthorized; a recipient without an unlocked session gets
// common.ErrSessionLocked; a payload that fails authentication gets
// common.ErrIntegrityViolation and no plaintext.
func (s *EncryptionService) DecryptForUser(ctx context.Context, userID string, env string) ([]byte, error) {
	e, err := envelope.Decode(env)
	if err != nil {
		return nil, err
	}

	contentKey, err := s.unwrapFor(ctx, e, userID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(contentKey)

	return cryptox.Open(contentKey, e.Ciphertext, e.Nonce, e.Tag, envelope.AssociatedData(e.Version, e.KeyID))
}

// Rewrap returns a new envelope carrying the same payload with the content
// key wrapped for recipientIDs instead. callerID must be able to open env.
func (s *EncryptionService) Rewrap(ctx context.Context, callerID string, env string, recipientIDs []string) (string, error) {
	if err := checkRecipientIDs(recipientIDs); err != nil {
		return "", err
	}

	e, err := envelope.Decode(env)
	if err != nil {
		return "", err
	}

	contentKey, err := s.unwrapFor(ctx, e, callerID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(contentKey)

	// the unwrapped key must open this payload, not just decrypt an entry
	if _, err := cryptox.Open(contentKey, e.Ciphertext, e.Nonce, e.Tag, envelope.AssociatedData(e.Version, e.KeyID)); err != nil {
		return "", err
	}

	recipients, err := s.wrapFor(ctx, recipientIDs, contentKey)
	if err != nil {
		return "", err
	}

	out := *e
	out.Recipients = recipients
	return envelope.Encode(&out)
}

func (s *EncryptionService) wrapFor(ctx context.Context, recipientIDs []string, contentKey []byte) ([]envelope.Recipient, error) {
	recipients := make([]envelope.Recipient, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		pub, err := s.keys.PublicKeyOf(ctx, id)
		if err != nil {
			return nil, err
		}
		wrapped, err := cryptox.WrapKey(pub, contentKey)
		if err != nil {
			return nil, fmt.Errorf("wrap key for %s: %w", id, err)
		}
		recipients = append(recipients, envelope.Recipient{ID: id, WrappedKey: wrapped})
	}
	return recipients, nil
}

func (s *EncryptionService) unwrapFor(ctx context.Context, e *envelope.Envelope, userID string) ([]byte, error) {
	entry, ok := e.Recipient(userID)
	if !ok {
		return nil, fmt.Errorf("%s is not a recipient: %w", userID, common.ErrNotAuthorized)
	}

	priv, err := s.keys.PrivateKeyFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	contentKey, err := cryptox.UnwrapKey(priv, entry.WrappedKey)
	if err != nil || len(contentKey) != cryptox.KeySize {
		return nil, fmt.Errorf("unwrap content key: %w", common.ErrNotAuthorized)
	}
	return contentKey, nil
}

func checkRecipientIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("no recipients: %w", common.ErrValidation)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("empty recipient id: %w", common.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate recipient %s: %w", id, common.ErrValidation)
		}
		seen[id] = struct{}{}
	}
	return nil
}
