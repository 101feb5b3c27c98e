// Package envelope encodes and decodes the opaque ciphertext container
// stored for every paper: one symmetrically encrypted payload plus the
// content key wrapped separately for each recipient.
//
// The package performs no cryptography. Version 1 wire layout, every field
// length-prefixed with a protobuf varint:
//
//	[version][content-key-id][nonce][tag][ciphertext]
//	[recipient-count]{[recipient-id][wrapped-key]}...
//
// The resulting bytes are carried as standard padded base64 text.
package envelope

import (
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Version1 is the only layout understood by Decode.
const Version1 uint64 = 1

// Recipient is one entry of an envelope: who may open it and the content key
// wrapped under that user's public key.
type Recipient struct {
	ID         string
	WrappedKey []byte
}

// Envelope is the decoded form of the container. Treat values as
// immutable: a content or recipient change produces a new Envelope.
type Envelope struct {
	Version    uint64
	KeyID      uuid.UUID
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
	Recipients []Recipient
}

// Recipient returns the entry for id, if any.
func (e *Envelope) Recipient(id string) (Recipient, bool) {
	for _, r := range e.Recipients {
		if r.ID == id {
			return r, true
		}
	}
	return Recipient{}, false
}

// RecipientIDs lists recipient ids in envelope order.
func (e *Envelope) RecipientIDs() []string {
	ids := make([]string, len(e.Recipients))
	for i, r := range e.Recipients {
		ids[i] = r.ID
	}
	return ids
}

// AssociatedData returns the header bytes bound to the payload by the AEAD.
// Recipients are deliberately left out so the content key can be re-wrapped
// without re-encrypting the payload.
func AssociatedData(version uint64, keyID uuid.UUID) []byte {
	b := protowire.AppendVarint(nil, version)
	return protowire.AppendBytes(b, keyID[:])
}

func checkRecipients(recipients []Recipient) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients", common.ErrMalformedEnvelope)
	}
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if r.ID == "" {
			return fmt.Errorf("%w: empty recipient id", common.ErrMalformedEnvelope)
		}
		if len(r.WrappedKey) == 0 {
			return fmt.Errorf("%w: empty wrapped key", common.ErrMalformedEnvelope)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate recipient", common.ErrMalformedEnvelope)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// Encode serializes e using the version 1 layout.
func Encode(e *Envelope) (string, error) {
	if e.Version != Version1 {
		return "", fmt.Errorf("%w: unsupported version %d", common.ErrMalformedEnvelope, e.Version)
	}
	if err := checkRecipients(e.Recipients); err != nil {
		return "", err
	}

	b := protowire.AppendVarint(nil, e.Version)
	b = protowire.AppendBytes(b, e.KeyID[:])
	b = protowire.AppendBytes(b, e.Nonce)
	b = protowire.AppendBytes(b, e.Tag)
	b = protowire.AppendBytes(b, e.Ciphertext)
	b = protowire.AppendVarint(b, uint64(len(e.Recipients)))
	for _, r := range e.Recipients {
		b = protowire.AppendString(b, r.ID)
		b = protowire.AppendBytes(b, r.WrappedKey)
	}

	return base64.StdEncoding.EncodeToString(b), nil
}
