package envelope

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// reader consumes length-prefixed fields and remembers the first error.
type reader struct {
	buf []byte
	err error
}

func (r *reader) fail(field string, n int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %v", common.ErrMalformedEnvelope, field, protowire.ParseError(n))
	}
}

func (r *reader) varint(field string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		r.fail(field, n)
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) bytes(field string) []byte {
	if r.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.buf)
	if n < 0 {
		r.fail(field, n)
		return nil
	}
	r.buf = r.buf[n:]
	return bytes.Clone(v)
}

// Decode parses an envelope produced by Encode. Any unknown version,
// inconsistent length, trailing data or invalid recipient list yields
// common.ErrMalformedEnvelope.
func Decode(s string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", common.ErrMalformedEnvelope)
	}

	r := &reader{buf: raw}

	e := &Envelope{Version: r.varint("version")}
	if r.err == nil && e.Version != Version1 {
		return nil, fmt.Errorf("%w: unknown version %d", common.ErrMalformedEnvelope, e.Version)
	}

	keyID := r.bytes("content key id")
	e.Nonce = r.bytes("nonce")
	e.Tag = r.bytes("tag")
	e.Ciphertext = r.bytes("ciphertext")
	count := r.varint("recipient count")
	if r.err != nil {
		return nil, r.err
	}

	id, err := uuid.FromBytes(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: content key id", common.ErrMalformedEnvelope)
	}
	e.KeyID = id

	// every entry needs at least two length bytes
	if count > uint64(len(r.buf)/2) {
		return nil, fmt.Errorf("%w: recipient count %d exceeds data", common.ErrMalformedEnvelope, count)
	}

	e.Recipients = make([]Recipient, 0, count)
	for i := uint64(0); i < count; i++ {
		rid := r.bytes("recipient id")
		wrapped := r.bytes("wrapped key")
		if r.err != nil {
			return nil, r.err
		}
		e.Recipients = append(e.Recipients, Recipient{ID: string(rid), WrappedKey: wrapped})
	}

	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", common.ErrMalformedEnvelope, len(r.buf))
	}
	if err := checkRecipients(e.Recipients); err != nil {
		return nil, err
	}

	return e, nil
}
