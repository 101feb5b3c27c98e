package models

import "time"

// User is an account that can be granted roles and named as a paper
// recipient. The private key is only ever stored sealed under the
// passphrase-derived master key.
type User struct {
	ID               string
	UserName         string
	Salt             []byte
	Verifier         []byte
	PublicKey        []byte
	SealedPrivateKey []byte
	CreatedAt        time.Time
}
