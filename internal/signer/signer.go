// Package signer holds the secure keys used to sign forged operations.
package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"tezos-gateway/pkg/crypto_util"
)

// KeyType is the curve of a secure key.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"   // tz1
	KeyTypeSecp256k1 KeyType = "secp256k1" // tz2
)

// GenericOperationWatermark prefixes forged manager operations before
// hashing.
const GenericOperationWatermark = 0x03

var ErrInvalidSeed = errors.New("signer: seed must be at least 32 bytes")

// Signature is a raw 64-byte signature and its curve specific base58 form.
type Signature struct {
	Bytes    []byte
	Prefixed string
}

// Hex is the signature as appended to forged bytes for injection.
func (s Signature) Hex() string { return hex.EncodeToString(s.Bytes) }

// Signer signs forged operation bytes for one implicit account.
type Signer interface {
	Sign(ctx context.Context, forged []byte) (Signature, error)
	PublicKey() string
	PublicKeyHash() string
}

// Digest is the value actually signed for forged operation bytes.
func Digest(forged []byte) []byte {
	msg := make([]byte, 0, len(forged)+1)
	msg = append(msg, GenericOperationWatermark)
	msg = append(msg, forged...)
	return crypto_util.Blake2b256(msg)
}

// New derives a signer of the given type from the first 32 bytes of seed.
func New(kind KeyType, seed []byte) (Signer, error) {
	if len(seed) < 32 {
		return nil, ErrInvalidSeed
	}
	switch kind {
	case KeyTypeEd25519, "":
		return NewEd25519(seed[:32]), nil
	case KeyTypeSecp256k1:
		return NewSecp256k1(seed[:32]), nil
	}
	return nil, fmt.Errorf("signer: unsupported key type %q", kind)
}
