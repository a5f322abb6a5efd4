package crypto_util

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Tezos base58check prefixes.
var (
	PrefixTz1           = []byte{6, 161, 159}
	PrefixTz2           = []byte{6, 161, 161}
	PrefixTz3           = []byte{6, 161, 164}
	PrefixKT1           = []byte{2, 90, 121}
	PrefixEdpk          = []byte{13, 15, 37, 217}
	PrefixSppk          = []byte{3, 254, 226, 86}
	PrefixEdsig         = []byte{9, 245, 205, 134, 18}
	PrefixSpsig         = []byte{13, 115, 101, 19, 63}
	PrefixSig           = []byte{4, 130, 43}
	PrefixOperationHash = []byte{5, 116}
	PrefixBlockHash     = []byte{1, 52}
)

var ErrChecksum = errors.New("base58check: checksum mismatch")

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// B58CheckEncode prefixes data and appends the double-sha256 checksum.
func B58CheckEncode(prefix, data []byte) string {
	payload := make([]byte, 0, len(prefix)+len(data)+4)
	payload = append(payload, prefix...)
	payload = append(payload, data...)
	payload = append(payload, checksum(payload)...)
	return base58.Encode(payload)
}

// B58CheckDecode verifies the checksum and strips the expected prefix.
func B58CheckDecode(s string, prefix []byte) ([]byte, error) {
	raw := base58.Decode(s)
	if len(raw) < len(prefix)+4 {
		return nil, fmt.Errorf("base58check: %q too short", s)
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(payload), sum) {
		return nil, ErrChecksum
	}
	if !bytes.HasPrefix(payload, prefix) {
		return nil, fmt.Errorf("base58check: %q has an unexpected prefix", s)
	}
	return payload[len(prefix):], nil
}

// OperationHash derives the "o..." hash of signed operation bytes.
func OperationHash(signed []byte) string {
	return B58CheckEncode(PrefixOperationHash, Blake2b256(signed))
}
