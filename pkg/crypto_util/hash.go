package crypto_util

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// CalculateSHA256 计算输入的 SHA256 哈希值。
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Blake2b256 is the digest Tezos uses for operation hashes and signing.
func Blake2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// Blake2b160 is the digest behind public key hashes (tz1/tz2/tz3).
func Blake2b160(data []byte) []byte {
	h, _ := blake2b.New(20, nil)
	h.Write(data)
	return h.Sum(nil)
}
