package crypto_util

import (
	"fmt"
	"strings"
)

// PublicKeyHash derives the implicit account address (tz1 or tz2) of a
// base58 encoded edpk or sppk public key.
func PublicKeyHash(publicKey string) (string, error) {
	switch {
	case strings.HasPrefix(publicKey, "edpk"):
		raw, err := B58CheckDecode(publicKey, PrefixEdpk)
		if err != nil {
			return "", err
		}
		if len(raw) != 32 {
			return "", fmt.Errorf("edpk: expected 32 bytes, got %d", len(raw))
		}
		return B58CheckEncode(PrefixTz1, Blake2b160(raw)), nil
	case strings.HasPrefix(publicKey, "sppk"):
		raw, err := B58CheckDecode(publicKey, PrefixSppk)
		if err != nil {
			return "", err
		}
		if len(raw) != 33 {
			return "", fmt.Errorf("sppk: expected 33 bytes, got %d", len(raw))
		}
		return B58CheckEncode(PrefixTz2, Blake2b160(raw)), nil
	}
	return "", fmt.Errorf("unsupported public key %q", publicKey)
}

// ZeroSignature is a well-formed generic signature used for simulations.
func ZeroSignature() string {
	return B58CheckEncode(PrefixSig, make([]byte, 64))
}
