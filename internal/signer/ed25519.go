package signer

import (
	"context"
	"crypto/ed25519"

	"tezos-gateway/pkg/crypto_util"
)

type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pk   string
	pkh  string
}

func NewEd25519(seed []byte) *Ed25519Signer {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		priv: priv,
		pk:   crypto_util.B58CheckEncode(crypto_util.PrefixEdpk, pub),
		pkh:  crypto_util.B58CheckEncode(crypto_util.PrefixTz1, crypto_util.Blake2b160(pub)),
	}
}

func (s *Ed25519Signer) Sign(ctx context.Context, forged []byte) (Signature, error) {
	sig := ed25519.Sign(s.priv, Digest(forged))
	return Signature{Bytes: sig, Prefixed: crypto_util.B58CheckEncode(crypto_util.PrefixEdsig, sig)}, nil
}

func (s *Ed25519Signer) PublicKey() string     { return s.pk }
func (s *Ed25519Signer) PublicKeyHash() string { return s.pkh }
