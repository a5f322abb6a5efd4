package signer

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"tezos-gateway/pkg/crypto_util"
)

type Secp256k1Signer struct {
	priv *btcec.PrivateKey
	pk   string
	pkh  string
}

func NewSecp256k1(seed []byte) *Secp256k1Signer {
	priv, pub := btcec.PrivKeyFromBytes(seed)
	compressed := pub.SerializeCompressed()
	return &Secp256k1Signer{
		priv: priv,
		pk:   crypto_util.B58CheckEncode(crypto_util.PrefixSppk, compressed),
		pkh:  crypto_util.B58CheckEncode(crypto_util.PrefixTz2, crypto_util.Blake2b160(compressed)),
	}
}

// Sign produces the 64-byte r||s form with a low S value.
func (s *Secp256k1Signer) Sign(ctx context.Context, forged []byte) (Signature, error) {
	compact := ecdsa.SignCompact(s.priv, Digest(forged), true)
	sig := compact[1:]
	return Signature{Bytes: sig, Prefixed: crypto_util.B58CheckEncode(crypto_util.PrefixSpsig, sig)}, nil
}

func (s *Secp256k1Signer) PublicKey() string     { return s.pk }
func (s *Secp256k1Signer) PublicKeyHash() string { return s.pkh }
