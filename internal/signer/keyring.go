package signer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tyler-smith/go-bip39"

	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/errno"
	"tezos-gateway/pkg/keystore"
)

// Keyring maps secure key names to signers. Private keys never leave it.
type Keyring struct {
	mu      sync.RWMutex
	signers map[string]Signer
}

func NewKeyring() *Keyring {
	return &Keyring{signers: make(map[string]Signer)}
}

func (k *Keyring) Add(name string, s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signers[name] = s
}

func (k *Keyring) Get(name string) (Signer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.signers[name]
	if !ok {
		return nil, errno.ErrSignerNotFound.Withf("secure key %q not found", name)
	}
	return s, nil
}

func (k *Keyring) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.signers))
	for n := range k.signers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromMnemonic derives a signer from a BIP-39 mnemonic. The key seed is the
// first 32 bytes of the BIP-39 seed.
func FromMnemonic(kind KeyType, mnemonic, passphrase string) (Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("signer: invalid mnemonic")
	}
	return New(kind, bip39.NewSeed(mnemonic, passphrase))
}

// LoadKeyring builds the keyring from configuration. Each entry reads its
// mnemonic either inline or from an encrypted keystore file.
func LoadKeyring(cfgs []config.SignerConfig) (*Keyring, error) {
	ring := NewKeyring()
	for _, c := range cfgs {
		mnemonic := c.Mnemonic
		if c.KeystorePath != "" {
			encrypted, err := keystore.LoadFromFile(c.KeystorePath)
			if err != nil {
				return nil, fmt.Errorf("signer %s: %w", c.Name, err)
			}
			mnemonic, err = keystore.DecryptMnemonic(encrypted, c.Password)
			if err != nil {
				return nil, fmt.Errorf("signer %s: %w", c.Name, err)
			}
		}
		s, err := FromMnemonic(KeyType(c.Kind), mnemonic, c.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("signer %s: %w", c.Name, err)
		}
		ring.Add(c.Name, s)
	}
	return ring, nil
}
