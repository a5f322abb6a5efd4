package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// EncryptedKeyJSON stores a signer mnemonic encrypted with a password,
// laid out like an Ethereum V3 keystore.
type EncryptedKeyJSON struct {
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`
	Version int        `json:"version"`
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

const (
	scryptN     = 262144
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
)

var ErrMACMismatch = errors.New("invalid password or corrupted data (MAC mismatch)")

// EncryptMnemonic 将助记词使用密码加密为 JSON 结构
func EncryptMnemonic(mnemonic, password string) (*EncryptedKeyJSON, error) {
	return encrypt(mnemonic, password, scryptN)
}

func encrypt(mnemonic, password string, n int) (*EncryptedKeyJSON, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, n, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(derivedKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(mnemonic), nil)
	mac := sha256.Sum256(append(append([]byte{}, derivedKey...), ciphertext...))

	return &EncryptedKeyJSON{
		Version: 3,
		Id:      uuid.NewString(),
		Crypto: CryptoJSON{
			Cipher:       "aes-256-gcm",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(nonce)},
			KDF:          "scrypt",
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     n,
				R:     scryptR,
				P:     scryptP,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac[:]),
		},
	}, nil
}

// DecryptMnemonic 解密 Keystore JSON 获取助记词
func DecryptMnemonic(keyJSON *EncryptedKeyJSON, password string) (string, error) {
	salt, err := hex.DecodeString(keyJSON.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	nonce, err := hex.DecodeString(keyJSON.Crypto.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("invalid iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(keyJSON.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(keyJSON.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("invalid mac: %w", err)
	}

	params := keyJSON.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", err
	}

	calculatedMAC := sha256.Sum256(append(append([]byte{}, derivedKey...), ciphertext...))
	if subtle.ConstantTimeCompare(mac, calculatedMAC[:]) != 1 {
		return "", ErrMACMismatch
	}

	gcm, err := newGCM(derivedKey)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SaveToFile 保存到文件
func (k *EncryptedKeyJSON) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

// LoadFromFile 从文件加载
func LoadFromFile(filename string) (*EncryptedKeyJSON, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var k EncryptedKeyJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	return &k, nil
}
