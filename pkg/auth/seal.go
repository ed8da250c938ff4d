package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Sealed values use the iron Fe26.2 layout.
const (
	sealPrefix      = "Fe26.2"
	sealSaltBytes   = 32
	sealKeyBytes    = 32
	sealIVBytes     = aes.BlockSize
	sealIterations  = 1
	MinSealPassword = 32
	sealPartsCount  = 8
)

var (
	ErrSealPassword  = fmt.Errorf("seal password must be at least %d characters", MinSealPassword)
	ErrSealFormat    = errors.New("invalid sealed value")
	ErrSealIntegrity = errors.New("sealed value failed integrity check")
	ErrSealExpired   = errors.New("sealed value expired")
)

type Sealer struct {
	password []byte
	now      func() time.Time
}

func NewSealer(password string) (*Sealer, error) {
	if len(password) < MinSealPassword {
		return nil, ErrSealPassword
	}
	return &Sealer{password: []byte(password), now: time.Now}, nil
}

// Seal JSON-encodes v and encrypts it into a Fe26.2 string with no expiration.
func (s *Sealer) Seal(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode sealed value: %w", err)
	}

	encSalt, encKey, err := s.newKey()
	if err != nil {
		return "", err
	}

	iv := make([]byte, sealIVBytes)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	base := strings.Join([]string{
		sealPrefix,
		"",
		encSalt,
		b64(iv),
		b64(encrypted),
		"",
	}, "*")

	macSalt, macKey, err := s.newKey()
	if err != nil {
		return "", err
	}

	return base + "*" + macSalt + "*" + b64(sign(macKey, base)), nil
}

// Unseal verifies and decrypts a Fe26.2 string into v.
func (s *Sealer) Unseal(sealed string, v any) error {
	parts := strings.Split(sealed, "*")
	if len(parts) != sealPartsCount || parts[0] != sealPrefix || parts[1] != "" {
		return ErrSealFormat
	}

	if exp := parts[5]; exp != "" {
		ms, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return ErrSealFormat
		}
		if !s.now().Before(time.UnixMilli(ms)) {
			return ErrSealExpired
		}
	}

	base := strings.Join(parts[:6], "*")
	mac, err := unb64(parts[7])
	if err != nil {
		return ErrSealFormat
	}
	if !hmac.Equal(mac, sign(s.derive(parts[6]), base)) {
		return ErrSealIntegrity
	}

	iv, err := unb64(parts[3])
	if err != nil || len(iv) != sealIVBytes {
		return ErrSealFormat
	}
	encrypted, err := unb64(parts[4])
	if err != nil || len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return ErrSealFormat
	}

	block, err := aes.NewCipher(s.derive(parts[2]))
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	plain := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, encrypted)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("failed to decode sealed value: %w", err)
	}
	return nil
}

func (s *Sealer) newKey() (string, []byte, error) {
	raw := make([]byte, sealSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)
	return salt, s.derive(salt), nil
}

// derive uses the hex salt string itself as the pbkdf2 salt.
func (s *Sealer) derive(salt string) []byte {
	return pbkdf2.Key(s.password, []byte(salt), sealIterations, sealKeyBytes, sha1.New)
}

func sign(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func unb64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, ErrSealFormat
	}
	padding := int(data[n-1])
	if padding == 0 || padding > blockSize || padding > n {
		return nil, ErrSealFormat
	}
	for _, b := range data[n-padding:] {
		if int(b) != padding {
			return nil, ErrSealFormat
		}
	}
	return data[:n-padding], nil
}
