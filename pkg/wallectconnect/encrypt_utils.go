package wallectconnect

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"moff.io/moff-connector/pkg/errors"
)

// KeySize is the length of the symmetric session key.
const KeySize = 256 / 8

var ErrHmacMismatch = errors.New("inconsistent message hmac")

// EncryptionPayload is the encrypted form of a JSON-RPC payload relayed through the bridge.
type EncryptionPayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

// Encrypt seals plaintext with AES-256-CBC under a fresh iv and signs data||iv with HMAC-SHA256.
func Encrypt(plaintext, key []byte) (*EncryptionPayload, error) {
	iv, err := GenerateRandomBytes(aes.BlockSize)
	if err != nil {
		return nil, errors.Wrap(err, "generate iv")
	}
	data, err := Aes256Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	return &EncryptionPayload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(HmacSha256(append(append([]byte{}, data...), iv...), key)),
	}, nil
}

// Decrypt verifies the hmac of p and opens it.
func Decrypt(p *EncryptionPayload, key []byte) ([]byte, error) {
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, errors.Wrap(err, "decode iv hex")
	}
	data, err := hex.DecodeString(p.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cipher hex")
	}
	signature, err := hex.DecodeString(p.Hmac)
	if err != nil {
		return nil, errors.Wrap(err, "decode hmac hex")
	}
	if !hmac.Equal(signature, HmacSha256(append(append([]byte{}, data...), iv...), key)) {
		return nil, ErrHmacMismatch
	}
	return Aes256Decrypt(data, key, iv)
}

func Aes256Encrypt(content, encryptionKey, iv []byte) ([]byte, error) {
	bPlaintext := pkcs7Padding(content, aes.BlockSize)
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	ciphertext := make([]byte, len(bPlaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, bPlaintext)
	return ciphertext, nil
}

func Aes256Decrypt(cipherText []byte, encryptionKey []byte, iv []byte) ([]byte, error) {
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, errors.Errorf("cipher text length %d is not a multiple of the block size", len(cipherText))
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	plaintext := make([]byte, len(cipherText))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, cipherText)
	return pkcs7Unpadding(plaintext, aes.BlockSize)
}

func pkcs7Padding(plaintext []byte, blockSize int) []byte {
	padding := blockSize - len(plaintext)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(append([]byte{}, plaintext...), padText...)
}

func pkcs7Unpadding(padded []byte, blockSize int) ([]byte, error) {
	padding := int(padded[len(padded)-1])
	if padding == 0 || padding > blockSize || padding > len(padded) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range padded[len(padded)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return padded[:len(padded)-padding], nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func HmacSha256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}
