package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/PolarWolf314/forge/internal/keys"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

// sessionKeys are the working keys derived from a namespace master key.
type sessionKeys struct {
	seal  [32]byte // secretbox key for values
	index []byte   // keyed BLAKE2b key for entry names
}

// deriveSessionKeys splits master into a sealing key and an index key.
func deriveSessionKeys(master []byte) (*sessionKeys, error) {
	if len(master) != keys.KeyLength {
		return nil, fmt.Errorf("invalid master key length: expected %d bytes, got %d bytes", keys.KeyLength, len(master))
	}
	seal, err := subkey(master, "forge/vault/seal")
	if err != nil {
		return nil, err
	}
	index, err := subkey(master, "forge/vault/index")
	if err != nil {
		return nil, err
	}

	sk := &sessionKeys{index: index}
	copy(sk.seal[:], seal)
	keys.Wipe(seal)
	return sk, nil
}

func subkey(master []byte, label string) ([]byte, error) {
	h, err := blake2b.New256(master)
	if err != nil {
		return nil, fmt.Errorf("failed to create subkey hash: %w", err)
	}
	h.Write([]byte(label))
	return h.Sum(nil), nil
}

// wipe zeroes all key material.
func (sk *sessionKeys) wipe() {
	keys.Wipe(sk.seal[:])
	keys.Wipe(sk.index)
}

// entryName hides the caller's key name behind a keyed digest.
func (sk *sessionKeys) entryName(key string) string {
	h, _ := blake2b.New256(sk.index)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// sealValue encrypts plaintext with a random nonce prepended to the ciphertext.
func (sk *sessionKeys) sealValue(plaintext []byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &sk.seal), nil
}

// openValue decrypts a value produced by sealValue.
func (sk *sessionKeys) openValue(ciphertext []byte) ([]byte, bool) {
	if len(ciphertext) < nonceLength+secretbox.Overhead {
		return nil, false
	}
	var nonce [nonceLength]byte
	copy(nonce[:], ciphertext[:nonceLength])
	return secretbox.Open(nil, ciphertext[nonceLength:], &nonce, &sk.seal)
}
