// Package vault encrypts the value↔token table for authorized
// re-identification. Each export gets its own document key, derived from a
// keyring master key with HKDF-SHA256 and a fresh salt, and each entry gets
// its own nonce under that key. Raw values never leave the package in clear
// form once sealed.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/velamed/velamed/internal/tokenize"
)

const (
	// hkdfInfo binds derived keys to this export format version.
	hkdfInfo = "velamed/token-map/v1"

	saltSize = 16
	keySize  = 32
	tagSize  = 16

	// ExportVersion is stamped into every token map export.
	ExportVersion = "1"
)

// KeyResolver resolves an opaque key handle to a 32-byte master key. It is
// an external collaborator and must be safe for concurrent use. Keys are
// never cached inside the vault.
type KeyResolver interface {
	Resolve(ctx context.Context, handle string) ([]byte, error)
}

// Entry is one encrypted token mapping. Ciphertext, nonce and auth tag are
// base64 (std encoding).
type Entry struct {
	Token      string `json:"token"`
	Category   string `json:"category"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	AuthTag    string `json:"authTag"`
}

// Export is the encrypted token map returned to the caller. KeyID and Salt
// are what Open needs to re-derive the document key.
type Export struct {
	Version string  `json:"version"`
	KeyID   string  `json:"keyId"`
	Salt    string  `json:"salt"`
	Entries []Entry `json:"entries"`
}

// Seal encrypts every minted mapping under a fresh document key. Any
// failure aborts the whole export: no partially-encrypted token map is ever
// returned (fail-closed).
func Seal(ctx context.Context, resolver KeyResolver, handle string, mappings []tokenize.Mapping) (*Export, error) {
	if resolver == nil {
		return nil, errors.New("vault: no key resolver configured")
	}
	master, err := resolver.Resolve(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve key %q: %w", handle, err)
	}
	if len(master) != keySize {
		return nil, fmt.Errorf("vault: key %q must be %d bytes, got %d", handle, keySize, len(master))
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}

	aead, err := documentAEAD(master, salt)
	if err != nil {
		return nil, err
	}

	export := &Export{
		Version: ExportVersion,
		KeyID:   handle,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make([]Entry, 0, len(mappings)),
	}

	for _, m := range mappings {
		nonce := make([]byte, aead.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("vault: generate nonce: %w", err)
		}
		sealed := aead.Seal(nil, nonce, []byte(m.Value), []byte(m.Token))
		if len(sealed) < tagSize {
			return nil, errors.New("vault: sealed payload shorter than tag")
		}
		ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
		export.Entries = append(export.Entries, Entry{
			Token:      m.Token,
			Category:   string(m.Category),
			Ciphertext: base64.StdEncoding.EncodeToString(ct),
			Nonce:      base64.StdEncoding.EncodeToString(nonce),
			AuthTag:    base64.StdEncoding.EncodeToString(tag),
		})
	}
	return export, nil
}

// Open decrypts an export back to a token→value map. Every entry must
// authenticate; one bad entry fails the whole open.
func Open(ctx context.Context, resolver KeyResolver, export *Export) (map[string]string, error) {
	if export == nil {
		return nil, errors.New("vault: nil export")
	}
	if resolver == nil {
		return nil, errors.New("vault: no key resolver configured")
	}
	master, err := resolver.Resolve(ctx, export.KeyID)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve key %q: %w", export.KeyID, err)
	}
	salt, err := base64.StdEncoding.DecodeString(export.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault: decode salt: %w", err)
	}
	aead, err := documentAEAD(master, salt)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(export.Entries))
	for _, e := range export.Entries {
		ct, err := base64.StdEncoding.DecodeString(e.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("vault: entry %s: decode ciphertext: %w", e.Token, err)
		}
		nonce, err := base64.StdEncoding.DecodeString(e.Nonce)
		if err != nil {
			return nil, fmt.Errorf("vault: entry %s: decode nonce: %w", e.Token, err)
		}
		tag, err := base64.StdEncoding.DecodeString(e.AuthTag)
		if err != nil {
			return nil, fmt.Errorf("vault: entry %s: decode auth tag: %w", e.Token, err)
		}
		plain, err := aead.Open(nil, nonce, append(ct, tag...), []byte(e.Token))
		if err != nil {
			return nil, fmt.Errorf("vault: entry %s: %w", e.Token, err)
		}
		values[e.Token] = string(plain)
	}
	return values, nil
}

// documentAEAD derives the per-document key and builds the AES-256-GCM AEAD.
func documentAEAD(master, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, master, salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: derive document key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create GCM: %w", err)
	}
	return aead, nil
}
