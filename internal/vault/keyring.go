package vault

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
)

// Keyring is a KeyResolver backed by versioned master keys loaded at
// startup from environment variables (hex-encoded 32-byte keys). Key
// material is held once here and handed out per call; the engine itself
// never stores keys.
type Keyring struct {
	keys map[string][]byte
}

// NewKeyring builds a keyring from a handle→env-var mapping, e.g.
// {"phi-v1": "VELAMED_KEY_PHI_V1"}. Every referenced variable must hold a
// valid 64-char hex key; a misconfigured key refuses to load so the service
// fails at startup rather than mid-call.
func NewKeyring(envByHandle map[string]string) (*Keyring, error) {
	keys := make(map[string][]byte, len(envByHandle))

	handles := make([]string, 0, len(envByHandle))
	for h := range envByHandle {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	for _, handle := range handles {
		envName := envByHandle[handle]
		raw := os.Getenv(envName)
		if raw == "" {
			return nil, fmt.Errorf("keyring: %s is not set (key %q)", envName, handle)
		}
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("keyring: %s is not valid hex (key %q)", envName, handle)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("keyring: key %q must be %d bytes (%d hex chars), got %d", handle, keySize, 2*keySize, len(key))
		}
		keys[handle] = key
	}
	return &Keyring{keys: keys}, nil
}

// NewStaticKeyring builds a keyring from in-memory keys. Used by tests and
// embedded callers.
func NewStaticKeyring(keys map[string][]byte) *Keyring {
	cp := make(map[string][]byte, len(keys))
	for h, k := range keys {
		kc := make([]byte, len(k))
		copy(kc, k)
		cp[h] = kc
	}
	return &Keyring{keys: cp}
}

// Resolve implements KeyResolver.
func (k *Keyring) Resolve(_ context.Context, handle string) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("keyring: not configured")
	}
	key, ok := k.keys[handle]
	if !ok {
		return nil, fmt.Errorf("keyring: unknown key handle %q", handle)
	}
	return key, nil
}

// Handles lists the configured key ids in sorted order.
func (k *Keyring) Handles() []string {
	out := make([]string, 0, len(k.keys))
	for h := range k.keys {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
