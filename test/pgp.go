package test

import (
	"crypto"
	"sync"
	"testing"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"
)

// Key generation is slow, so keys are shared by every test in a binary.
var keys sync.Map // map[string]*openpgp.Entity

// SigningKey returns an OpenPGP entity with an unencrypted private key,
// suitable for signing test packages. Keys are cached by name.
func SigningKey(t testing.TB, name string) *openpgp.Entity {
	t.Helper()
	if e, ok := keys.Load(name); ok {
		return e.(*openpgp.Entity)
	}
	cfg := &packet.Config{
		RSABits:       2048,
		DefaultHash:   crypto.SHA256,
		DefaultCipher: packet.CipherAES128,
	}
	e, err := openpgp.NewEntity(name, "test key", name+"@example.com", cfg)
	if err != nil {
		t.Fatalf("signing key %q: %v", name, err)
	}
	actual, _ := keys.LoadOrStore(name, e)
	return actual.(*openpgp.Entity)
}

// Keyring returns a keyring holding the public halves of the named keys.
func Keyring(t testing.TB, names ...string) openpgp.EntityList {
	t.Helper()
	out := make(openpgp.EntityList, len(names))
	for i, n := range names {
		out[i] = SigningKey(t, n)
	}
	return out
}
