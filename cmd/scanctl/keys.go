package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/openpgp"
)

// ReadKeyring reads an armored or binary keyring. An empty path returns a nil
// keyring.
func readKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	el, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(b))
	if err != nil {
		el, err = openpgp.ReadKeyRing(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("keyring %q: %w", path, err)
	}
	return el, nil
}

// ReadSigner returns the first entity in the keyring at "path" that has an
// unencrypted private key.
func readSigner(path string) (*openpgp.Entity, error) {
	el, err := readKeyring(path)
	if err != nil {
		return nil, err
	}
	for _, e := range el {
		if e.PrivateKey != nil && !e.PrivateKey.Encrypted {
			return e, nil
		}
	}
	return nil, errors.New("signing key: no unencrypted private key in " + path)
}
