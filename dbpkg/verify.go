package dbpkg

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/openpgp"

	"github.com/quay/scancore"
)

// Policy controls signature checking.
type Policy struct {
	// SkipSignature accepts packages without checking their signature.
	SkipSignature bool
	// RequireSignature rejects packages that carry no signature.
	RequireSignature bool
}

// Head reads only the header of the package at "path".
func Head(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openErr(`dbpkg.Head`, err)
	}
	defer f.Close()
	return readHeader(f)
}

func readHeader(r io.Reader) (*Header, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, &scancore.Error{
			Op:    `dbpkg.readHeader`,
			Code:  scancore.ECVD,
			Inner: err,
		}
	}
	return ParseHeader(b)
}

func openErr(op string, err error) error {
	code := scancore.EOpen
	if errors.Is(err, os.ErrPermission) {
		code = scancore.EAccess
	}
	return &scancore.Error{Op: op, Code: code, Inner: err}
}

// Verify checks the package at "path": its header, its checksum, and its
// signature per the policy. The body is not decompressed.
func Verify(path string, anchor openpgp.KeyRing, policy Policy) error {
	f, err := os.Open(path)
	if err != nil {
		return openErr(`dbpkg.Verify`, err)
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return err
	}
	return VerifyBody(h, f, anchor, policy)
}

// VerifyBody checks the body against the header.
//
// A checksum mismatch reports [scancore.EMD5]. A signature that's present but
// doesn't verify against "anchor" reports [scancore.EDSig], unless the policy
// skips signatures. A missing signature is only an error if the policy
// requires one. With a nil anchor, no present signature can verify.
func VerifyBody(h *Header, body io.Reader, anchor openpgp.KeyRing, policy Policy) error {
	const op = `dbpkg.VerifyBody`
	sum := sha256.New()
	if _, err := io.Copy(sum, body); err != nil {
		return &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	if got := hex.EncodeToString(sum.Sum(nil)); got != h.Checksum {
		return &scancore.Error{
			Op:      op,
			Code:    scancore.EMD5,
			Message: fmt.Sprintf("checksum mismatch: header %s, body %s", h.Checksum, got),
		}
	}
	return checkSignature(h, anchor, policy)
}

func checkSignature(h *Header, anchor openpgp.KeyRing, policy Policy) error {
	const op = `dbpkg.checkSignature`
	switch {
	case policy.SkipSignature:
		return nil
	case h.DSig == "" && policy.RequireSignature:
		return &scancore.Error{Op: op, Code: scancore.EDSig, Message: "package not signed"}
	case h.DSig == "":
		return nil
	case anchor == nil:
		return &scancore.Error{Op: op, Code: scancore.EDSig, Message: "no trust anchor for signed package"}
	}
	sig, err := base64.StdEncoding.DecodeString(h.DSig)
	if err != nil {
		return &scancore.Error{Op: op, Code: scancore.EDSig, Message: "malformed signature", Inner: err}
	}
	if _, err := openpgp.CheckDetachedSignature(anchor, strings.NewReader(h.Checksum), bytes.NewReader(sig)); err != nil {
		return &scancore.Error{Op: op, Code: scancore.EDSig, Inner: err}
	}
	return nil
}
