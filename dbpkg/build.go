package dbpkg

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/openpgp"

	"github.com/quay/scancore"
	"github.com/quay/scancore/sigdb"
)

// BuildOptions describes a package to write with [Build].
type BuildOptions struct {
	// Time is the build time. If zero, the current time is used.
	Time time.Time
	// Signer, if not nil, signs the package. Its private key must be
	// decrypted.
	Signer  *openpgp.Entity
	Builder string
	Files   []File
	Version uint
	// FLevel is the functionality level the package needs. If zero,
	// [scancore.FunctionalityLevel] is used.
	FLevel uint
	// Uncompressed writes a plain tar body.
	Uncompressed bool
}

// Build writes a package to "w" and returns its header.
//
// The record count in the header is computed from the files, which must all
// parse.
func Build(w io.Writer, opts BuildOptions) (*Header, error) {
	const op = `dbpkg.Build`
	if len(opts.Files) == 0 {
		return nil, &scancore.Error{Op: op, Code: scancore.EArg, Message: "no files"}
	}
	h := Header{
		Time:    opts.Time,
		Version: opts.Version,
		FLevel:  opts.FLevel,
		Builder: opts.Builder,
	}
	if h.Time.IsZero() {
		h.Time = time.Now()
	}
	// The header only has minute resolution.
	h.Time = h.Time.Truncate(time.Minute)
	h.STime = h.Time.Unix()
	if h.FLevel == 0 {
		h.FLevel = scancore.FunctionalityLevel
	}
	for _, f := range opts.Files {
		n, err := sigdb.Count(f.Name, f.Data)
		if err != nil {
			return nil, err
		}
		h.Sigs += n
	}

	var body bytes.Buffer
	if err := writeBody(&body, opts.Files, !opts.Uncompressed); err != nil {
		return nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	sum := sha256.Sum256(body.Bytes())
	h.Checksum = hex.EncodeToString(sum[:])
	if opts.Signer != nil {
		var sig bytes.Buffer
		if err := openpgp.DetachSign(&sig, opts.Signer, strings.NewReader(h.Checksum), nil); err != nil {
			return nil, &scancore.Error{Op: op, Code: scancore.EDSig, Inner: err}
		}
		h.DSig = base64.StdEncoding.EncodeToString(sig.Bytes())
	}

	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(hb); err != nil {
		return nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	if _, err := body.WriteTo(w); err != nil {
		return nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	return &h, nil
}

func writeBody(w io.Writer, files []File, compress bool) error {
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(w)
		w = zw
	}
	tw := tar.NewWriter(w)
	for _, f := range files {
		if strings.Contains(f.Name, "/") {
			return fmt.Errorf("file name %q: must not contain a slash", f.Name)
		}
		hdr := &tar.Header{
			Name:     f.Name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(f.Data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(f.Data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}
