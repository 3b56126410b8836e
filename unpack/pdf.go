package unpack

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PDFUnpacker extracts the stream objects of a PDF.
//
// Streams with a FlateDecode filter are inflated; streams with any other
// filter are emitted as stored. A stream without a matching "endstream"
// makes the document count as broken.
type PDFUnpacker struct{}

var _ Unpacker = (*PDFUnpacker)(nil)

// Family implements [Unpacker].
func (*PDFUnpacker) Family() Family { return PDF }

var (
	kwStream    = []byte("stream")
	kwEndstream = []byte("endstream")
	kwEnd       = []byte("end")
	kwDict      = []byte("<<")
	kwFlate     = []byte("/FlateDecode")
	kwFlateAbbr = []byte("/Fl")
)

// Dictionaries further than this before a "stream" keyword aren't associated
// with it.
const pdfDictWindow = 4096

// Unpack implements [Unpacker].
func (*PDFUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	data, err := io.ReadAll(reader(src))
	if err != nil {
		return broken(PDF, err)
	}
	pos, n := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := bytes.Index(data[pos:], kwStream)
		if i < 0 {
			return nil
		}
		i += pos
		pos = i + len(kwStream)
		if i >= len(kwEnd) && bytes.Equal(data[i-len(kwEnd):i], kwEnd) {
			continue // "endstream" seen before its "stream"
		}
		// The keyword must be followed by an EOL.
		start := pos
		switch {
		case bytes.HasPrefix(data[start:], []byte("\r\n")):
			start += 2
		case bytes.HasPrefix(data[start:], []byte("\n")), bytes.HasPrefix(data[start:], []byte("\r")):
			start++
		default:
			continue
		}
		end := bytes.Index(data[start:], kwEndstream)
		if end < 0 {
			return brokenf(PDF, "stream at offset %d: missing endstream", i)
		}
		end += start
		pos = end + len(kwEndstream)
		body := data[start:end]
		// Exactly one EOL precedes "endstream"; binary data may end in
		// something that looks like one.
		switch {
		case bytes.HasSuffix(body, []byte("\r\n")):
			body = body[:len(body)-2]
		case bytes.HasSuffix(body, []byte("\n")), bytes.HasSuffix(body, []byte("\r")):
			body = body[:len(body)-1]
		}

		lo := max(0, i-pdfDictWindow)
		dict := data[lo:i]
		if d := bytes.LastIndex(dict, kwDict); d >= 0 {
			dict = dict[d:]
		}
		n++
		name := fmt.Sprintf("stream-%d", n)
		var r io.Reader = bytes.NewReader(body)
		if flate(dict) {
			zr, err := zlib.NewReader(bytes.NewReader(body))
			if err == nil {
				r = zr
			}
			// A stream claiming FlateDecode without a zlib header is emitted
			// stored; readers are tolerant of this, so we are too.
		}
		if err := emit(ctx, PDF, sink, name, r); err != nil {
			return err
		}
	}
}

// Flate reports whether a stream dictionary names the FlateDecode filter, in
// its long or abbreviated form.
func flate(dict []byte) bool {
	if bytes.Contains(dict, kwFlate) {
		return true
	}
	for {
		i := bytes.Index(dict, kwFlateAbbr)
		if i < 0 {
			return false
		}
		dict = dict[i+len(kwFlateAbbr):]
		if len(dict) == 0 || !isAlpha(dict[0]) {
			return true
		}
	}
}

func isAlpha(c byte) bool { return (c|0x20) >= 'a' && (c|0x20) <= 'z' }
