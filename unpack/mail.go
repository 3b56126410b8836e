package unpack

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// MailUnpacker handles RFC 5322 messages and mbox-style mailboxes.
//
// Every leaf MIME part is emitted with its transfer encoding removed. Text
// parts are additionally converted to UTF-8 from their declared charset.
// Attached messages ("message/rfc822") are emitted as-is, so the dispatcher
// descends into them as mail in their own right. Fragments of a
// "message/partial" message are handed to [Sink.Partial].
type MailUnpacker struct{}

var _ Unpacker = (*MailUnpacker)(nil)

// Family implements [Unpacker].
func (*MailUnpacker) Family() Family { return Mail }

// Multipart nesting deeper than this is treated as broken.
const maxMultipartDepth = 32

var wordDecoder = mime.WordDecoder{
	CharsetReader: func(charset string, r io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(r), nil
	},
}

// Unpack implements [Unpacker].
func (*MailUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	br := bufio.NewReader(reader(src))
	// Mailbox format: a "From " separator line precedes each message.
	if b, _ := br.Peek(5); string(b) == "From " {
		if _, err := br.ReadBytes('\n'); err != nil {
			return brokenf(Mail, "mailbox with no messages")
		}
		m := &mailWalker{sink: sink}
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, more, err := nextMbox(br)
			if err != nil {
				return broken(Mail, err)
			}
			m.prefix = fmt.Sprintf("message-%d/", i)
			if err := m.message(ctx, bytes.NewReader(msg)); err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
	}
	m := &mailWalker{sink: sink}
	return m.message(ctx, br)
}

// NextMbox reads one message from a mailbox, up to and including the next
// "From " separator line. It reports whether another message follows.
func nextMbox(br *bufio.Reader) ([]byte, bool, error) {
	var buf bytes.Buffer
	for {
		line, err := br.ReadBytes('\n')
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, io.EOF):
			buf.Write(line)
			return buf.Bytes(), false, nil
		default:
			return nil, false, err
		}
		if bytes.HasPrefix(line, []byte("From ")) {
			return buf.Bytes(), true, nil
		}
		// Undo ">From " quoting.
		if bytes.HasPrefix(line, []byte(">From ")) {
			line = line[1:]
		}
		buf.Write(line)
	}
}

type mailWalker struct {
	sink   Sink
	prefix string
	n      int
}

func (m *mailWalker) name(filename string) string {
	m.n++
	if filename != "" {
		return fmt.Sprintf("%s%s", m.prefix, filename)
	}
	return fmt.Sprintf("%spart-%d", m.prefix, m.n)
}

func (m *mailWalker) message(ctx context.Context, r io.Reader) error {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return broken(Mail, err)
	}
	return m.part(ctx, mailHeader(msg.Header), msg.Body, 0)
}

// Header is the subset of header access shared by [mail.Header] and
// [multipart.Part].
type header interface {
	Get(string) string
}

type mailHeader mail.Header

func (h mailHeader) Get(k string) string { return mail.Header(h).Get(k) }

func (m *mailWalker) part(ctx context.Context, h header, body io.Reader, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > maxMultipartDepth {
		return brokenf(Mail, "multipart nesting too deep")
	}
	ct := h.Get("Content-Type")
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		// RFC 2045 §5.2: default to plain text.
		mt, params = "text/plain", map[string]string{"charset": "us-ascii"}
	}

	switch {
	case strings.HasPrefix(mt, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return brokenf(Mail, "multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			p, err := mr.NextRawPart()
			switch {
			case errors.Is(err, nil):
			case errors.Is(err, io.EOF):
				return nil
			default:
				return broken(Mail, err)
			}
			err = m.part(ctx, p.Header, p, depth+1)
			p.Close()
			if err != nil {
				return err
			}
		}
	case mt == "message/partial":
		name := m.name("partial-" + params["id"] + "-" + params["number"])
		t := track(transferDecode(h, body))
		if err := m.sink.Partial(ctx, name, t); err != nil {
			return err
		}
		if err := t.finish(); err != nil {
			return broken(Mail, err)
		}
		return nil
	case mt == "message/rfc822":
		return emit(ctx, Mail, m.sink, m.name(""), transferDecode(h, body))
	}

	r := transferDecode(h, body)
	if strings.HasPrefix(mt, "text/") {
		if cs := params["charset"]; cs != "" {
			if enc, err := htmlindex.Get(cs); err == nil {
				r = enc.NewDecoder().Reader(r)
			}
		}
	}
	return emit(ctx, Mail, m.sink, m.name(filename(h, params)), r)
}

// Filename pulls a file name from the Content-Disposition header, falling back
// to the Content-Type "name" parameter.
func filename(h header, ctParams map[string]string) string {
	var n string
	if _, p, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		n = p["filename"]
	}
	if n == "" {
		n = ctParams["name"]
	}
	if n == "" {
		return ""
	}
	if d, err := wordDecoder.DecodeHeader(n); err == nil {
		n = d
	}
	n = strings.ReplaceAll(n, "/", "_")
	return n
}

// TransferDecode removes the Content-Transfer-Encoding. Unknown encodings are
// passed through.
func transferDecode(h header, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &ignoreSpace{r: r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

// IgnoreSpace drops whitespace, which base64 bodies are wrapped with.
type ignoreSpace struct {
	r io.Reader
}

func (s *ignoreSpace) Read(b []byte) (int, error) {
	for {
		n, err := s.r.Read(b)
		j := 0
		for _, c := range b[:n] {
			switch c {
			case ' ', '\t', '\r', '\n':
				continue
			}
			b[j] = c
			j++
		}
		if j != 0 || err != nil {
			return j, err
		}
	}
}
