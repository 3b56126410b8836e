package unpack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLUnpacker normalizes HTML documents.
//
// It emits one "normalized" member: the document's text with tags and comments
// removed, entities decoded, and runs of whitespace collapsed. Each inline
// script body is emitted as its own member, as are event handler and
// "javascript:" attribute values.
type HTMLUnpacker struct{}

var _ Unpacker = (*HTMLUnpacker)(nil)

// Family implements [Unpacker].
func (*HTMLUnpacker) Family() Family { return HTML }

// Unpack implements [Unpacker].
func (*HTMLUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	z := html.NewTokenizer(reader(src))
	var text bytes.Buffer
	var scripts [][]byte
	var inScript, inStyle bool
	cur := -1 // index of the open script element's body
	// Pending records that a word separator is due before the next word.
	pending := false
Tokens:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			if errors.Is(err, io.EOF) {
				break Tokens
			}
			return broken(HTML, err)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script:
				inScript = tt == html.StartTagToken
				cur = len(scripts)
				scripts = append(scripts, nil)
			case atom.Style:
				inStyle = tt == html.StartTagToken
			}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if bytes.HasPrefix(k, []byte("on")) ||
					bytes.HasPrefix(bytes.ToLower(bytes.TrimSpace(v)), []byte("javascript:")) {
					scripts = append(scripts, bytes.Clone(v))
				}
			}
			// Tags separate words.
			pending = true
		case html.EndTagToken:
			pending = true
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script:
				inScript = false
			case atom.Style:
				inStyle = false
			}
		case html.TextToken:
			t := z.Text()
			switch {
			case inScript:
				scripts[cur] = append(scripts[cur], t...)
			case inStyle:
			default:
				if len(t) > 0 && isSpace(t[0]) {
					pending = true
				}
				for _, f := range bytes.Fields(t) {
					if pending && text.Len() > 0 {
						text.WriteByte(' ')
					}
					text.Write(f)
					pending = true
				}
				if n := len(t); n > 0 && !isSpace(t[n-1]) {
					pending = false
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if err := emit(ctx, HTML, sink, "normalized", &text); err != nil {
		return err
	}
	n := 0
	for _, s := range scripts {
		if len(bytes.TrimSpace(s)) == 0 {
			continue
		}
		n++
		if err := emit(ctx, HTML, sink, fmt.Sprintf("script-%d", n), bytes.NewReader(s)); err != nil {
			return err
		}
	}
	return nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}
