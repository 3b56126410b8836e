package sigdb

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is a fixed run of bytes at a known position in a pattern.
type segment struct {
	off  int
	data []byte
}

// Pattern is a parsed body pattern: fixed segments separated by single-byte
// wildcards.
type pattern struct {
	segs []segment
	len  int
	// Anchor is the index of the longest segment, which is the one fed to
	// the automaton.
	anchor int
}

func parsePattern(s string) (pattern, error) {
	var p pattern
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return p, fmt.Errorf("empty pattern")
	}
	if len(s)%2 != 0 {
		return p, fmt.Errorf("odd pattern length %d", len(s))
	}
	var cur []byte
	flush := func(end int) {
		if len(cur) != 0 {
			p.segs = append(p.segs, segment{off: end - len(cur), data: cur})
			cur = nil
		}
	}
	for i := 0; i < len(s); i += 2 {
		pos := i / 2
		if s[i:i+2] == "??" {
			flush(pos)
			continue
		}
		b, err := hex.DecodeString(s[i : i+2])
		if err != nil {
			return p, fmt.Errorf("bad byte %q at column %d", s[i:i+2], i+1)
		}
		cur = append(cur, b[0])
	}
	p.len = len(s) / 2
	flush(p.len)
	best := -1
	for i, sg := range p.segs {
		if best < 0 || len(sg.data) > len(p.segs[best].data) {
			best = i
		}
	}
	if best < 0 || len(p.segs[best].data) < MinPatternLen {
		return p, errShort
	}
	p.anchor = best
	return p, nil
}

var errShort = errors.New("pattern too short")

// Match reports whether the pattern occurs in data starting at "start".
func (p *pattern) match(data []byte, start int) bool {
	if start < 0 || start+p.len > len(data) {
		return false
	}
	for _, sg := range p.segs {
		o := start + sg.off
		if !bytes.Equal(data[o:o+len(sg.data)], sg.data) {
			return false
		}
	}
	return true
}

// OffsetKind is the kind of position constraint on a body signature.
type offsetKind uint8

const (
	offsetAny offsetKind = iota
	offsetStart
	offsetEOF
)

// Offset constrains where a body signature may start.
type offset struct {
	kind offsetKind
	n    int
}

func parseOffset(s string) (offset, error) {
	switch {
	case s == "*":
		return offset{kind: offsetAny}, nil
	case strings.HasPrefix(s, "EOF-"):
		n, err := strconv.ParseUint(s[4:], 10, 31)
		if err != nil {
			return offset{}, fmt.Errorf("bad offset %q", s)
		}
		return offset{kind: offsetEOF, n: int(n)}, nil
	default:
		n, err := strconv.ParseUint(s, 10, 31)
		if err != nil {
			return offset{}, fmt.Errorf("bad offset %q", s)
		}
		return offset{kind: offsetStart, n: int(n)}, nil
	}
}

// Allows reports whether a match starting at "start" in an object of "size"
// bytes satisfies the constraint.
func (o offset) allows(start, size int) bool {
	switch o.kind {
	case offsetStart:
		return start == o.n
	case offsetEOF:
		return start == size-o.n
	}
	return true
}
