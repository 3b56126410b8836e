package sigdb

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"

	"github.com/quay/scancore/internal/ac"
)

// Matcher is a compiled signature set.
//
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	auto *ac.Automaton
	body []bodySig
	// Hashes and whitelist entries, keyed by lowercase hex digest.
	hashes map[string][]hashSig
	fps    map[string][]hashSig
	// Which digests need computing.
	md5, sha bool
	n        uint
}

// Compile builds a Matcher from the records added so far. The Builder may
// continue to be used; later additions don't affect the returned Matcher.
func (b *Builder) Compile() *Matcher {
	m := &Matcher{
		body:   append([]bodySig(nil), b.body...),
		hashes: make(map[string][]hashSig),
		fps:    make(map[string][]hashSig),
		n:      b.Len(),
	}
	anchors := make([][]byte, len(m.body))
	for i := range m.body {
		p := &m.body[i].pat
		anchors[i] = p.segs[p.anchor].data
	}
	m.auto = ac.Build(anchors)
	index := func(into map[string][]hashSig, hs []hashSig) {
		for _, h := range hs {
			into[h.sum] = append(into[h.sum], h)
			if len(h.sum) == 32 {
				m.md5 = true
			} else {
				m.sha = true
			}
		}
	}
	index(m.hashes, b.hashes)
	index(m.fps, b.fps)
	return m
}

// Sigs reports the number of records compiled into the Matcher.
func (m *Matcher) Sigs() uint {
	if m == nil {
		return 0
	}
	return m.n
}

type digests struct {
	md5, sha string
}

func (m *Matcher) digest(data []byte) (d digests) {
	if m.md5 {
		s := md5.Sum(data)
		d.md5 = hex.EncodeToString(s[:])
	}
	if m.sha {
		s := sha256.Sum256(data)
		d.sha = hex.EncodeToString(s[:])
	}
	return d
}

func lookup(idx map[string][]hashSig, d digests, size int64, fn func(string) bool) {
	for _, sum := range [...]string{d.md5, d.sha} {
		if sum == "" {
			continue
		}
		for _, h := range idx[sum] {
			if h.size >= 0 && h.size != size {
				continue
			}
			if !fn(h.name) {
				return
			}
		}
	}
}

// Whitelisted reports whether the object matches a whitelist entry.
func (m *Matcher) Whitelisted(data []byte) bool {
	if m == nil || len(m.fps) == 0 {
		return false
	}
	found := false
	lookup(m.fps, m.digest(data), int64(len(data)), func(string) bool {
		found = true
		return false
	})
	return found
}

// Scan reports the names of signatures matching the object.
//
// If "all" is false, at most one name is returned: the first hash match, or
// failing that the body match ending earliest in the data. Otherwise every
// distinct matching name is returned, hash matches first. The result is nil
// if nothing matched.
func (m *Matcher) Scan(data []byte, t Target, all bool) []string {
	if m == nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) bool {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
		return all
	}
	if len(m.hashes) != 0 {
		done := false
		lookup(m.hashes, m.digest(data), int64(len(data)), func(name string) bool {
			done = !add(name)
			return !done
		})
		if done {
			return out
		}
	}
	m.auto.Scan(data, func(id, astart int) bool {
		s := &m.body[id]
		if s.target != TargetAny && s.target != t {
			return true
		}
		start := astart - s.pat.segs[s.pat.anchor].off
		if !s.off.allows(start, len(data)) || !s.pat.match(data, start) {
			return true
		}
		return add(s.name)
	})
	return out
}
