package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source is the byte source handed to an Unpacker.
//
// [*io.SectionReader] satisfies this interface.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Sink receives the results of unpacking.
//
// Errors returned by Sink methods are terminal for the walk (a detection, or a
// limit being hit) and must be returned by the Unpacker unmodified.
type Sink interface {
	// Emit hands over one extracted sub-object. The reader is only valid
	// for the duration of the call.
	Emit(ctx context.Context, name string, r io.Reader) error
	// Partial hands over a fragment of a larger object, such as a
	// "message/partial" mail part. The Sink decides whether to inspect it.
	Partial(ctx context.Context, name string, r io.Reader) error
	// Encrypted reports a member that can't be inspected because it's
	// encrypted. If it returns nil, the Unpacker should continue with the
	// next member.
	Encrypted(ctx context.Context, name string) error
	// Anomaly reports a heuristic finding about the container itself.
	Anomaly(ctx context.Context, name string)
}

// Unpacker is the interface implemented by per-format decoders.
type Unpacker interface {
	// Family reports which family this Unpacker handles.
	Family() Family
	// Unpack decodes the Source, reporting sub-objects to the Sink in their
	// natural order.
	//
	// A malformed container is reported by returning an error wrapping
	// ErrBroken. Members emitted before the failure still count.
	Unpack(ctx context.Context, src Source, sink Sink) error
}

// ErrBroken is wrapped by errors describing a broken or malformed container.
var ErrBroken = errors.New("broken container")

// Broken returns an error wrapping ErrBroken.
func broken(f Family, err error) error {
	return fmt.Errorf("unpack: %v: %w: %w", f, ErrBroken, err)
}

// Brokenf is like broken, with a formatted message.
func brokenf(f Family, format string, args ...any) error {
	return fmt.Errorf("unpack: %v: %w: %s", f, ErrBroken, fmt.Sprintf(format, args...))
}

// Tracker wraps a reader, remembering the first error that isn't [io.EOF] and
// whether the end of the stream was reached.
//
// Unpackers hand trackers to the Sink so they can tell if a member was
// truncated, even if the Sink swallowed the read error.
type tracker struct {
	r   io.Reader
	err error
	eof bool
}

func track(r io.Reader) *tracker { return &tracker{r: r} }

func (t *tracker) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	switch {
	case errors.Is(err, nil):
	case errors.Is(err, io.EOF):
		t.eof = true
	case t.err == nil:
		t.err = err
	}
	return n, err
}

// Finish reports the error seen at the end of a member the Sink consumed.
//
// A Sink that read everything but the final EOF gets one more single-byte
// read, so that stream footers (e.g. checksums) are still checked. If data
// remains, the Sink declined the rest of the member and it is not decoded
// further.
func (t *tracker) finish() error {
	if t.err != nil || t.eof {
		return t.err
	}
	var b [1]byte
	if n, _ := io.ReadFull(t, b[:]); n != 0 {
		return nil
	}
	return t.err
}

// Emit is the common path for handing a member to a Sink: it counts the
// member and reports truncation as a broken container.
func emit(ctx context.Context, f Family, sink Sink, name string, r io.Reader) error {
	objectCounter.Add(ctx, 1, familyAttr(f))
	t := track(r)
	if err := sink.Emit(ctx, name, t); err != nil {
		return err
	}
	if err := t.finish(); err != nil {
		return broken(f, err)
	}
	return nil
}

// Registry maps families to Unpackers.
//
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	m map[Family]Unpacker
}

// NewRegistry returns a Registry holding the provided Unpackers. Later
// entries replace earlier ones for the same Family.
func NewRegistry(us ...Unpacker) *Registry {
	r := &Registry{m: make(map[Family]Unpacker, len(us))}
	for _, u := range us {
		r.m[u.Family()] = u
	}
	return r
}

// Lookup returns the Unpacker for a family, if any.
func (r *Registry) Lookup(f Family) (Unpacker, bool) {
	if r == nil {
		return nil, false
	}
	u, ok := r.m[f]
	return u, ok
}

// With returns a copy of the Registry with the provided Unpackers added.
func (r *Registry) With(us ...Unpacker) *Registry {
	out := &Registry{m: make(map[Family]Unpacker, len(r.m)+len(us))}
	for f, u := range r.m {
		out.m[f] = u
	}
	for _, u := range us {
		out.m[u.Family()] = u
	}
	return out
}

var defaultRegistry = NewRegistry(
	new(TarUnpacker),
	new(ZipUnpacker),
	new(GzipUnpacker),
	new(Bzip2Unpacker),
	new(XzUnpacker),
	new(ZstdUnpacker),
	new(MailUnpacker),
	new(HTMLUnpacker),
	new(PDFUnpacker),
	new(PEUnpacker),
	new(ELFUnpacker),
)

// Default returns a Registry with every built-in Unpacker.
//
// OLE2 is identified but has no built-in Unpacker; such objects are treated as
// opaque leaves.
func Default() *Registry { return defaultRegistry }

// Reader returns a reader over the whole Source.
func reader(src Source) io.Reader {
	return io.NewSectionReader(src, 0, src.Size())
}
