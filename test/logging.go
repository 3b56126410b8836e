package test

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quay/scancore/toolkit/log"
)

var (
	// Install routes the default logger through the Context exactly once.
	install = sync.OnceFunc(func() {
		slog.SetDefault(slog.New(&router{}))
	})

	// Modprefix is the main module path with a trailing slash, trimmed from
	// logged function names.
	modprefix = sync.OnceValue(func() string {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
			return info.Main.Path + "/"
		}
		return "github.com/quay/scancore/"
	})
)

type handlerKey struct{}

// Router is a [slog.Handler] that forwards to whatever handler is carried in
// the [context.Context], so that parallel tests each see only their own logs.
//
// Attributes and groups added with WithAttrs and WithGroup are replayed on the
// Context's handler at Handle time.
type router struct {
	parent *router
	attrs  []slog.Attr
	group  string
}

func target(ctx context.Context) slog.Handler {
	h, _ := ctx.Value(handlerKey{}).(slog.Handler)
	return h
}

// Enabled implements [slog.Handler].
func (r *router) Enabled(ctx context.Context, l slog.Level) bool {
	h := target(ctx)
	return h != nil && h.Enabled(ctx, l)
}

// Handle implements [slog.Handler].
func (r *router) Handle(ctx context.Context, rec slog.Record) error {
	h := target(ctx)
	if h == nil {
		return nil
	}
	var chain []*router
	for cur := r; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		switch c := chain[i]; {
		case c.group != "":
			h = h.WithGroup(c.group)
		case len(c.attrs) != 0:
			h = h.WithAttrs(c.attrs)
		}
	}
	if v := log.Attrs(ctx); len(v) != 0 {
		rec.AddAttrs(v...)
	}
	return h.Handle(ctx, rec)
}

// WithAttrs implements [slog.Handler].
func (r *router) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &router{parent: r, attrs: attrs}
}

// WithGroup implements [slog.Handler].
func (r *router) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	return &router{parent: r, group: name}
}

// Logging returns a [context.Context] that makes the default [slog.Logger]
// write to the test's output.
//
// If a parent Context is passed, the returned Context is derived from it.
func Logging(t testing.TB, parent ...context.Context) context.Context {
	install()
	ctx := context.Background()
	if len(parent) > 0 {
		ctx = parent[0]
	}
	start := time.Now()
	h := slog.NewTextHandler(logOutput(t), &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(g []string, a slog.Attr) slog.Attr {
			if len(g) != 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, "+"+time.Since(start).String())
			case slog.SourceKey:
				src, ok := a.Value.Any().(*slog.Source)
				if !ok {
					return a
				}
				if src.Function != "" {
					return slog.String(slog.SourceKey, strings.TrimPrefix(src.Function, modprefix()))
				}
				return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
			return a
		},
	})
	return context.WithValue(ctx, handlerKey{}, h)
}

// Recorder collects log records for inspection.
type Recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// Records returns a copy of the records seen so far.
func (r *Recorder) Records() []slog.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]slog.Record(nil), r.records...)
}

// Count reports the number of records with the given message.
func (r *Recorder) Count(msg string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Message == msg {
			n++
		}
	}
	return n
}

type recordHandler struct {
	r    *Recorder
	next slog.Handler
}

func (h recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordHandler) Handle(ctx context.Context, rec slog.Record) error {
	h.r.mu.Lock()
	h.r.records = append(h.r.records, rec.Clone())
	h.r.mu.Unlock()
	if h.next != nil && h.next.Enabled(ctx, rec.Level) {
		return h.next.Handle(ctx, rec)
	}
	return nil
}

func (h recordHandler) WithAttrs(as []slog.Attr) slog.Handler {
	n := h
	if h.next != nil {
		n.next = h.next.WithAttrs(as)
	}
	return n
}

func (h recordHandler) WithGroup(name string) slog.Handler {
	n := h
	if h.next != nil {
		n.next = h.next.WithGroup(name)
	}
	return n
}

// Capture is like [Logging], but also records every log record in the
// returned Recorder.
func Capture(t testing.TB, parent ...context.Context) (context.Context, *Recorder) {
	ctx := Logging(t, parent...)
	rec := new(Recorder)
	h := recordHandler{r: rec, next: target(ctx)}
	return context.WithValue(ctx, handlerKey{}, slog.Handler(h)), rec
}
