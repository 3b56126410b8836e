// Package log is a common spot for scancore logging helpers.
//
// Packages in this module log with [log/slog] using the "Context" variants of
// the logging functions. Attributes describing the current unit of work (the
// scan, the object being unpacked, the database being loaded) ride along in
// the [context.Context] and are injected into records by a handler returned
// from [WrapHandler].
package log

import (
	"context"
	"log/slog"
	"slices"
)

type ctxkey int

const (
	_ ctxkey = iota

	// AttrsKey is the [context.Context] key for extra logging attributes.
	//
	// The value will be a [slog.Value] of kind "Group" if present.
	AttrsKey

	// LevelKey is the [context.Context] key for a per-record minimum
	// [slog.Leveler].
	LevelKey
)

// With returns a context with the key-value pairs stored as [slog.Attr]
// values at [AttrsKey].
//
// Later values for a key replace earlier ones.
func With(ctx context.Context, args ...any) context.Context {
	return WithAttr(ctx, toAttrs(args)...)
}

// WithAttr returns a context with the arguments stored at [AttrsKey].
func WithAttr(ctx context.Context, attrs ...slog.Attr) context.Context {
	if v, ok := ctx.Value(AttrsKey).(slog.Value); ok {
		attrs = append(slices.Clone(v.Group()), attrs...)
	}
	// Walk backwards so the last value for a key wins, then restore order.
	seen := make(map[string]struct{}, len(attrs))
	out := make([]slog.Attr, 0, len(attrs))
	for i := len(attrs) - 1; i >= 0; i-- {
		a := attrs[i]
		if _, dup := seen[a.Key]; dup {
			continue
		}
		seen[a.Key] = struct{}{}
		if a.Value.Kind() == slog.KindGroup && len(a.Value.Group()) == 0 {
			continue
		}
		out = append(out, a)
	}
	slices.Reverse(out)
	return context.WithValue(ctx, AttrsKey, slog.GroupValue(out...))
}

// WithLevel returns a context with the [slog.Leveler] stored at [LevelKey].
//
// Records at or above the level are emitted even if the wrapped handler's
// own level would drop them. This is used to turn on debugging for a single
// scan.
func WithLevel(ctx context.Context, l slog.Leveler) context.Context {
	return context.WithValue(ctx, LevelKey, l)
}

// Attrs reports the attributes stored in the context.
func Attrs(ctx context.Context) []slog.Attr {
	v, ok := ctx.Value(AttrsKey).(slog.Value)
	if !ok {
		return nil
	}
	return v.Group()
}

func toAttrs(args []any) []slog.Attr {
	const badKey = `!BADKEY`
	var attrs []slog.Attr
	for len(args) > 0 {
		switch x := args[0].(type) {
		case slog.Attr:
			attrs = append(attrs, x)
			args = args[1:]
		case string:
			if len(args) == 1 {
				attrs = append(attrs, slog.String(badKey, x))
				return attrs
			}
			attrs = append(attrs, slog.Any(x, args[1]))
			args = args[2:]
		default:
			attrs = append(attrs, slog.Any(badKey, x))
			args = args[1:]
		}
	}
	return attrs
}
