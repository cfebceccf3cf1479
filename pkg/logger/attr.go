package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Feature records a feature name under the key "feature".
func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

// Strategy records an activation strategy id under the key "strategy".
// An empty id yields an empty Attr.
func Strategy(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("strategy", id)
}

// Backend records the storage backend kind under the key "backend".
func Backend(kind string) slog.Attr {
	return slog.String("backend", kind)
}

// Path records a file path or object key under the key "path".
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Revision records a backing object revision under the key "revision".
func Revision(rev string) slog.Attr {
	return slog.String("revision", rev)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
