package logger

import (
	"fmt"
	"log/slog"
	"reflect"
)

// summarize replaces slice and array values longer than maxItems by a
// short description, so a coordinate buffer logged by accident costs one
// line instead of thousands.
func summarize(a slog.Attr, maxItems int) slog.Attr {
	if maxItems < 0 {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = summarize(attr, maxItems)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		if s, ok := Summary(a.Value.Any(), maxItems); ok {
			return slog.String(a.Key, s)
		}
	}
	return a
}

// Summary describes v if it is a slice or array with more than maxItems
// elements.
func Summary(v any, maxItems int) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return "", false
	}
	if rv.Len() <= maxItems {
		return "", false
	}
	return fmt.Sprintf("%s(len=%d)", rv.Type(), rv.Len()), true
}
