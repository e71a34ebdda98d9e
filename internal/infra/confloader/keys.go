package confloader

import (
	"reflect"
	"strings"
)

// KeysOf returns the dotted koanf key of every leaf field reachable from
// v, which must be a struct or a pointer to one. Fields without a koanf
// tag, or tagged "-", are skipped.
func KeysOf(v any) []string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys, nil)
	return keys
}

// listKeysOf returns the keys of v whose fields are string slices.
func listKeysOf(v any) map[string]bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	lists := make(map[string]bool)
	if t == nil || t.Kind() != reflect.Struct {
		return lists
	}
	var keys []string
	collectKeys(t, "", &keys, lists)
	return lists
}

func collectKeys(t reflect.Type, prefix string, keys *[]string, lists map[string]bool) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		ft := f.Type
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			collectKeys(ft, key, keys, lists)
			continue
		}
		if lists != nil && ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.String {
			lists[key] = true
		}
		*keys = append(*keys, key)
	}
}

// envKeyIndex maps the flattened environment spelling of each key
// (dots and underscores both written as "_") to the key itself.
func envKeyIndex(keys []string) map[string]string {
	idx := make(map[string]string, len(keys))
	for _, k := range keys {
		idx[strings.ReplaceAll(k, ".", "_")] = k
	}
	return idx
}
