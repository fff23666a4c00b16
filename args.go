package prefixcache

import (
	"fmt"
	"reflect"
	"time"
)

// argReader decodes positional arguments of a forwarded call. The first
// decoding failure is kept in err and later reads become no-ops.
type argReader struct {
	op   Op
	args []any
	err  error
}

func (r *argReader) fail(i int, want string) {
	if r.err != nil {
		return
	}
	if i >= len(r.args) {
		r.err = fmt.Errorf("%w: %s: missing argument %d (%s)", ErrInvalidArgs, r.op, i, want)
		return
	}
	r.err = fmt.Errorf("%w: %s: argument %d must be %s, got %T", ErrInvalidArgs, r.op, i, want, r.args[i])
}

func (r *argReader) has(i int) bool { return i < len(r.args) && r.args[i] != nil }

func (r *argReader) str(i int) string {
	if !r.has(i) {
		r.fail(i, "a string")
		return ""
	}
	switch v := r.args[i].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	if rv := reflect.ValueOf(r.args[i]); rv.Kind() == reflect.String {
		return rv.String()
	}
	r.fail(i, "a string")
	return ""
}

func (r *argReader) bytes(i int) []byte {
	if !r.has(i) {
		r.fail(i, "a value")
		return nil
	}
	if b, ok := toBytes(r.args[i]); ok {
		return b
	}
	r.fail(i, "[]byte or string")
	return nil
}

// duration reads an optional expiration. Integers are seconds, following
// the memcached convention.
func (r *argReader) duration(i int) time.Duration {
	if !r.has(i) {
		return 0
	}
	switch v := r.args[i].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	}
	r.fail(i, "a time.Duration or seconds")
	return 0
}

// delta reads an optional counter offset, defaulting to 1.
func (r *argReader) delta(i int) uint64 {
	if !r.has(i) {
		return 1
	}
	switch v := r.args[i].(type) {
	case uint64:
		return v
	case uint:
		return uint64(v)
	case uint32:
		return uint64(v)
	case int:
		if v >= 0 {
			return uint64(v)
		}
	case int64:
		if v >= 0 {
			return uint64(v)
		}
	}
	r.fail(i, "a non-negative integer")
	return 0
}

func (r *argReader) token(i int) CASToken {
	if !r.has(i) {
		r.fail(i, "a CAS token")
		return CASToken{}
	}
	switch v := r.args[i].(type) {
	case CASToken:
		return v
	case *CASToken:
		return *v
	case *Item:
		return v.CAS
	case uint64:
		return CASToken{ID: v}
	}
	r.fail(i, "a CAS token")
	return CASToken{}
}

func (r *argReader) keys(i int) []string {
	if !r.has(i) {
		return nil
	}
	if v, ok := r.args[i].([]string); ok {
		return v
	}
	rv := reflect.ValueOf(r.args[i])
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.String {
		out := make([]string, rv.Len())
		for j := range out {
			out[j] = rv.Index(j).String()
		}
		return out
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out = append(out, iter.Key().String())
		}
		return out
	}
	r.fail(i, "a list of keys")
	return nil
}

func (r *argReader) items(i int) map[string][]byte {
	if !r.has(i) {
		return nil
	}
	if v, ok := r.args[i].(map[string][]byte); ok {
		return v
	}
	rv := reflect.ValueOf(r.args[i])
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		r.fail(i, "a map of keys to values")
		return nil
	}
	out := make(map[string][]byte, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		b, ok := toBytes(iter.Value().Interface())
		if !ok {
			r.fail(i, "a map of keys to []byte or string values")
			return nil
		}
		out[iter.Key().String()] = b
	}
	return out
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.String:
		return []byte(rv.String()), true
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		return rv.Bytes(), true
	}
	return nil, false
}
