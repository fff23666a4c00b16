package prefixcache

import (
	"fmt"
	"reflect"
)

// rewrite returns a copy of args with the key argument of op prefixed.
// args itself, and any slice or map inside it, is left untouched.
func (p *Proxy) rewrite(op Op, args []any) ([]any, error) {
	d := descriptors[op]
	if d.keyArg >= len(args) {
		return nil, fmt.Errorf("%w: %s takes its key at argument %d, got %d arguments",
			ErrInvalidArgs, d.name, d.keyArg, len(args))
	}

	out := make([]any, len(args))
	copy(out, args)

	var err error
	if d.batch {
		out[d.keyArg], err = prefixKeys(p.prefix, args[d.keyArg])
	} else {
		out[d.keyArg], err = prefixKey(p.prefix, args[d.keyArg])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, d.name, err)
	}
	return out, nil
}

func prefixKey(prefix string, key any) (any, error) {
	if s, ok := key.(string); ok {
		return prefix + s, nil
	}

	rv := reflect.ValueOf(key)
	if rv.Kind() != reflect.String {
		return nil, fmt.Errorf("key must be a string, got %T", key)
	}
	return reflect.ValueOf(prefix + rv.String()).Convert(rv.Type()).Interface(), nil
}

// prefixKeys handles batch key arguments: a list of keys, or a mapping whose
// keys are cache keys. The result has the same type as the input.
func prefixKeys(prefix string, keys any) (any, error) {
	switch v := keys.(type) {
	case []string:
		if v == nil {
			return v, nil
		}
		out := make([]string, len(v))
		for i, k := range v {
			out[i] = prefix + k
		}
		return out, nil
	case map[string][]byte:
		if v == nil {
			return v, nil
		}
		out := make(map[string][]byte, len(v))
		for k, val := range v {
			out[prefix+k] = val
		}
		return out, nil
	case map[string]any:
		if v == nil {
			return v, nil
		}
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[prefix+k] = val
		}
		return out, nil
	}

	rv := reflect.ValueOf(keys)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return keys, nil
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		elem := rv.Type().Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(reflect.ValueOf(prefix + rv.Index(i).String()).Convert(elem))
		}
		return out.Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return keys, nil
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		keyType := rv.Type().Key()
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(reflect.ValueOf(prefix+iter.Key().String()).Convert(keyType), iter.Value())
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("batch keys must be a string slice or a string-keyed map, got %T", keys)
}
