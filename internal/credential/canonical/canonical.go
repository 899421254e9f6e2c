// Package canonical turns claim values into deterministic bytes.
//
// Values are first normalized to the JSON data model (nil, bool, float64,
// string, []any, map[string]any) and then serialized as canonical JSON, so
// object key order and Go numeric types never influence the output.
package canonical

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	canonicaljson "github.com/gibson042/canonicaljson-go"

	"anchorcred/internal/credential/models"
)

// maxSafeInteger is the largest integer a JSON number carries without loss.
const maxSafeInteger = 1<<53 - 1

// Encode returns canonical(path) followed by canonical(value). Both halves are
// self-delimiting JSON texts, so the concatenation is unambiguous.
func Encode(path models.Path, value any) ([]byte, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return nil, err
	}
	pathBytes, err := canonicaljson.Marshal(string(path))
	if err != nil {
		return nil, models.MalformedClaimError("encode path %s: %v", path, err)
	}
	valueBytes, err := canonicaljson.Marshal(normalized)
	if err != nil {
		return nil, models.MalformedClaimError("encode value at %s: %v", path, err)
	}
	out := make([]byte, 0, len(pathBytes)+len(valueBytes))
	out = append(out, pathBytes...)
	return append(out, valueBytes...), nil
}

// Value returns the canonical JSON of a single value.
func Value(value any) ([]byte, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return nil, err
	}
	out, err := canonicaljson.Marshal(normalized)
	if err != nil {
		return nil, models.MalformedClaimError("encode value: %v", err)
	}
	return out, nil
}

// Normalize converts value into the JSON data model. It rejects non-finite
// numbers, unsafe integers, non-string map keys, unsupported kinds and
// containers that reach themselves.
func Normalize(value any) (any, error) {
	n := normalizer{onPath: make(map[visitKey]struct{})}
	return n.normalize(reflect.ValueOf(value), "")
}

type visitKey struct {
	ptr  uintptr
	kind reflect.Kind
	len  int
}

type normalizer struct {
	onPath map[visitKey]struct{}
}

func (n *normalizer) normalize(v reflect.Value, at string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if num, ok := v.Interface().(json.Number); ok {
		return number(num, at)
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		if v.Kind() == reflect.Pointer {
			key := visitKey{ptr: v.Pointer(), kind: reflect.Pointer}
			if err := n.enter(key, at); err != nil {
				return nil, err
			}
			defer n.leave(key)
		}
		return n.normalize(v.Elem(), at)
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i > maxSafeInteger || i < -maxSafeInteger {
			return nil, models.MalformedClaimError("integer %d at %q exceeds the JSON safe range", i, at)
		}
		return float64(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > maxSafeInteger {
			return nil, models.MalformedClaimError("integer %d at %q exceeds the JSON safe range", u, at)
		}
		return float64(u), nil
	case reflect.Float32, reflect.Float64:
		return finite(v.Float(), at)
	case reflect.Slice, reflect.Array:
		return n.normalizeList(v, at)
	case reflect.Map:
		return n.normalizeObject(v, at)
	default:
		return nil, models.MalformedClaimError("unsupported value of kind %s at %q", v.Kind(), at)
	}
}

func (n *normalizer) normalizeList(v reflect.Value, at string) (any, error) {
	if v.Kind() == reflect.Slice {
		if v.IsNil() {
			return nil, nil
		}
		key := visitKey{ptr: v.Pointer(), kind: reflect.Slice, len: v.Len()}
		if err := n.enter(key, at); err != nil {
			return nil, err
		}
		defer n.leave(key)
	}
	out := make([]any, v.Len())
	for i := range v.Len() {
		item, err := n.normalize(v.Index(i), at+"/"+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (n *normalizer) normalizeObject(v reflect.Value, at string) (any, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, models.MalformedClaimError("object at %q has non-string keys", at)
	}
	if v.IsNil() {
		return nil, nil
	}
	key := visitKey{ptr: v.Pointer(), kind: reflect.Map}
	if err := n.enter(key, at); err != nil {
		return nil, err
	}
	defer n.leave(key)

	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		item, err := n.normalize(iter.Value(), at+"/"+k)
		if err != nil {
			return nil, err
		}
		out[k] = item
	}
	return out, nil
}

func (n *normalizer) enter(key visitKey, at string) error {
	if _, seen := n.onPath[key]; seen {
		return models.MalformedClaimError("circular structure at %q", at)
	}
	n.onPath[key] = struct{}{}
	return nil
}

func (n *normalizer) leave(key visitKey) {
	delete(n.onPath, key)
}

func finite(f float64, at string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, models.MalformedClaimError("non-finite number at %q", at)
	}
	return f, nil
}

// number normalizes a decoded JSON number literal under the same rules as Go
// numeric values: integers must stay within the safe range and any literal
// with an integral value outside it is rejected, since distinct literals
// would otherwise collapse to one float64.
func number(num json.Number, at string) (any, error) {
	lit := string(num)
	if !strings.ContainsAny(lit, ".eE") {
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			if _, ferr := strconv.ParseFloat(lit, 64); ferr == nil {
				return nil, models.MalformedClaimError("integer %s at %q exceeds the JSON safe range", lit, at)
			}
			return nil, models.MalformedClaimError("invalid number %q at %q", lit, at)
		}
		if i > maxSafeInteger || i < -maxSafeInteger {
			return nil, models.MalformedClaimError("integer %d at %q exceeds the JSON safe range", i, at)
		}
		return float64(i), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, models.MalformedClaimError("invalid number %q at %q", lit, at)
	}
	if f == math.Trunc(f) && math.Abs(f) > maxSafeInteger {
		return nil, models.MalformedClaimError("number %s at %q exceeds the JSON safe range", lit, at)
	}
	return finite(f, at)
}
