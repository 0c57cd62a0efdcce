package jsonvalue

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// FromAny converts a Go value into a Value.
//
// Native scalars, slices and string-keyed maps are walked directly; map keys
// are sorted for deterministic output. json.RawMessage is parsed. Anything
// else (structs, pointers, custom marshalers) goes through encoding/json.
func FromAny(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return NullValue(), nil
		}
		return *t, nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int8:
		return IntValue(int64(t)), nil
	case int16:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint8:
		return IntValue(int64(t)), nil
	case uint16:
		return IntValue(int64(t)), nil
	case uint32:
		return IntValue(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return FloatValue(float64(t)), nil
		}
		return IntValue(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return FloatValue(float64(t)), nil
		}
		return IntValue(int64(t)), nil
	case float32:
		return floatOrInt(float64(t)), nil
	case float64:
		return floatOrInt(t), nil
	case json.Number:
		return numberValue(t), nil
	case json.RawMessage:
		if len(t) == 0 {
			return NullValue(), nil
		}
		return Parse(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ArrayValue(items...), nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, s := range t {
			items = append(items, StringValue(s))
		}
		return ArrayValue(items...), nil
	case map[string]any:
		return objectFromMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return objectFromMap(m)
	}

	// Generic maps and slices of other element types.
	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String && !rv.Type().Implements(marshalerType) {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return objectFromMap(m)
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 && !rv.Type().Implements(marshalerType) {
			items := make([]Value, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				v, err := FromAny(rv.Index(i).Interface())
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			return ArrayValue(items...), nil
		}
	}

	data, err := json.Marshal(in)
	if err != nil {
		return Value{}, errors.Wrapf(err, "jsonvalue: convert %T", in)
	}
	return Parse(data)
}

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

func objectFromMap(m map[string]any) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	members := make([]Member, 0, len(keys))
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return Value{}, errors.Wrapf(err, "key %q", k)
		}
		members = append(members, Member{Key: k, Value: v})
	}
	return ObjectValue(members...), nil
}

// floatOrInt keeps integral floats (as produced by a generic JSON decode)
// as Int so they encode without a fractional part.
func floatOrInt(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !math.IsInf(f, 0) {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}
