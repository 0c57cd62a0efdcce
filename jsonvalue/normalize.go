package jsonvalue

import (
	"regexp"
	"strconv"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Normalize walks v and coerces string leaves that look like other scalars:
// "true"/"false" in any case become Bool, integers that fit in int64 become
// Int, decimal numbers become Float. Every other string is left as text.
// Surrounding whitespace is ignored when matching but kept on strings that
// stay text.
func Normalize(v Value) Value {
	switch v.kind {
	case String:
		return coerceString(v.s)
	case Array:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = Normalize(item)
		}
		return ArrayValue(items...)
	case Object:
		members := make([]Member, len(v.members))
		for i, m := range v.members {
			members[i] = Member{Key: m.Key, Value: Normalize(m.Value)}
		}
		return ObjectValue(members...)
	default:
		return v
	}
}

// NormalizeAny converts in with FromAny and normalizes the result.
func NormalizeAny(in any) (Value, error) {
	v, err := FromAny(in)
	if err != nil {
		return Value{}, err
	}
	return Normalize(v), nil
}

func coerceString(s string) Value {
	t := strings.TrimSpace(s)
	switch {
	case strings.EqualFold(t, "true"):
		return BoolValue(true)
	case strings.EqualFold(t, "false"):
		return BoolValue(false)
	}
	if !decimalPattern.MatchString(t) {
		return StringValue(s)
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}
