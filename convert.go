package props

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var timeType = reflect.TypeFor[time.Time]()

var timeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

var convertHook = mapstructure.ComposeDecodeHookFunc(
	mapstructure.DecodeHookFuncType(trimStringHook),
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.DecodeHookFuncType(stringToTimeHook),
	mapstructure.DecodeHookFuncType(stringerHook),
	mapstructure.DecodeHookFuncValue(numericRangeHook),
)

// Convert coerces a loosely typed value (as produced by JSON, YAML or an
// expression engine) into T. Values already assignable to T are returned
// unchanged.
func Convert[T any](value any) (T, error) {
	var zero T
	converted, err := ConvertTo(value, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if converted == nil {
		return zero, nil
	}
	return converted.(T), nil
}

// ConvertTo is the reflect.Type driven form of Convert. Strings are parsed
// into numbers, bools, durations and times; numbers must fit the target
// without truncation.
func ConvertTo(value any, target reflect.Type) (any, error) {
	if target == nil {
		return value, nil
	}
	if value == nil {
		if nilable(target) {
			return nil, nil
		}
		return nil, &TypeMismatchError{Want: target}
	}
	got := reflect.TypeOf(value)
	if got.AssignableTo(target) {
		return value, nil
	}

	out := reflect.New(target)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		WeaklyTypedInput: true,
		DecodeHook:       convertHook,
	})
	if err == nil {
		err = decoder.Decode(value)
	}
	if err != nil {
		return nil, &TypeMismatchError{Want: target, Got: got, Err: err}
	}
	return out.Elem().Interface(), nil
}

func trimStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() == reflect.String {
		return data, nil
	}
	return strings.TrimSpace(reflect.ValueOf(data).String()), nil
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as time", s)
}

func stringerHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() == reflect.String {
		return data, nil
	}
	if s, ok := data.(fmt.Stringer); ok {
		return reflect.ValueOf(s.String()).Convert(to).Interface(), nil
	}
	return data, nil
}

// numericRangeHook rejects numbers that the target kind cannot hold exactly.
// The decoder itself truncates floats and wraps out of range integers.
func numericRangeHook(from, to reflect.Value) (any, error) {
	if !from.IsValid() {
		return nil, nil
	}
	data := from.Interface()
	target := to.Type()
	if !isNumberKind(target.Kind()) {
		return data, nil
	}
	slot := reflect.New(target).Elem()
	switch {
	case isIntKind(from.Kind()):
		n := from.Int()
		switch {
		case isIntKind(target.Kind()) && slot.OverflowInt(n),
			isUintKind(target.Kind()) && (n < 0 || slot.OverflowUint(uint64(n))):
			return nil, fmt.Errorf("value %d overflows %s", n, target)
		}
	case isUintKind(from.Kind()):
		u := from.Uint()
		switch {
		case isIntKind(target.Kind()) && (u > math.MaxInt64 || slot.OverflowInt(int64(u))),
			isUintKind(target.Kind()) && slot.OverflowUint(u):
			return nil, fmt.Errorf("value %d overflows %s", u, target)
		}
	case from.Kind() == reflect.Float32 || from.Kind() == reflect.Float64:
		f := from.Float()
		if target.Kind() == reflect.Float32 {
			if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
				return nil, fmt.Errorf("value %v overflows %s", f, target)
			}
			return data, nil
		}
		if target.Kind() == reflect.Float64 {
			return data, nil
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("value %v is not integral", f)
		}
		switch {
		case isIntKind(target.Kind()) && (f < math.MinInt64 || f >= math.MaxInt64 || slot.OverflowInt(int64(f))),
			isUintKind(target.Kind()) && (f < 0 || f >= math.MaxUint64 || slot.OverflowUint(uint64(f))):
			return nil, fmt.Errorf("value %v overflows %s", f, target)
		}
	}
	return data, nil
}

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || k == reflect.Float32 || k == reflect.Float64
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
