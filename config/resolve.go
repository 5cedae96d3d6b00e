// Copyright 2025 The Routed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// Validator is implemented by sections that check their own fields
// after decoding.
type Validator interface {
	Validate() error
}

// Resolve extracts the section at path from a loaded Config and
// decodes it into T. An absent section yields T's defaults.
//
// Example:
//
//	routing, err := config.Resolve[config.RoutingOptions](cfg, "routing")
func Resolve[T any](c *Config, path string) (T, error) {
	out, err := FromMap[T](c.StringMap(path))
	if err != nil {
		var zero T
		return zero, NewError(path, "resolve", err)
	}
	return out, nil
}

// FromMap decodes a section map into T. Defaults from `default` struct
// tags are applied first, then the map's keys override them, so an
// explicit false or zero in the input is preserved. Unknown keys are
// rejected. Duration fields accept bare numbers (seconds) or Go
// duration strings. When T implements Validator, Validate runs after
// decoding.
func FromMap[T any](m map[string]any) (T, error) {
	var out T
	if err := applyDefaults(&out); err != nil {
		return out, err
	}
	if m == nil {
		m = map[string]any{}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			stringToSliceHook,
		),
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(m); err != nil {
		return out, err
	}

	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ToMap encodes a section struct into its canonical map form:
// lowercase tag-named keys, durations rendered as strings, lists as
// []any (unset lists omitted), and nested structs as nested maps.
// Resolving a canonical map with FromMap and encoding it again is
// stable.
func ToMap(section any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "config",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(section); err != nil {
		return nil, err
	}
	return canonicalMap(out), nil
}

// canonicalMap rewrites decoded values into their wire shapes in
// place. Keys holding unset lists are dropped, matching what a
// hand-written document would contain.
func canonicalMap(m map[string]any) map[string]any {
	for k, v := range m {
		cv := canonicalValue(v)
		if cv == nil {
			delete(m, k)
			continue
		}
		m[k] = cv
	}
	return m
}

func canonicalValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Duration:
		return t.String()
	case map[string]any:
		return canonicalMap(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = canonicalValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		if m, err := ToMap(v); err == nil {
			return m
		}
	}
	return v
}

// durationHook coerces values targeting time.Duration fields: bare
// numbers count as seconds, strings may use Go duration syntax.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) || from == to {
		return data, nil
	}
	return coerceDuration(data)
}

// stringToSliceHook splits comma-separated strings targeting slice
// fields, trimming whitespace around each element.
func stringToSliceHook(from reflect.Kind, to reflect.Kind, data any) (any, error) {
	if from != reflect.String || to != reflect.Slice {
		return data, nil
	}
	return splitList(data.(string)), nil
}

// coerceDuration converts v into a duration. Bare numbers count as
// seconds; strings carrying a unit suffix go through
// time.ParseDuration.
func coerceDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		if strings.ContainsAny(t, "nsuµmh") {
			return time.ParseDuration(t)
		}
		secs, err := cast.ToFloat64E(t)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", t)
		}
		return time.Duration(secs * float64(time.Second)), nil
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %v", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// applyDefaults fills zero-valued fields from their `default` struct
// tags. It runs before decoding so explicit zero values in the input
// still override.
func applyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errors.New("defaults target must be a struct pointer")
	}
	return setDefaults(v.Elem())
}

func setDefaults(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := setDefaults(field); err != nil {
				return err
			}
			continue
		}
		tag := t.Field(i).Tag.Get("default")
		if tag == "" || !field.IsZero() {
			continue
		}
		if err := setDefaultValue(field, tag); err != nil {
			return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func setDefaultValue(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := coerceDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported default for kind %s", field.Kind())
	}
	return nil
}
