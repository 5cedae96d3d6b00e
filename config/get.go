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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Get returns the value at path converted to T, or T's zero value when
// the path is absent or the value cannot convert.
//
// Example:
//
//	port := config.Get[int](cfg, "server.port")
//	timeout := config.Get[time.Duration](cfg, "server.timeout")
func Get[T any](c *Config, path string) T {
	v, _ := GetE[T](c, path)
	return v
}

// GetOr returns the value at path converted to T, or fallback when the
// path is absent or the value cannot convert. T is inferred from the
// fallback.
//
// Example:
//
//	host := config.GetOr(cfg, "server.host", "localhost")
func GetOr[T any](c *Config, path string, fallback T) T {
	raw, ok := c.value(path)
	if !ok {
		return fallback
	}
	v, ok := convert[T](raw)
	if !ok {
		return fallback
	}
	return v
}

// GetE returns the value at path converted to T, or an error when the
// path is absent or conversion fails. Use it for required settings.
func GetE[T any](c *Config, path string) (T, error) {
	var zero T
	raw, ok := c.value(path)
	if !ok {
		return zero, fmt.Errorf("key %q not found", path)
	}
	v, ok := convert[T](raw)
	if !ok {
		return zero, fmt.Errorf("cannot convert value at %q to %T", path, zero)
	}
	return v, nil
}

// convert coerces raw into T: direct assertion first, then cast
// conversions for the common scalar, slice, and map shapes.
func convert[T any](raw any) (T, bool) {
	if v, ok := raw.(T); ok {
		return v, true
	}

	var zero T
	var converted any
	var err error
	switch any(zero).(type) {
	case string:
		converted, err = cast.ToStringE(raw)
	case bool:
		converted, err = cast.ToBoolE(raw)
	case int:
		converted, err = cast.ToIntE(raw)
	case int64:
		converted, err = cast.ToInt64E(raw)
	case uint:
		converted, err = cast.ToUintE(raw)
	case float64:
		converted, err = cast.ToFloat64E(raw)
	case time.Duration:
		converted, err = coerceDuration(raw)
	case time.Time:
		converted, err = cast.ToTimeE(raw)
	case []string:
		if s, isString := raw.(string); isString {
			converted, err = splitList(s), nil
		} else {
			converted, err = cast.ToStringSliceE(raw)
		}
	case []int:
		converted, err = cast.ToIntSliceE(raw)
	case map[string]any:
		converted, err = cast.ToStringMapE(raw)
	case map[string]string:
		converted, err = cast.ToStringMapStringE(raw)
	default:
		return zero, false
	}
	if err != nil {
		return zero, false
	}
	v, ok := converted.(T)
	return v, ok
}

// splitList splits a comma-separated string, trimming whitespace and
// dropping empty elements.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
