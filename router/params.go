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

package router

// Param is one extracted path parameter. Typed parameters carry their
// coerced value alongside the raw captured text; optional parameters
// that were absent from the request path have Missing set and a nil
// Value.
type Param struct {
	Name     string
	Raw      string
	Value    any
	Kind     ParamKind
	Optional bool
	Wildcard bool
	Missing  bool
}

// Params holds the parameters extracted for a matched route, in the
// order they appear in the pattern.
type Params []Param

// Get returns the raw string value of the named parameter. The second
// return is false when the parameter is not present, including optional
// parameters the request path omitted.
func (ps Params) Get(name string) (string, bool) {
	for i := range ps {
		if ps[i].Name == name && !ps[i].Missing {
			return ps[i].Raw, true
		}
	}
	return "", false
}

// Has reports whether the named parameter is present on this request.
func (ps Params) Has(name string) bool {
	_, ok := ps.Get(name)
	return ok
}

// String returns the raw value of the named parameter, or the empty
// string when absent.
func (ps Params) String(name string) string {
	v, _ := ps.Get(name)
	return v
}

// Int64 returns the coerced value of an int-typed parameter. The second
// return is false when the parameter is absent or not declared as int.
func (ps Params) Int64(name string) (int64, bool) {
	for i := range ps {
		if ps[i].Name == name && !ps[i].Missing {
			v, ok := ps[i].Value.(int64)
			return v, ok
		}
	}
	return 0, false
}

// Float64 returns the coerced value of a double-typed parameter. The
// second return is false when the parameter is absent or not declared
// as double.
func (ps Params) Float64(name string) (float64, bool) {
	for i := range ps {
		if ps[i].Name == name && !ps[i].Missing {
			v, ok := ps[i].Value.(float64)
			return v, ok
		}
	}
	return 0, false
}

// Value returns the typed value of the named parameter: int64 for int,
// float64 for double, string for everything else. It is nil when the
// parameter is absent.
func (ps Params) Value(name string) any {
	for i := range ps {
		if ps[i].Name == name && !ps[i].Missing {
			return ps[i].Value
		}
	}
	return nil
}

// Map returns the raw values keyed by name, skipping absent optionals.
// Useful for logging and event payloads.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for i := range ps {
		if !ps[i].Missing {
			m[ps[i].Name] = ps[i].Raw
		}
	}
	return m
}
