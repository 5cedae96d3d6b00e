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

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ParamKind identifies the declared type of a path parameter.
type ParamKind uint8

const (
	// ParamString matches any non-empty segment and stays a string.
	ParamString ParamKind = iota

	// ParamInt matches an optionally signed decimal integer, coerced to int64.
	ParamInt

	// ParamDouble matches a decimal number, coerced to float64.
	ParamDouble

	// ParamSlug matches lowercase alphanumerics separated by single hyphens.
	ParamSlug

	// ParamUUID matches the canonical 8-4-4-4-12 hex form.
	ParamUUID

	// ParamEmail matches a pragmatic subset of RFC 5322 addresses.
	ParamEmail

	// ParamIP matches an IPv4 dotted quad or a textual IPv6 address.
	ParamIP
)

// String returns the grammar name of the kind, as written in patterns.
func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamDouble:
		return "double"
	case ParamSlug:
		return "slug"
	case ParamUUID:
		return "uuid"
	case ParamEmail:
		return "email"
	case ParamIP:
		return "ip"
	default:
		return "string"
	}
}

// Segment regexes per parameter type. All groups inside are
// non-capturing so that submatch positions stay aligned with the
// parameter descriptors.
const (
	patternInt    = `-?\d+`
	patternDouble = `-?\d+(?:\.\d+)?`
	patternSlug   = `[a-z0-9]+(?:-[a-z0-9]+)*`
	patternUUID   = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`
	patternEmail  = `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`
	patternIP     = `[0-9a-fA-F:.]+`
	patternString = `[^/]+`
)

// paramTypes maps grammar type names to kinds.
var paramTypes = map[string]ParamKind{
	"int":    ParamInt,
	"double": ParamDouble,
	"slug":   ParamSlug,
	"uuid":   ParamUUID,
	"email":  ParamEmail,
	"ip":     ParamIP,
	"string": ParamString,
}

// typePattern returns the segment regex for a parameter kind.
func typePattern(k ParamKind) string {
	switch k {
	case ParamInt:
		return patternInt
	case ParamDouble:
		return patternDouble
	case ParamSlug:
		return patternSlug
	case ParamUUID:
		return patternUUID
	case ParamEmail:
		return patternEmail
	case ParamIP:
		return patternIP
	default:
		return patternString
	}
}

// paramDesc describes one placeholder of a compiled pattern, in
// declaration order.
type paramDesc struct {
	name     string
	kind     ParamKind
	optional bool
	wildcard bool
	group    int // submatch index in the compiled regex
}

// segment is one parsed piece of a pattern: either a literal or a
// placeholder. Used for both regex compilation and reverse routing.
type segment struct {
	literal  string // set when param is empty
	param    string
	kind     ParamKind
	optional bool
	wildcard bool
}

// compiledPattern is the build-time form of a route path: an anchored
// regex plus ordered parameter descriptors.
type compiledPattern struct {
	pattern  string
	rx       *regexp.Regexp
	params   []paramDesc
	segments []segment
}

// parsePlaceholder splits the inside of a {...} placeholder into its
// name, kind, and flags. The raw value excludes the braces.
func parsePlaceholder(raw string) (seg segment, err error) {
	if strings.HasPrefix(raw, "*") {
		name := raw[1:]
		if name == "" {
			return seg, fmt.Errorf("wildcard placeholder requires a name")
		}
		return segment{param: name, kind: ParamString, wildcard: true}, nil
	}

	if strings.HasSuffix(raw, "?") {
		raw = strings.TrimSuffix(raw, "?")
		seg.optional = true
	}

	name, typeName, hasType := strings.Cut(raw, ":")
	if name == "" {
		return seg, fmt.Errorf("placeholder requires a name")
	}
	seg.param = name
	seg.kind = ParamString
	if hasType {
		kind, ok := paramTypes[typeName]
		if !ok {
			return seg, fmt.Errorf("unknown parameter type %q", typeName)
		}
		seg.kind = kind
	}
	return seg, nil
}

// parsePattern splits a route pattern into segments. The pattern must
// start with a slash; empty literal segments are preserved so that
// doubled slashes stay significant.
func parsePattern(pattern string) ([]segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, fmt.Errorf("pattern must start with /")
	}

	parts := strings.Split(pattern[1:], "/")
	segments := make([]segment, 0, len(parts))

	for i, part := range parts {
		last := i == len(parts)-1

		if !strings.ContainsAny(part, "{}") {
			segments = append(segments, segment{literal: part})
			continue
		}
		if len(part) < 2 || part[0] != '{' || part[len(part)-1] != '}' {
			return nil, fmt.Errorf("malformed placeholder %q", part)
		}

		seg, err := parsePlaceholder(part[1 : len(part)-1])
		if err != nil {
			return nil, err
		}
		if seg.optional && !last {
			return nil, fmt.Errorf("optional parameter %q must be the last segment", seg.param)
		}
		if seg.wildcard && !last {
			return nil, fmt.Errorf("wildcard parameter %q must be the last segment", seg.param)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// compilePattern translates a route pattern into an anchored regex and
// an ordered parameter descriptor list. Constraints narrow untyped (or
// string-typed) placeholders with a caller-supplied regex; pointing one
// at a typed or unknown parameter is an error.
func compilePattern(pattern string, constraints map[string]string) (*compiledPattern, error) {
	segments, err := parsePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	var (
		sb     strings.Builder
		params []paramDesc
		seen   = map[string]bool{}
	)
	sb.WriteString("^")

	for _, seg := range segments {
		if seg.param == "" {
			sb.WriteString("/")
			sb.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}

		if seen[seg.param] {
			return nil, fmt.Errorf("pattern %q: duplicate parameter %q", pattern, seg.param)
		}
		seen[seg.param] = true

		segRx := typePattern(seg.kind)
		if c, ok := constraints[seg.param]; ok {
			if seg.kind != ParamString || seg.wildcard {
				return nil, fmt.Errorf("pattern %q: constraint on typed parameter %q", pattern, seg.param)
			}
			if _, err := regexp.Compile(c); err != nil {
				return nil, fmt.Errorf("pattern %q: constraint for %q: %w", pattern, seg.param, err)
			}
			segRx = c
		}

		group := fmt.Sprintf("p%d", len(params))
		switch {
		case seg.wildcard:
			sb.WriteString("/(?P<")
			sb.WriteString(group)
			sb.WriteString(">.*)")
		case seg.optional:
			sb.WriteString("(?:/(?P<")
			sb.WriteString(group)
			sb.WriteString(">")
			sb.WriteString(segRx)
			sb.WriteString("))?")
		default:
			sb.WriteString("/(?P<")
			sb.WriteString(group)
			sb.WriteString(">")
			sb.WriteString(segRx)
			sb.WriteString(")")
		}

		params = append(params, paramDesc{
			name:     seg.param,
			kind:     seg.kind,
			optional: seg.optional,
			wildcard: seg.wildcard,
		})
	}
	sb.WriteString("$")

	for name := range constraints {
		if !seen[name] {
			return nil, fmt.Errorf("pattern %q: constraint for unknown parameter %q", pattern, name)
		}
	}

	rx, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	for i := range params {
		params[i].group = rx.SubexpIndex(fmt.Sprintf("p%d", i))
	}

	return &compiledPattern{
		pattern:  pattern,
		rx:       rx,
		params:   params,
		segments: segments,
	}, nil
}

// match runs the compiled regex against a normalized path and extracts
// coerced parameters. It returns false when the path does not match or
// a captured value fails its post-parse coercion, which callers treat
// as "this route does not apply".
func (cp *compiledPattern) match(path string) (Params, bool) {
	m := cp.rx.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	params := make(Params, 0, len(cp.params))
	for _, desc := range cp.params {
		raw := ""
		if desc.group >= 0 && desc.group < len(m) {
			raw = m[desc.group]
		}

		if raw == "" && desc.optional {
			params = append(params, Param{
				Name:     desc.name,
				Kind:     desc.kind,
				Optional: true,
				Missing:  true,
			})
			continue
		}

		value, ok := coerceParam(desc.kind, raw)
		if !ok {
			return nil, false
		}
		params = append(params, Param{
			Name:     desc.name,
			Raw:      raw,
			Value:    value,
			Kind:     desc.kind,
			Optional: desc.optional,
			Wildcard: desc.wildcard,
		})
	}
	return params, true
}

// coerceParam converts a raw capture into its typed value. A failed
// coercion (integer overflow, non-address ip text) means the segment
// does not satisfy the type after all.
func coerceParam(kind ParamKind, raw string) (any, bool) {
	switch kind {
	case ParamInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case ParamDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case ParamIP:
		if _, err := netip.ParseAddr(raw); err != nil {
			return nil, false
		}
		return raw, true
	default:
		return raw, true
	}
}

// url builds a concrete path from the pattern and the given parameter
// values. Optional parameters may be omitted; wildcard values keep
// their embedded slashes.
func (cp *compiledPattern) url(values map[string]string) (string, error) {
	var sb strings.Builder

	for _, seg := range cp.segments {
		if seg.param == "" {
			sb.WriteString("/")
			sb.WriteString(seg.literal)
			continue
		}

		val, ok := values[seg.param]
		if !ok || val == "" {
			if seg.optional {
				continue
			}
			return "", fmt.Errorf("%w: %s", ErrMissingRouteParameter, seg.param)
		}
		sb.WriteString("/")
		if seg.wildcard {
			sb.WriteString(escapeWildcard(val))
		} else {
			sb.WriteString(escapeSegment(val))
		}
	}

	if sb.Len() == 0 {
		return "/", nil
	}
	return sb.String(), nil
}

// escapeSegment percent-encodes one path segment.
func escapeSegment(s string) string {
	return url.PathEscape(s)
}

// escapeWildcard percent-encodes a wildcard value but keeps its slashes.
func escapeWildcard(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
