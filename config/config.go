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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Option configures a Config instance at construction time.
type Option func(c *Config) error

// Config holds configuration merged from one or more sources. Later
// sources override earlier ones, deep-merging nested maps. Keys are
// case-insensitive and addressed with dotted paths.
//
// Config is safe for concurrent use.
type Config struct {
	mu         sync.RWMutex
	values     map[string]any
	sources    []Source
	schema     *jsonschema.Schema
	validators []func(map[string]any) error
}

// WithSource appends a custom source.
func WithSource(src Source) Option {
	return func(c *Config) error {
		if src == nil {
			return errors.New("source cannot be nil")
		}
		c.sources = append(c.sources, src)
		return nil
	}
}

// WithFile loads a file, detecting the format from its extension
// (.yaml, .yml, .json, .toml). The path may reference environment
// variables with ${VAR} or $VAR syntax.
//
// Example:
//
//	cfg := config.MustNew(
//	    config.WithFile("config.yaml"),
//	    config.WithFile("${CONFIG_DIR}/override.json"),
//	)
func WithFile(path string) Option {
	return func(c *Config) error {
		path = os.ExpandEnv(path)
		format, err := detectFormat(path)
		if err != nil {
			return NewError("file-source", "detect-format", err)
		}
		c.sources = append(c.sources, &fileSource{path: path, format: format})
		return nil
	}
}

// WithContent loads raw bytes in the given format.
//
// Example:
//
//	cfg := config.MustNew(
//	    config.WithContent([]byte("server:\n  port: 8080"), config.FormatYAML),
//	)
func WithContent(data []byte, format Format) Option {
	return func(c *Config) error {
		if !format.valid() {
			return NewError("content-source", "detect-format", fmt.Errorf("unsupported format %q", format))
		}
		c.sources = append(c.sources, &contentSource{data: data, format: format})
		return nil
	}
}

// WithEnv loads environment variables carrying the prefix. After the
// prefix is stripped, a double underscore separates nesting levels and
// single underscores stay literal:
//
//	ROUTED_SECURITY__MAX_REQUEST_SIZE=1048576  →  security.max_request_size
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		c.sources = append(c.sources, &envSource{prefix: prefix})
		return nil
	}
}

// WithConsul loads a key from Consul's KV store, detecting the format
// from the key's extension. The option is skipped silently when
// CONSUL_HTTP_ADDR is unset, so development hosts boot without an
// agent while production environments require one.
//
// Example:
//
//	cfg := config.MustNew(
//	    config.WithFile("config.yaml"),
//	    config.WithConsul("${APP_ENV}/routed.yaml"),
//	)
func WithConsul(key string) Option {
	return func(c *Config) error {
		if os.Getenv("CONSUL_HTTP_ADDR") == "" {
			return nil
		}
		key = os.ExpandEnv(key)
		format, err := detectFormat(key)
		if err != nil {
			return NewError("consul-source", "detect-format", err)
		}
		src, err := newConsulSource(key, format)
		if err != nil {
			return NewError("consul-source", "create-client", err)
		}
		c.sources = append(c.sources, src)
		return nil
	}
}

// WithSchema validates every loaded configuration against a JSON
// Schema before it becomes visible.
func WithSchema(schema []byte) Option {
	return func(c *Config) error {
		compiled, err := compileSchema(schema)
		if err != nil {
			return NewError("json-schema", "compile", err)
		}
		c.schema = compiled
		return nil
	}
}

// WithValidator registers a function run against the merged map on
// every Load. An error rejects the load and keeps the previous values.
func WithValidator(fn func(map[string]any) error) Option {
	return func(c *Config) error {
		if fn == nil {
			return errors.New("validator cannot be nil")
		}
		c.validators = append(c.validators, fn)
		return nil
	}
}

// New builds a Config from the options. Option errors are joined and
// returned together so a broken boot reports every problem at once.
func New(opts ...Option) (*Config, error) {
	c := &Config{values: map[string]any{}}
	var errs error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		errs = errors.Join(errs, opt(c))
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// MustNew builds a Config and panics when any option fails. Use it in
// main() wiring; elsewhere prefer New.
func MustNew(opts ...Option) *Config {
	c, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return c
}

// Load reads every source in order and replaces the visible values
// with the merged result. The swap happens only after every source has
// loaded and every validation passed, so a failing reload leaves the
// previous configuration intact.
func (c *Config) Load(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	merged := map[string]any{}
	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := src.Load(ctx)
		if err != nil {
			return NewError(fmt.Sprintf("source[%d]", i), "load", err)
		}
		if err := mergo.Map(&merged, normalizeKeys(raw), mergo.WithOverride); err != nil {
			return NewError(fmt.Sprintf("source[%d]", i), "merge", err)
		}
	}

	if c.schema != nil {
		if err := c.schema.Validate(merged); err != nil {
			return NewError("json-schema", "validate", err)
		}
	}
	for i, fn := range c.validators {
		if err := fn(merged); err != nil {
			return NewError(fmt.Sprintf("validator[%d]", i), "validate", err)
		}
	}

	c.mu.Lock()
	c.values = merged
	c.mu.Unlock()
	return nil
}

// MustLoad loads or panics. For main() wiring where a broken
// configuration should stop the process.
func (c *Config) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(err)
	}
}

// Values returns a shallow snapshot of the merged configuration.
// Callers must treat nested maps as read-only.
func (c *Config) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Dump writes the merged configuration to w in the given format.
func (c *Config) Dump(w io.Writer, format Format) error {
	data, err := encode(format, c.Values())
	if err != nil {
		return NewError("dump", "encode", err)
	}
	_, err = w.Write(data)
	return err
}

// value resolves a dotted, case-insensitive path. A flat key holding
// the full dotted path wins over nested traversal.
func (c *Config) value(path string) (any, bool) {
	if c == nil || path == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	path = strings.ToLower(path)
	current := c.values
	if v, ok := current[path]; ok {
		return v, true
	}

	segments := strings.Split(path, ".")
	for i, seg := range segments {
		v, ok := current[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		current, ok = v.(map[string]any)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// Get returns the value at path, or nil when the path does not
// resolve.
func (c *Config) Get(path string) any {
	v, _ := c.value(path)
	return v
}

// GetE returns the value at path, or an error when the path does not
// resolve.
func (c *Config) GetE(path string) (any, error) {
	v, ok := c.value(path)
	if !ok {
		return nil, fmt.Errorf("key %q not found", path)
	}
	return v, nil
}

// Has reports whether path resolves to a value.
func (c *Config) Has(path string) bool {
	_, ok := c.value(path)
	return ok
}

// String returns the value at path as a string, or "" when absent.
func (c *Config) String(path string) string { return Get[string](c, path) }

// StringOr returns the string at path, or fallback when absent.
func (c *Config) StringOr(path, fallback string) string { return GetOr(c, path, fallback) }

// Int returns the value at path as an int, or 0 when absent.
func (c *Config) Int(path string) int { return Get[int](c, path) }

// IntOr returns the int at path, or fallback when absent.
func (c *Config) IntOr(path string, fallback int) int { return GetOr(c, path, fallback) }

// Int64 returns the value at path as an int64, or 0 when absent.
func (c *Config) Int64(path string) int64 { return Get[int64](c, path) }

// Bool returns the value at path as a bool, or false when absent.
func (c *Config) Bool(path string) bool { return Get[bool](c, path) }

// BoolOr returns the bool at path, or fallback when absent.
func (c *Config) BoolOr(path string, fallback bool) bool { return GetOr(c, path, fallback) }

// Float64 returns the value at path as a float64, or 0 when absent.
func (c *Config) Float64(path string) float64 { return Get[float64](c, path) }

// Duration returns the value at path as a duration. Bare numbers count
// as seconds; strings may use Go duration syntax ("250ms", "2h").
func (c *Config) Duration(path string) time.Duration { return Get[time.Duration](c, path) }

// DurationOr returns the duration at path, or fallback when absent.
func (c *Config) DurationOr(path string, fallback time.Duration) time.Duration {
	return GetOr(c, path, fallback)
}

// StringSlice returns the value at path as a string slice, or nil when
// absent. Comma-separated strings split into elements.
func (c *Config) StringSlice(path string) []string { return Get[[]string](c, path) }

// StringMap returns the value at path as a string-keyed map, or nil
// when absent.
func (c *Config) StringMap(path string) map[string]any { return Get[map[string]any](c, path) }

// normalizeKeys lowercases map keys recursively so lookups and merges
// are case-insensitive.
func normalizeKeys(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[strings.ToLower(k)] = normalizeKeys(nested)
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// compileSchema parses and compiles a JSON Schema document.
func compileSchema(raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("config.schema.json")
}
