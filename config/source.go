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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/consul/api"
)

// Source loads configuration key-value pairs from one location.
// Implementations must be safe to call concurrently.
type Source interface {
	// Load returns the source's configuration tree. Returning an
	// error rejects the whole Load and keeps the previous values.
	Load(ctx context.Context) (map[string]any, error)
}

// fileSource reads a file from disk on every Load, so reloading picks
// up edits.
type fileSource struct {
	path   string
	format Format
}

func (s *fileSource) Load(context.Context) (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decode(s.format, data)
}

// contentSource serves a fixed byte slice.
type contentSource struct {
	data   []byte
	format Format
}

func (s *contentSource) Load(context.Context) (map[string]any, error) {
	return decode(s.format, s.data)
}

// envSource reads prefixed environment variables. After the prefix is
// stripped, double underscores separate nesting levels and single
// underscores stay part of the key, so keys like rate_limit.enabled
// remain addressable.
type envSource struct {
	prefix string
}

func (s *envSource) Load(context.Context) (map[string]any, error) {
	conf := map[string]any{}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, s.prefix) {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(kv, s.prefix), "=")
		if !ok {
			continue
		}
		segments := splitEnvKey(key)
		if len(segments) == 0 {
			continue
		}
		setNested(conf, segments, strings.TrimSpace(value))
	}
	return conf, nil
}

// splitEnvKey lowercases an environment key and splits it on double
// underscores, dropping empty segments.
func splitEnvKey(key string) []string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(key)), "__")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setNested walks segments creating intermediate maps, overwriting
// scalar collisions, and sets the final value.
func setNested(m map[string]any, segments []string, value string) {
	current := m
	last := len(segments) - 1
	for _, seg := range segments[:last] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[seg] = next
		}
		current = next
	}
	current[segments[last]] = value
}

// consulKV is the Consul read surface, narrowed so tests can stand in
// for a live agent.
type consulKV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// consulSource reads one key from Consul's KV store. The client is
// configured through the standard CONSUL_HTTP_ADDR and
// CONSUL_HTTP_TOKEN environment variables.
type consulSource struct {
	kv     consulKV
	key    string
	format Format
}

func newConsulSource(key string, format Format) (*consulSource, error) {
	client, err := api.NewClient(api.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return &consulSource{kv: client.KV(), key: key, format: format}, nil
}

// Load fetches the key. A missing key yields an empty map so optional
// overrides do not fail the load.
func (s *consulSource) Load(ctx context.Context) (map[string]any, error) {
	pair, _, err := s.kv.Get(s.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul get %s: %w", s.key, err)
	}
	if pair == nil {
		return map[string]any{}, nil
	}
	return decode(s.format, pair.Value)
}
