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
	"errors"
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileSource loads each supported format from disk.
func TestFileSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "yaml",
			file:    "config.yaml",
			content: "server:\n  port: 8080\n  host: localhost",
		},
		{
			name:    "yml extension",
			file:    "config.yml",
			content: "server:\n  port: 8080\n  host: localhost",
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"server": {"port": 8080, "host": "localhost"}}`,
		},
		{
			name:    "toml",
			file:    "config.toml",
			content: "[server]\nport = 8080\nhost = \"localhost\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := TestFile(t, tt.file, []byte(tt.content))
			cfg, err := New(WithFile(path))
			require.NoError(t, err)
			require.NoError(t, cfg.Load(context.Background()))

			assert.Equal(t, 8080, cfg.Int("server.port"))
			assert.Equal(t, "localhost", cfg.String("server.host"))
		})
	}
}

// TestFileSourceMissingFile surfaces the read error at Load time, not
// at construction.
func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := New(WithFile("/nonexistent/config.yaml"))
	require.NoError(t, err)

	err = cfg.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read /nonexistent/config.yaml")
}

// TestFileSourceMalformed rejects syntactically broken content.
func TestFileSourceMalformed(t *testing.T) {
	t.Parallel()

	path := TestFile(t, "broken.json", []byte(`{"server": `))
	cfg, err := New(WithFile(path))
	require.NoError(t, err)

	err = cfg.Load(context.Background())
	require.ErrorContains(t, err, "decode json")
}

// TestContentSourceEmpty treats empty input as an empty tree.
func TestContentSourceEmpty(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatYAML, FormatJSON, FormatTOML} {
		cfg, err := New(WithContent(nil, format))
		require.NoError(t, err)
		require.NoError(t, cfg.Load(context.Background()), "format %s", format)
		assert.Empty(t, cfg.Values())
	}
}

// TestSplitEnvKey covers the double-underscore nesting rules.
func TestSplitEnvKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want []string
	}{
		{"SERVER__PORT", []string{"server", "port"}},
		{"RATE_LIMIT__ENABLED", []string{"rate_limit", "enabled"}},
		{"SECURITY__MAX_REQUEST_SIZE", []string{"security", "max_request_size"}},
		{"A__B__C", []string{"a", "b", "c"}},
		{"DEBUG", []string{"debug"}},
		{"TRAILING__", []string{"trailing"}},
		{"__LEADING", []string{"leading"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			got := splitEnvKey(tt.key)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSetNested overwrites scalar collisions instead of panicking.
func TestSetNested(t *testing.T) {
	t.Parallel()

	m := map[string]any{}
	setNested(m, []string{"server", "port"}, "8080")
	setNested(m, []string{"server", "host"}, "localhost")
	assert.Equal(t, map[string]any{
		"server": map[string]any{"port": "8080", "host": "localhost"},
	}, m)

	setNested(m, []string{"server", "port", "inner"}, "x")
	server := m["server"].(map[string]any)
	assert.Equal(t, map[string]any{"inner": "x"}, server["port"])
}

// fakeKV is an in-memory stand-in for Consul's KV API.
type fakeKV struct {
	pairs map[string][]byte
	err   error
}

func (f *fakeKV) Get(key string, _ *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	value, ok := f.pairs[key]
	if !ok {
		return nil, &api.QueryMeta{}, nil
	}
	return &api.KVPair{Key: key, Value: value}, &api.QueryMeta{}, nil
}

// TestConsulSource reads and decodes a KV pair.
func TestConsulSource(t *testing.T) {
	t.Parallel()

	src := &consulSource{
		kv: &fakeKV{pairs: map[string][]byte{
			"prod/routed.yaml": []byte("server:\n  port: 8080"),
		}},
		key:    "prod/routed.yaml",
		format: FormatYAML,
	}

	cfg, err := New(WithSource(src))
	require.NoError(t, err)
	require.NoError(t, cfg.Load(context.Background()))
	assert.Equal(t, 8080, cfg.Int("server.port"))
}

// TestConsulSourceMissingKey yields an empty tree so optional overrides
// do not fail the load.
func TestConsulSourceMissingKey(t *testing.T) {
	t.Parallel()

	src := &consulSource{
		kv:     &fakeKV{pairs: map[string][]byte{}},
		key:    "prod/routed.yaml",
		format: FormatYAML,
	}

	conf, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conf)
}

// TestConsulSourceError propagates agent failures.
func TestConsulSourceError(t *testing.T) {
	t.Parallel()

	src := &consulSource{
		kv:     &fakeKV{err: errors.New("agent unreachable")},
		key:    "prod/routed.yaml",
		format: FormatYAML,
	}

	_, err := src.Load(context.Background())
	require.ErrorContains(t, err, "agent unreachable")
}

// TestWithConsulSkippedWithoutAddr keeps development hosts bootable
// without an agent.
func TestWithConsulSkippedWithoutAddr(t *testing.T) {
	t.Setenv("CONSUL_HTTP_ADDR", "")

	cfg, err := New(
		WithContent([]byte("server:\n  port: 8080"), FormatYAML),
		WithConsul("prod/routed.yaml"),
	)
	require.NoError(t, err)
	require.NoError(t, cfg.Load(context.Background()))
	assert.Equal(t, 8080, cfg.Int("server.port"))
}
