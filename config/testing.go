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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockSource is a canned Source for tests.
type mockSource struct {
	conf map[string]any
	err  error
}

func (m *mockSource) Load(context.Context) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.conf, nil
}

// TestSource returns a Source serving the given map.
func TestSource(conf map[string]any) Source {
	return &mockSource{conf: conf}
}

// TestSourceWithError returns a Source whose Load always fails.
func TestSourceWithError(err error) Source {
	return &mockSource{err: err}
}

// TestConfigLoaded builds and loads a Config around the given map,
// failing the test on any error.
func TestConfigLoaded(t *testing.T, conf map[string]any) *Config {
	t.Helper()
	c, err := New(WithSource(TestSource(conf)))
	require.NoError(t, err, "create test config")
	require.NoError(t, c.Load(context.Background()), "load test config")
	return c
}

// TestFile writes content under a temp dir and returns its path. The
// name's extension selects the format when the path is used with
// WithFile.
func TestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600), "write test config file")
	return path
}
