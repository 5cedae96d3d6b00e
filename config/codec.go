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
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// Format identifies a configuration encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

func (f Format) valid() bool {
	switch f {
	case FormatYAML, FormatJSON, FormatTOML:
		return true
	}
	return false
}

// extensionFormats maps file extensions to formats.
var extensionFormats = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
	".toml": FormatTOML,
}

// detectFormat infers the format from a path's extension.
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("cannot detect format from extension %q", ext)
}

// decode parses data in the given format into a string-keyed map.
// Empty input yields an empty map.
func decode(f Format, data []byte) (map[string]any, error) {
	var out map[string]any
	var err error
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &out)
	case FormatJSON:
		if len(data) > 0 {
			err = json.Unmarshal(data, &out)
		}
	case FormatTOML:
		err = toml.Unmarshal(data, &out)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// encode renders v in the given format.
func encode(f Format, v any) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatTOML:
		return toml.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}
