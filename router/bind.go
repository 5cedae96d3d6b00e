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
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultMultipartMemory caps how much of a multipart form is held in
// memory before spilling to disk.
const defaultMultipartMemory = 32 << 20 // 32 MiB

// Bind decodes the request body into dst, choosing the codec from the
// Content-Type header: JSON, YAML, TOML, MessagePack, or form data. An
// absent Content-Type is treated as JSON. Decoding problems come back
// as KindValidationFailed errors, which the default error handler turns
// into 400 responses.
//
// Example:
//
//	var in CreateUserRequest
//	if err := c.Bind(&in); err != nil {
//	    return err
//	}
func (c *Context) Bind(dst any) error {
	ct := c.Request.Header.Get("Content-Type")
	if ct == "" {
		return c.BindJSON(dst)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return NewError(KindValidationFailed, fmt.Sprintf("malformed Content-Type %q", ct))
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return c.BindJSON(dst)
	case mediaType == "application/yaml" || mediaType == "application/x-yaml" || mediaType == "text/yaml":
		return c.BindYAML(dst)
	case mediaType == "application/toml":
		return c.BindTOML(dst)
	case mediaType == "application/msgpack" || mediaType == "application/x-msgpack":
		return c.BindMsgpack(dst)
	case mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data":
		return c.BindForm(dst)
	default:
		return NewError(KindValidationFailed, fmt.Sprintf("unsupported Content-Type %q", mediaType))
	}
}

// BindJSON decodes the body as JSON into dst.
func (c *Context) BindJSON(dst any) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return bindError("json", err)
	}
	return nil
}

// BindYAML decodes the body as YAML into dst.
func (c *Context) BindYAML(dst any) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(body, dst); err != nil {
		return bindError("yaml", err)
	}
	return nil
}

// BindTOML decodes the body as TOML into dst.
func (c *Context) BindTOML(dst any) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(body, dst); err != nil {
		return bindError("toml", err)
	}
	return nil
}

// BindMsgpack decodes the body as MessagePack into dst.
func (c *Context) BindMsgpack(dst any) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(body, dst); err != nil {
		return bindError("msgpack", err)
	}
	return nil
}

// BindForm decodes url-encoded or multipart form values into dst. Struct
// fields are matched through `form` tags; scalar conversions are lenient,
// so "42" binds to an int field. BindForm consumes the request body.
//
// Example:
//
//	var in struct {
//	    Email string `form:"email"`
//	    Age   int    `form:"age"`
//	}
//	if err := c.BindForm(&in); err != nil {
//	    return err
//	}
func (c *Context) BindForm(dst any) error {
	mediaType, _, _ := mime.ParseMediaType(c.Request.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := c.Request.ParseMultipartForm(defaultMultipartMemory); err != nil {
			return bindError("form", err)
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return bindError("form", err)
	}
	c.bodyConsumed = true

	values := c.Request.Form
	data := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			data[k] = vs[0]
		} else {
			data[k] = vs
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("building form decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return bindError("form", err)
	}
	return nil
}

// bindError wraps a codec failure as a validation error.
func bindError(codec string, err error) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Status:  statusForKind(KindValidationFailed),
		Message: fmt.Sprintf("cannot bind %s body", codec),
		Err:     err,
	}
}
