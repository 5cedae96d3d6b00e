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
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File serves a file from the local filesystem in direct mode with full
// range-request support: bytes=a-b, bytes=a-, and bytes=-n produce 206
// with a Content-Range header, unsatisfiable ranges produce 416, and
// If-Modified-Since is honored with second precision. Missing files and
// directories surface as 404 through the engine's error handler.
//
// Example:
//
//	e.GET("/report", func(c *router.Context) error {
//	    return c.File("./data/report.pdf")
//	})
func (c *Context) File(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewError(KindNotFound, http.StatusText(http.StatusNotFound))
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return NewError(KindNotFound, http.StatusText(http.StatusNotFound))
	}

	http.ServeContent(c.Response.directWriter(), c.Request, st.Name(), st.ModTime(), f)
	return nil
}

// FileFromFS serves name from fsys, typically an embed.FS. Files that
// implement io.ReadSeeker stream with range support; others are read
// into memory first.
func (c *Context) FileFromFS(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return NewError(KindNotFound, http.StatusText(http.StatusNotFound))
		}
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if st.IsDir() {
		return NewError(KindNotFound, http.StatusText(http.StatusNotFound))
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		rs = bytes.NewReader(data)
	}

	http.ServeContent(c.Response.directWriter(), c.Request, st.Name(), st.ModTime(), rs)
	return nil
}

// Download serves path as an attachment. The optional filename argument
// overrides the name offered to the client; it defaults to the file's
// base name.
//
// Example:
//
//	return c.Download("./exports/2025-01.csv", "january.csv")
func (c *Context) Download(path string, filename ...string) error {
	name := filepath.Base(path)
	if len(filename) > 0 && filename[0] != "" {
		name = filename[0]
	}
	c.Response.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return c.File(path)
}

// Static serves the files under root at the given URL prefix. GET and
// HEAD routes are registered, per RFC 7231's requirement that HEAD be
// supported wherever GET is.
//
// Example:
//
//	e.Router().Static("/assets", "./public")
func (r *Router) Static(prefix, root string) {
	r.StaticFS(prefix, os.DirFS(root))
}

// StaticFS is Static over an fs.FS, for embedded assets.
//
// Example:
//
//	//go:embed public
//	var public embed.FS
//	e.Router().StaticFS("/assets", public)
func (r *Router) StaticFS(prefix string, fsys fs.FS) {
	if prefix == "" {
		panic("router: static prefix cannot be empty")
	}
	pattern := strings.TrimSuffix(prefix, "/") + "/{*filepath}"
	handler := func(c *Context) error {
		return c.FileFromFS(fsys, c.Param("filepath"))
	}
	r.GET(pattern, handler)
	r.Handle(http.MethodHead, pattern, handler)
}

// UploadedFile is one file received through a multipart form. The name
// is reduced to its base component, so a crafted filename cannot climb
// out of the destination directory.
type UploadedFile struct {
	// Name is the client-supplied filename with directory components
	// stripped.
	Name string

	// Size is the file size in bytes.
	Size int64

	// ContentType is the MIME type declared by the client, defaulting
	// to application/octet-stream.
	ContentType string

	header *multipart.FileHeader
}

func newUploadedFile(fh *multipart.FileHeader) *UploadedFile {
	name := filepath.Base(fh.Filename)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &UploadedFile{
		Name:        name,
		Size:        fh.Size,
		ContentType: contentType,
		header:      fh,
	}
}

// FormFile returns the first uploaded file for the given form field.
//
// Example:
//
//	avatar, err := c.FormFile("avatar")
//	if err != nil {
//	    return router.NewError(router.KindValidationFailed, "avatar required")
//	}
//	if err := avatar.Save("./uploads/" + uuid.NewString() + avatar.Ext()); err != nil {
//	    return err
//	}
func (c *Context) FormFile(field string) (*UploadedFile, error) {
	_, fh, err := c.Request.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("form file %q: %w", field, err)
	}
	return newUploadedFile(fh), nil
}

// Open returns a reader over the uploaded contents. The caller closes
// it. Use Open instead of Bytes for large uploads.
func (f *UploadedFile) Open() (io.ReadCloser, error) {
	src, err := f.header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening uploaded file: %w", err)
	}
	return src, nil
}

// Bytes reads the whole upload into memory.
func (f *UploadedFile) Bytes() ([]byte, error) {
	src, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// Save writes the upload to dst, creating parent directories as needed.
func (f *UploadedFile) Save(dst string) (err error) {
	dst = filepath.Clean(dst)

	src, err := f.header.Open()
	if err != nil {
		return fmt.Errorf("opening uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing uploaded file: %w", cerr)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() {
		// Close flushes buffered data; treat its failure as a failed save.
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// Ext returns the filename extension including the dot, or "".
func (f *UploadedFile) Ext() string {
	return filepath.Ext(f.Name)
}
