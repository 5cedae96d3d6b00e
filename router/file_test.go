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
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempFile writes contents to a file under the test's temp dir.
func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// TestFileServesContents serves a file with a sniffed content type.
func TestFileServesContents(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "hello.txt", "hello from disk")
	e := MustNew()
	e.GET("/file", func(c *Context) error { return c.File(path) })

	w := perform(e, http.MethodGet, "/file")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello from disk", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

// TestFileMissingIs404 maps open failures to not-found.
func TestFileMissingIs404(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/file", func(c *Context) error {
		return c.File(filepath.Join(t.TempDir(), "nope.txt"))
	})

	w := perform(e, http.MethodGet, "/file")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestFileDirectoryIs404 refuses to serve directories.
func TestFileDirectoryIs404(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := MustNew()
	e.GET("/file", func(c *Context) error { return c.File(dir) })

	w := perform(e, http.MethodGet, "/file")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestFileRangeRequests covers suffix, bounded, and unsatisfiable
// ranges.
func TestFileRangeRequests(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "data.bin", "0123456789")
	e := MustNew()
	e.GET("/file", func(c *Context) error { return c.File(path) })

	get := func(rangeHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/file", nil)
		req.Header.Set("Range", rangeHeader)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		return w
	}

	w := get("bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "0123", w.Body.String())
	assert.Equal(t, "bytes 0-3/10", w.Header().Get("Content-Range"))

	w = get("bytes=-4")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "6789", w.Body.String())
	assert.Equal(t, "bytes 6-9/10", w.Header().Get("Content-Range"))

	w = get("bytes=7-")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "789", w.Body.String())

	w = get("bytes=50-60")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
}

// TestFileIfModifiedSince honors conditional requests.
func TestFileIfModifiedSince(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "cached.txt", "cacheable")
	e := MustNew()
	e.GET("/file", func(c *Context) error { return c.File(path) })

	req := httptest.NewRequest(http.MethodGet, "/file", nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

// TestFileFromFS serves embedded-style filesystems.
func TestFileFromFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"docs/readme.md": &fstest.MapFile{Data: []byte("# readme"), ModTime: time.Now()},
	}
	e := MustNew()
	e.GET("/doc", func(c *Context) error { return c.FileFromFS(fsys, "docs/readme.md") })
	e.GET("/missing", func(c *Context) error { return c.FileFromFS(fsys, "docs/nope.md") })
	e.GET("/invalid", func(c *Context) error { return c.FileFromFS(fsys, "../escape") })

	w := perform(e, http.MethodGet, "/doc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# readme", w.Body.String())

	w = perform(e, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(e, http.MethodGet, "/invalid")
	assert.Equal(t, http.StatusNotFound, w.Code, "invalid fs names stay 404")
}

// TestDownloadSetsDisposition offers the file as an attachment.
func TestDownloadSetsDisposition(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "export.csv", "a,b\n1,2\n")
	e := MustNew()
	e.GET("/default", func(c *Context) error { return c.Download(path) })
	e.GET("/named", func(c *Context) error { return c.Download(path, "january.csv") })

	w := perform(e, http.MethodGet, "/default")
	assert.Equal(t, `attachment; filename=export.csv`, w.Header().Get("Content-Disposition"))

	w = perform(e, http.MethodGet, "/named")
	assert.Equal(t, `attachment; filename=january.csv`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())
}

// TestStaticFS mounts a filesystem under a wildcard route.
func TestStaticFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"css/site.css": &fstest.MapFile{Data: []byte("body{}"), ModTime: time.Now()},
		"app.js":       &fstest.MapFile{Data: []byte("let x=1"), ModTime: time.Now()},
	}
	e := MustNew()
	e.Router().StaticFS("/assets", fsys)

	w := perform(e, http.MethodGet, "/assets/css/site.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())

	w = perform(e, http.MethodGet, "/assets/app.js")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(e, http.MethodGet, "/assets/missing.css")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// HEAD is registered alongside GET.
	w = perform(e, http.MethodHead, "/assets/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

// multipartUpload builds a request carrying one file field.
func multipartUpload(t *testing.T, field, filename, contents string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// TestFormFileUpload reads an uploaded file's bytes and metadata.
func TestFormFileUpload(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.POST("/upload", func(c *Context) error {
		f, err := c.FormFile("avatar")
		if err != nil {
			return err
		}
		assert.Equal(t, "avatar.png", f.Name)
		assert.Equal(t, int64(9), f.Size)
		assert.Equal(t, ".png", f.Ext())

		data, err := f.Bytes()
		if err != nil {
			return err
		}
		return c.Data(http.StatusOK, "application/octet-stream", data)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, multipartUpload(t, "avatar", "avatar.png", "png-bytes"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}

// TestFormFileSanitizesName strips directory components from the
// client-supplied filename.
func TestFormFileSanitizesName(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.POST("/upload", func(c *Context) error {
		f, err := c.FormFile("doc")
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, f.Name)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, multipartUpload(t, "doc", "../../etc/passwd", "x"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "passwd", w.Body.String())
}

// TestUploadedFileSave writes the upload to disk, creating directories.
func TestUploadedFileSave(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "nested", "dir", "saved.txt")
	e := MustNew()
	e.POST("/upload", func(c *Context) error {
		f, err := c.FormFile("doc")
		if err != nil {
			return err
		}
		if err := f.Save(dst); err != nil {
			return err
		}
		return c.NoContent()
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, multipartUpload(t, "doc", "notes.txt", "saved contents"))
	require.Equal(t, http.StatusNoContent, w.Code)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "saved contents", string(data))
}

// TestFormFileMissingField errors when the field is absent.
func TestFormFileMissingField(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.POST("/upload", func(c *Context) error {
		_, err := c.FormFile("absent")
		assert.Error(t, err)
		return c.NoContent()
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, multipartUpload(t, "doc", "x.txt", "x"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
