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

package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fileEnvelope is the on-disk session format.
type fileEnvelope struct {
	ExpiresAt time.Time      `json:"expires_at"`
	Values    map[string]any `json:"values"`
}

// FileStore writes one JSON file per session under a directory. The
// cookie carries only the session ID; IDs are validated as UUIDs
// before they touch the filesystem.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the directory if needed and returns a store
// writing into it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("sessions: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sessions: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load implements Store. Unparseable IDs, missing files, corrupted
// envelopes, and expired sessions all come back as no session; the
// latter two also remove the file.
func (s *FileStore) Load(_ context.Context, cookieValue string) (string, map[string]any, error) {
	if _, err := uuid.Parse(cookieValue); err != nil {
		return "", nil, nil
	}
	raw, err := os.ReadFile(s.path(cookieValue))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("sessions: read %s: %w", cookieValue, err)
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || !s.now().Before(envelope.ExpiresAt) {
		os.Remove(s.path(cookieValue))
		return "", nil, nil
	}
	if envelope.Values == nil {
		envelope.Values = map[string]any{}
	}
	return cookieValue, envelope.Values, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, id string, values map[string]any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(fileEnvelope{
		ExpiresAt: s.now().Add(ttl),
		Values:    values,
	})
	if err != nil {
		return "", fmt.Errorf("sessions: encode %s: %w", id, err)
	}
	if err := os.WriteFile(s.path(id), raw, 0o600); err != nil {
		return "", fmt.Errorf("sessions: write %s: %w", id, err)
	}
	return id, nil
}

// Destroy implements Store.
func (s *FileStore) Destroy(_ context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessions: remove %s: %w", id, err)
	}
	return nil
}

// GC removes expired session files. The store never sweeps on its own;
// call this at boot or on a timer.
func (s *FileStore) GC(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("sessions: scan %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var envelope fileEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && s.now().Before(envelope.ExpiresAt) {
			continue
		}
		os.Remove(path)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
