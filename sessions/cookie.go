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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxCookieBytes is the largest cookie value browsers reliably keep.
const maxCookieBytes = 4096

// cookiePayload is the serialized session carried by the cookie.
type cookiePayload struct {
	ID        string         `json:"id"`
	ExpiresAt int64          `json:"exp"`
	Values    map[string]any `json:"values"`
}

// CookieStore keeps the whole session in the cookie itself, so no
// server-side storage is needed. Payloads are HMAC-SHA256 signed, or
// AES-GCM encrypted when encrypt is set. Keys rotate: the first key
// writes, every key reads, so old cookies stay valid while a new key
// rolls out.
type CookieStore struct {
	keys    [][]byte
	aeads   []cipher.AEAD
	encrypt bool
	now     func() time.Time
}

// NewCookieStore builds a cookie store from the signing keys, newest
// first. At least one key is required.
func NewCookieStore(keys []string, encrypt bool) (*CookieStore, error) {
	if len(keys) == 0 {
		return nil, errors.New("sessions: cookie store needs at least one key")
	}
	s := &CookieStore{encrypt: encrypt, now: time.Now}
	for i, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("sessions: key %d is empty", i)
		}
		s.keys = append(s.keys, []byte(key))
		if !encrypt {
			continue
		}
		derived := sha256.Sum256([]byte(key))
		block, err := aes.NewCipher(derived[:])
		if err != nil {
			return nil, fmt.Errorf("sessions: derive key %d: %w", i, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("sessions: derive key %d: %w", i, err)
		}
		s.aeads = append(s.aeads, aead)
	}
	return s, nil
}

// Load implements Store. Tampered, expired, and malformed cookies all
// come back as no session; client data never raises an error.
func (s *CookieStore) Load(_ context.Context, cookieValue string) (string, map[string]any, error) {
	var raw []byte
	if s.encrypt {
		raw = s.open(cookieValue)
	} else {
		raw = s.verify(cookieValue)
	}
	if raw == nil {
		return "", nil, nil
	}

	var payload cookiePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, nil
	}
	if payload.ID == "" || s.now().Unix() >= payload.ExpiresAt {
		return "", nil, nil
	}
	if payload.Values == nil {
		payload.Values = map[string]any{}
	}
	return payload.ID, payload.Values, nil
}

// Save implements Store. The returned cookie value is the session
// itself; oversized payloads are rejected rather than silently
// truncated by the browser.
func (s *CookieStore) Save(_ context.Context, id string, values map[string]any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(cookiePayload{
		ID:        id,
		ExpiresAt: s.now().Add(ttl).Unix(),
		Values:    values,
	})
	if err != nil {
		return "", fmt.Errorf("sessions: encode payload: %w", err)
	}

	var value string
	if s.encrypt {
		value, err = s.seal(raw)
		if err != nil {
			return "", err
		}
	} else {
		value = s.sign(raw)
	}
	if len(value) > maxCookieBytes {
		return "", fmt.Errorf("sessions: cookie payload is %d bytes, above the %d byte limit", len(value), maxCookieBytes)
	}
	return value, nil
}

// Destroy implements Store. There is no server-side state; expiring
// the cookie is the manager's job.
func (s *CookieStore) Destroy(context.Context, string) error {
	return nil
}

// sign encodes raw and appends an HMAC over the encoded form, keyed
// with the newest key.
func (s *CookieStore) sign(raw []byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, s.keys[0])
	mac.Write([]byte(encoded))
	return encoded + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify checks the HMAC against every key and returns the payload
// bytes, or nil when no key matches.
func (s *CookieStore) verify(value string) []byte {
	encoded, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil
	}
	for _, key := range s.keys {
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(encoded))
		if hmac.Equal(got, mac.Sum(nil)) {
			raw, err := base64.RawURLEncoding.DecodeString(encoded)
			if err != nil {
				return nil
			}
			return raw
		}
	}
	return nil
}

// seal encrypts raw with the newest key, prefixing the random nonce.
func (s *CookieStore) seal(raw []byte) (string, error) {
	aead := s.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sessions: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, raw, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// open tries every key against the ciphertext and returns the payload
// bytes, or nil when none decrypts it.
func (s *CookieStore) open(value string) []byte {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	for _, aead := range s.aeads {
		if len(sealed) < aead.NonceSize() {
			continue
		}
		nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
		if raw, err := aead.Open(nil, nonce, ciphertext, nil); err == nil {
			return raw
		}
	}
	return nil
}

var _ Store = (*CookieStore)(nil)
