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

package cache

import (
	"context"
	"time"
)

// Repository is the storage contract consumed by the rate-limit service
// and sessions. Implementations must be safe for concurrent use.
//
// Get distinguishes "absent" (false, nil error) from "backend failed"
// (non-nil error): callers such as the rate-limit failover depend on
// seeing backend errors rather than silent misses.
type Repository interface {
	// Get returns the value stored under key. The boolean reports
	// whether the key was present.
	Get(ctx context.Context, key string) (any, bool, error)

	// Put stores value under key. A ttl of zero or less means no
	// per-entry expiry beyond the store's own policy.
	Put(ctx context.Context, key string, value any, ttl time.Duration) error

	// Increment atomically adds by to the integer counter under key,
	// creating it at zero first, and returns the new value.
	Increment(ctx context.Context, key string, by int64) (int64, error)

	// Forget removes key. Removing an absent key is not an error.
	Forget(ctx context.Context, key string) error
}
