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

package ratelimit

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Strategy is one metering algorithm. The set is closed — TokenBucket,
// SlidingWindow, and Quota — because state layout is coupled to the
// service's storage handling.
type Strategy interface {
	// Kind returns the strategy's configuration name.
	Kind() string

	validate() error

	// consume advances the persisted state by one unit at now. raw is
	// nil on first use; the returned bytes replace it.
	consume(raw []byte, now time.Time) (decision, []byte, error)

	// stateTTL bounds how long an idle state blob is worth keeping.
	stateTTL() time.Duration

	// localRate translates the policy's budget into an in-process
	// limiter for FailoverLocal.
	localRate() (rate.Limit, int)
}

// decision is the result of one consume.
type decision struct {
	allowed    bool
	remaining  float64
	retryAfter time.Duration
}

// TokenBucket meters with a continuously refilling bucket: Capacity
// tokens arrive per RefillInterval, the bucket holds at most
// Capacity × BurstMultiplier, and each request costs one token.
type TokenBucket struct {
	Capacity       int
	RefillInterval time.Duration

	// BurstMultiplier raises the bucket ceiling above Capacity.
	// Zero means 1.0.
	BurstMultiplier float64
}

// Kind implements [Strategy].
func (TokenBucket) Kind() string { return "token_bucket" }

func (s TokenBucket) validate() error {
	if s.Capacity < 1 {
		return fmt.Errorf("token bucket capacity must be at least 1, got %d", s.Capacity)
	}
	if s.RefillInterval <= 0 {
		return fmt.Errorf("token bucket refill interval must be positive, got %v", s.RefillInterval)
	}
	if s.BurstMultiplier != 0 && s.BurstMultiplier < 1 {
		return fmt.Errorf("token bucket burst multiplier must be at least 1, got %v", s.BurstMultiplier)
	}
	return nil
}

func (s TokenBucket) multiplier() float64 {
	if s.BurstMultiplier == 0 {
		return 1
	}
	return s.BurstMultiplier
}

type tokenBucketState struct {
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

func (s TokenBucket) consume(raw []byte, now time.Time) (decision, []byte, error) {
	ceiling := float64(s.Capacity) * s.multiplier()

	// A fresh bucket starts full. Undecodable state heals the same way.
	st := tokenBucketState{Tokens: ceiling, LastRefill: now}
	var prev tokenBucketState
	if len(raw) > 0 && json.Unmarshal(raw, &prev) == nil {
		st = prev
		if elapsed := now.Sub(st.LastRefill); elapsed > 0 {
			st.Tokens += elapsed.Seconds() / s.RefillInterval.Seconds() * float64(s.Capacity)
			if st.Tokens > ceiling {
				st.Tokens = ceiling
			}
		}
		st.LastRefill = now
	}

	var d decision
	if st.Tokens >= 1 {
		st.Tokens--
		d.allowed = true
		d.remaining = st.Tokens
	} else {
		d.remaining = st.Tokens
		d.retryAfter = time.Duration((1 - st.Tokens) * float64(s.RefillInterval) / float64(s.Capacity))
	}

	next, err := json.Marshal(st)
	if err != nil {
		return decision{}, nil, fmt.Errorf("encode token bucket state: %w", err)
	}
	return d, next, nil
}

func (s TokenBucket) stateTTL() time.Duration {
	// An idle bucket is back to full after multiplier × interval, at
	// which point the state says nothing a fresh one would not.
	return time.Duration(2 * s.multiplier() * float64(s.RefillInterval))
}

func (s TokenBucket) localRate() (rate.Limit, int) {
	burst := int(math.Round(float64(s.Capacity) * s.multiplier()))
	return rate.Limit(float64(s.Capacity) / s.RefillInterval.Seconds()), burst
}

// windowSlots fixes the ring granularity: one window spans this many
// counting slots.
const windowSlots = 32

// SlidingWindow meters at most Limit hits within any trailing Window.
// Hits are counted in a ring of Window/32 slots, so aging happens at
// slot granularity.
type SlidingWindow struct {
	Limit  int
	Window time.Duration
}

// Kind implements [Strategy].
func (SlidingWindow) Kind() string { return "sliding_window" }

func (s SlidingWindow) validate() error {
	if s.Limit < 1 {
		return fmt.Errorf("sliding window limit must be at least 1, got %d", s.Limit)
	}
	if s.Window <= 0 {
		return fmt.Errorf("sliding window duration must be positive, got %v", s.Window)
	}
	return nil
}

func (s SlidingWindow) slotDuration() time.Duration {
	d := s.Window / windowSlots
	if d < 1 {
		d = 1
	}
	return d
}

type windowSlot struct {
	Start int64 `json:"start"` // unix nanoseconds, slot-aligned
	Count int   `json:"count"`
}

type slidingWindowState struct {
	Slots []windowSlot `json:"slots"`
}

func (s SlidingWindow) consume(raw []byte, now time.Time) (decision, []byte, error) {
	var st slidingWindowState
	if len(raw) > 0 && json.Unmarshal(raw, &st) != nil {
		st = slidingWindowState{}
	}

	// A slot's hits age out once its start leaves the trailing window.
	cutoff := now.Add(-s.Window).UnixNano()
	kept := st.Slots[:0]
	total := 0
	for _, slot := range st.Slots {
		if slot.Start > cutoff {
			kept = append(kept, slot)
			total += slot.Count
		}
	}
	st.Slots = kept

	var d decision
	if total >= s.Limit {
		d.retryAfter = time.Duration(st.Slots[0].Start - cutoff)
	} else {
		slotStart := now.Truncate(s.slotDuration()).UnixNano()
		if n := len(st.Slots); n > 0 && st.Slots[n-1].Start >= slotStart {
			// Clock regressions land in the newest slot.
			st.Slots[n-1].Count++
		} else {
			st.Slots = append(st.Slots, windowSlot{Start: slotStart, Count: 1})
		}
		d.allowed = true
		d.remaining = float64(s.Limit - total - 1)
	}

	next, err := json.Marshal(st)
	if err != nil {
		return decision{}, nil, fmt.Errorf("encode sliding window state: %w", err)
	}
	return d, next, nil
}

func (s SlidingWindow) stateTTL() time.Duration {
	return 2 * s.Window
}

func (s SlidingWindow) localRate() (rate.Limit, int) {
	return rate.Limit(float64(s.Limit) / s.Window.Seconds()), s.Limit
}

// Quota meters at most Limit hits per fixed Period. The count resets
// when now crosses a period boundary; boundaries stay aligned to the
// first-seen period start.
type Quota struct {
	Limit  int
	Period time.Duration
}

// Kind implements [Strategy].
func (Quota) Kind() string { return "quota" }

func (s Quota) validate() error {
	if s.Limit < 1 {
		return fmt.Errorf("quota limit must be at least 1, got %d", s.Limit)
	}
	if s.Period <= 0 {
		return fmt.Errorf("quota period must be positive, got %v", s.Period)
	}
	return nil
}

type quotaState struct {
	Count       int       `json:"count"`
	PeriodStart time.Time `json:"period_start"`
}

func (s Quota) consume(raw []byte, now time.Time) (decision, []byte, error) {
	st := quotaState{PeriodStart: now}
	var prev quotaState
	if len(raw) > 0 && json.Unmarshal(raw, &prev) == nil {
		st = prev
		if elapsed := now.Sub(st.PeriodStart); elapsed >= s.Period {
			st.PeriodStart = st.PeriodStart.Add(elapsed.Truncate(s.Period))
			st.Count = 0
		}
	}

	var d decision
	if st.Count >= s.Limit {
		d.retryAfter = st.PeriodStart.Add(s.Period).Sub(now)
	} else {
		st.Count++
		d.allowed = true
		d.remaining = float64(s.Limit - st.Count)
	}

	next, err := json.Marshal(st)
	if err != nil {
		return decision{}, nil, fmt.Errorf("encode quota state: %w", err)
	}
	return d, next, nil
}

func (s Quota) stateTTL() time.Duration {
	return 2 * s.Period
}

func (s Quota) localRate() (rate.Limit, int) {
	return rate.Limit(float64(s.Limit) / s.Period.Seconds()), s.Limit
}
