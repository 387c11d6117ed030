// Package ratelimit implements shared 429 holdoff tracking and request
// gating. When the search endpoint answers 429 Too Many Requests, the
// Retry-After value (or a fallback hold) is stored in Redis so every
// process sharing the state backs off together instead of piling on.
package ratelimit

import (
	"time"
)

// Redis keys for holdoff state storage.
const (
	RedisKeyHoldUntil  = "webstatus:rate_limit:hold_until"
	RedisKeyLastUpdate = "webstatus:rate_limit:last_update"
)

// Thresholds for holdoff decisions.
const (
	// HoldThresholdBlock fails requests fast when the remaining holdoff
	// exceeds this value. Longer holds are surfaced as errors rather
	// than silently stalling the caller.
	HoldThresholdBlock = 2 * time.Second

	// HoldFallback is the holdoff applied when a 429 carries no
	// parseable Retry-After header.
	HoldFallback = 10 * time.Second
)

// RateLimitState represents the current shared holdoff state.
// It is shared across all client instances via Redis.
type RateLimitState struct {
	// HoldUntil is the instant requests may resume.
	// Derived from the Retry-After header of the last 429 response.
	HoldUntil time.Time `json:"hold_until"`

	// LastUpdate is the timestamp when this state was last written.
	// Used to detect stale holdoff data.
	LastUpdate time.Time `json:"last_update"`

	// IsHolding indicates whether the holdoff is still in effect.
	// True when HoldUntil lies in the future.
	IsHolding bool `json:"is_holding"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// RemainingHold returns the duration until requests may resume.
// Returns 0 if the holdoff has already expired.
func (s *RateLimitState) RemainingHold() time.Duration {
	remaining := time.Until(s.HoldUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedsBlock returns true if requests should fail fast instead of
// waiting out the holdoff.
func (s *RateLimitState) NeedsBlock() bool {
	return s.RemainingHold() > HoldThresholdBlock
}

// NeedsPause returns true if the remaining holdoff is short enough to
// wait out inside the request.
func (s *RateLimitState) NeedsPause() bool {
	remaining := s.RemainingHold()
	return remaining > 0 && remaining <= HoldThresholdBlock
}

// UpdateHold updates the IsHolding field from the current clock.
func (s *RateLimitState) UpdateHold() {
	s.IsHolding = s.RemainingHold() > 0
}
