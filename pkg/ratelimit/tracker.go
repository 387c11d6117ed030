package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for holdoff tracking.
var (
	holdSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webstatus_rate_limit_hold_seconds",
		Help: "Holdoff duration set by the most recent 429 response",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webstatus_rate_limit_blocks_total",
		Help: "Total number of requests blocked by an active holdoff",
	})

	pausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webstatus_rate_limit_pauses_total",
		Help: "Total number of requests paused until a holdoff expired",
	})
)

// Tracker monitors 429 holdoffs and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new holdoff tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current holdoff state from Redis.
// Returns a clean state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	holdUnix, err := t.redis.Get(ctx, RedisKeyHoldUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get hold until: %w", err)
	}

	// No state in Redis means no holdoff has ever been recorded.
	if err == redis.Nil {
		t.logger.Debug().Msg("No holdoff state in Redis, returning clean state")
		return &RateLimitState{LastUpdate: time.Now()}, nil
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &RateLimitState{
		HoldUntil:  time.Unix(holdUnix, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHold()

	return state, nil
}

// UpdateFromResponse inspects one response and records a holdoff in
// Redis when the endpoint answered 429. Other status codes leave the
// state untouched.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	now := time.Now()
	hold, ok := parseRetryAfter(headers.Get("Retry-After"), now)
	if !ok {
		hold = HoldFallback
	}

	state := &RateLimitState{
		HoldUntil:  now.Add(hold),
		LastUpdate: now,
	}
	state.UpdateHold()

	// Store in Redis atomically
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyHoldUntil, state.HoldUntil.Unix(), 0)

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store holdoff state in redis: %w", err)
	}

	// Update Prometheus metrics
	holdSeconds.Set(hold.Seconds())

	if state.NeedsBlock() {
		t.logger.Error().
			Dur("hold", hold).
			Time("hold_until", state.HoldUntil).
			Msg("Rate limited by search endpoint - requests will be blocked")
	} else {
		t.logger.Warn().
			Dur("hold", hold).
			Time("hold_until", state.HoldUntil).
			Msg("Rate limited by search endpoint - requests will pause")
	}

	return nil
}

// ShouldAllowRequest checks whether a request may proceed under the
// current holdoff state. Returns false when the remaining holdoff is
// long enough to block. Short holdoffs are waited out here before the
// request is allowed; the wait respects ctx.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get holdoff state: %w", err)
	}

	// Long holdoff: fail fast
	if state.NeedsBlock() {
		t.logger.Error().
			Dur("remaining_hold", state.RemainingHold()).
			Msg("Rate limit holdoff active - blocking request")

		blocksTotal.Inc()
		return false, nil
	}

	// Short holdoff: wait it out
	if state.NeedsPause() {
		wait := state.RemainingHold()
		t.logger.Warn().
			Dur("wait", wait).
			Msg("Rate limit holdoff ending - pausing request")

		pausesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}

	// No holdoff: allow request
	return true, nil
}

// parseRetryAfter reads a Retry-After value in either of its two wire
// forms, delay seconds or an HTTP-date, and returns the hold duration.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		hold := at.Sub(now)
		if hold < 0 {
			hold = 0
		}
		return hold, true
	}

	return 0, false
}
