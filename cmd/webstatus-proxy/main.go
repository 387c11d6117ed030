// webstatus-proxy exposes the features search endpoint over a small
// HTTP service: /query streams matching records through the resilient
// client, /metrics serves Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/webstatus-tools/webstatus-client/internal/config"
	"github.com/webstatus-tools/webstatus-client/pkg/client"
	"github.com/webstatus-tools/webstatus-client/pkg/logging"
	"github.com/webstatus-tools/webstatus-client/pkg/query"
)

func main() {
	configPath := flag.String("config", os.Getenv("WEBSTATUS_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		fallback := logging.NewLogger("webstatus-proxy")
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("webstatus-proxy")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Rate limit holdoff state shared via Redis")
	}

	retry := client.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.Timeout = cfg.Timeout.Std()

	webstatus, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Retry:     retry,
		Redis:     redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create webstatus client")
	}
	defer webstatus.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/query", queryHandler(webstatus, logger))

	logger.Info().
		Str("listen", cfg.Listen).
		Str("base_url", cfg.BaseURL).
		Msg("Starting webstatus proxy")

	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler reports readiness. With Redis configured the holdoff
// store must answer; without it the proxy is always ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	}
}

// queryResponse is the /query wire shape.
type queryResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Records []json.RawMessage `json:"records"`
}

// queryHandler walks the full traversal for the q parameter and
// returns every matching record. The upstream traversal inherits the
// request context, so a dropped proxy connection cancels it.
func queryHandler(webstatus *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filter := r.URL.Query().Get("q")

		records, err := webstatus.CollectRecords(r.Context(), query.Raw(filter))
		if err != nil {
			logger.Warn().Err(err).Str("filter", filter).Msg("Query failed")
			http.Error(w, "upstream query failed: "+err.Error(), upstreamStatus(err))
			return
		}

		resp := queryResponse{
			Query:   filter,
			Count:   len(records),
			Records: make([]json.RawMessage, len(records)),
		}
		for i, rec := range records {
			resp.Records[i] = json.RawMessage(rec)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// upstreamStatus maps a client error onto the proxy's response status:
// upstream 4xx pass through, everything else is a bad gateway.
func upstreamStatus(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
