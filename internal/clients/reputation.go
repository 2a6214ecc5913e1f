// Package clients holds the HTTP clients of the external verification
// services.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"attendance-guard/internal/tamper"
)

// LookupRecorder is told which layer answered a reputation lookup
type LookupRecorder interface {
	RecordReputationLookup(layer string)
}

// ReputationClient queries the IP reputation service. Answers are cached
// in process and, when a redis client is set, shared across instances.
// Concurrent lookups of the same IP share one request.
type ReputationClient struct {
	http     *resty.Client
	local    *cache.Cache
	shared   *redis.Client
	ttl      time.Duration
	group    singleflight.Group
	recorder LookupRecorder
	logger   *zap.Logger
}

// ReputationOption customizes a ReputationClient
type ReputationOption func(*ReputationClient)

// WithSharedCache stores answers in redis as well
func WithSharedCache(client *redis.Client) ReputationOption {
	return func(c *ReputationClient) { c.shared = client }
}

// WithLookupRecorder reports cache layer hits
func WithLookupRecorder(r LookupRecorder) ReputationOption {
	return func(c *ReputationClient) { c.recorder = r }
}

// WithAPIKey sends the key in the X-API-Key header
func WithAPIKey(key string) ReputationOption {
	return func(c *ReputationClient) {
		if key != "" {
			c.http.SetHeader("X-API-Key", key)
		}
	}
}

// NewReputationClient creates a client for the service at baseURL
func NewReputationClient(baseURL string, ttl time.Duration, logger *zap.Logger, opts ...ReputationOption) *ReputationClient {
	c := &ReputationClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(5 * time.Second),
		local:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func reputationKey(ip string) string {
	return fmt.Sprintf("attendance-guard:ip-reputation:%s", ip)
}

// CheckIP returns the reputation of ip
func (c *ReputationClient) CheckIP(ctx context.Context, ip string) (*tamper.IPReputation, error) {
	if v, ok := c.local.Get(ip); ok {
		c.record("memory")
		rep := v.(tamper.IPReputation)
		return &rep, nil
	}

	if rep, ok := c.fromShared(ctx, ip); ok {
		c.record("redis")
		c.local.Set(ip, *rep, cache.DefaultExpiration)
		return rep, nil
	}

	v, err, _ := c.group.Do(ip, func() (any, error) {
		return c.fetch(ctx, ip)
	})
	if err != nil {
		return nil, err
	}
	rep := v.(tamper.IPReputation)
	c.record("remote")

	c.local.Set(ip, rep, cache.DefaultExpiration)
	c.toShared(ctx, ip, rep)
	return &rep, nil
}

func (c *ReputationClient) fetch(ctx context.Context, ip string) (tamper.IPReputation, error) {
	var rep tamper.IPReputation
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ip", ip).
		SetResult(&rep).
		Get("/api/ip/{ip}")
	if err != nil {
		return rep, fmt.Errorf("failed to query ip reputation: %w", err)
	}
	if resp.IsError() {
		return rep, fmt.Errorf("ip reputation failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return rep, nil
}

func (c *ReputationClient) fromShared(ctx context.Context, ip string) (*tamper.IPReputation, bool) {
	if c.shared == nil {
		return nil, false
	}
	raw, err := c.shared.Get(ctx, reputationKey(ip)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Reputation cache read failed", zap.String("ip", ip), zap.Error(err))
		}
		return nil, false
	}
	var rep tamper.IPReputation
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, false
	}
	return &rep, true
}

func (c *ReputationClient) toShared(ctx context.Context, ip string, rep tamper.IPReputation) {
	if c.shared == nil {
		return
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, reputationKey(ip), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Reputation cache write failed", zap.String("ip", ip), zap.Error(err))
	}
}

func (c *ReputationClient) record(layer string) {
	if c.recorder != nil {
		c.recorder.RecordReputationLookup(layer)
	}
}
