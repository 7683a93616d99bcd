package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"global-chat/internal/database"

	"github.com/redis/go-redis/v9"
)

const (
	onlinePeersKey  = "chat:online_peers"
	peerStatusTTL   = 5 * time.Minute
	rateLimitPrefix = "chat:rate_limit"
)

// RedisService mirrors relay presence into Redis and backs handshake rate
// limiting. It never stores message content.
type RedisService struct {
	client *database.RedisClient
	log    *slog.Logger
}

func NewRedisService(client *database.RedisClient, log *slog.Logger) *RedisService {
	return &RedisService{
		client: client,
		log:    log,
	}
}

func peerStatusKey(peerID string) string {
	return fmt.Sprintf("chat:peer:%s:status", peerID)
}

// =============================================================================
// Peer Presence
// =============================================================================

func (r *RedisService) SetPeerOnline(ctx context.Context, peerID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SAdd(ctx, onlinePeersKey, peerID)
	pipe.HSet(ctx, peerStatusKey(peerID), map[string]interface{}{
		"status":       "online",
		"connected_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, peerStatusKey(peerID), peerStatusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set peer online: %w", err)
	}

	r.log.Debug("Peer set to online", "peerID", peerID)
	return nil
}

func (r *RedisService) SetPeerOffline(ctx context.Context, peerID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SRem(ctx, onlinePeersKey, peerID)
	pipe.Del(ctx, peerStatusKey(peerID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set peer offline: %w", err)
	}

	r.log.Debug("Peer set to offline", "peerID", peerID)
	return nil
}

func (r *RedisService) IsPeerOnline(ctx context.Context, peerID string) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlinePeersKey, peerID).Result()
}

func (r *RedisService) OnlinePeers(ctx context.Context) (int64, error) {
	return r.client.GetClient().SCard(ctx, onlinePeersKey).Result()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit records one hit for key and reports whether the hit is
// within limit for the sliding window.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()
	fullKey := rateLimitPrefix + ":" + key

	pipe := r.client.GetClient().Pipeline()

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))

	// Count current entries
	count := pipe.ZCard(ctx, fullKey)

	// Add current request
	pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})

	pipe.Expire(ctx, fullKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("check rate limit: %w", err)
	}

	return count.Val() < int64(limit), nil
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
