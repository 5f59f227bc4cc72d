package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/config"
)

// StreamType selects one of the two proctoring feeds of an attempt.
type StreamType string

const (
	StreamCamera StreamType = "camera"
	StreamScreen StreamType = "screen"
)

// ParseStreamType validates a raw stream type string.
func ParseStreamType(raw string) (StreamType, error) {
	switch StreamType(raw) {
	case StreamCamera, StreamScreen:
		return StreamType(raw), nil
	default:
		return "", fmt.Errorf("unknown stream type %q", raw)
	}
}

// RelayService is the proctoring stream relay: a last-value buffer keyed by
// attempt id and stream type. Chunks live in Redis under a TTL equal to the
// staleness window, so entries from students whose browser stopped sending
// expire without any eviction sweep — and the buffer survives across
// service instances. Loss of a frame is acceptable; this is a live view,
// not a recording store.
type RelayService struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewRelayService creates a new RelayService.
func NewRelayService(rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *RelayService {
	return &RelayService{
		rdb: rdb,
		ttl: cfg.StreamTTL,
		log: log.With().Str("component", "relay_service").Logger(),
	}
}

// PushChunk overwrites the latest chunk for (attempt, stream) and refreshes
// its staleness window. No history is retained.
func (s *RelayService) PushChunk(ctx context.Context, attemptID uuid.UUID, stream StreamType, chunk []byte) error {
	if len(chunk) == 0 {
		return fmt.Errorf("empty chunk")
	}
	key := config.CacheKey.AttemptStreamKey(attemptID.String(), string(stream))
	if err := s.rdb.Set(ctx, key, chunk, s.ttl).Err(); err != nil {
		return fmt.Errorf("store chunk: %w", err)
	}
	return nil
}

// PullChunk returns the latest chunk for (attempt, stream), or ErrNotFound
// when nothing was pushed or the last chunk went stale.
func (s *RelayService) PullChunk(ctx context.Context, attemptID uuid.UUID, stream StreamType) ([]byte, error) {
	key := config.CacheKey.AttemptStreamKey(attemptID.String(), string(stream))
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch chunk: %w", err)
	}
	return data, nil
}
