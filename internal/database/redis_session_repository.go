package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisSessionRepository implements SessionRepository.
var _ interfaces.SessionRepository = (*redisSessionRepository)(nil)

type redisSessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSessionRepository creates a new Redis-backed SessionRepository.
// Sessions live under session:{id} as JSON with a TTL refreshed on every save.
func NewRedisSessionRepository(client *redis.Client, logger *zap.Logger) interfaces.SessionRepository {
	return &redisSessionRepository{
		client: client,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("session:%s", id.String())
}

// Save persists the session, refreshing its TTL.
func (r *redisSessionRepository) Save(ctx context.Context, session *models.PlayerSession, ttl time.Duration) error {
	session.UpdatedAt = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		r.logger.Error("Failed to marshal session", zap.String("sessionID", session.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		r.logger.Error("Failed to save session in redis", zap.String("sessionID", session.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to save session %s in redis: %w", session.ID, err)
	}
	r.logger.Debug("Session saved",
		zap.String("sessionID", session.ID.String()),
		zap.String("nodeKey", session.CurrentNodeKey),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Get retrieves a session by ID.
func (r *redisSessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.PlayerSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Session not found in redis", zap.String("sessionID", id.String()))
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to get session from redis", zap.String("sessionID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get session %s from redis: %w", id, err)
	}

	session := &models.PlayerSession{}
	if err := json.Unmarshal(data, session); err != nil {
		r.logger.Error("Failed to unmarshal session data from redis", zap.String("sessionID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("corrupted session data in redis for %s: %w", id, err)
	}
	return session, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *redisSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete session from redis", zap.String("sessionID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to delete session %s from redis: %w", id, err)
	}
	return nil
}
