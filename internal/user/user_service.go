package user

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"discussion-service/internal/models"
	"discussion-service/internal/realtime"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	identityCacheTTL  = 10 * time.Minute
	presenceTTL       = 2 * time.Minute
	identityKeyPrefix = "identity:"
	presenceKeyPrefix = "user:online:"
)

// Service resolves external identities and tracks presence. It implements
// realtime.IdentityResolver and realtime.Presence.
type Service struct {
	repo  UserRepository
	redis *redis.Client
}

func NewService(repo UserRepository, redisClient *redis.Client) *Service {
	return &Service{repo: repo, redis: redisClient}
}

// Resolve maps an external user id to an internal one, consulting the redis
// cache before postgres. Unknown identities map to
// realtime.ErrUnknownIdentity so the hub can distinguish them from
// infrastructure failures.
func (s *Service) Resolve(ctx context.Context, externalUserID string) (uint, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, identityKeyPrefix+externalUserID).Result()
		if err == nil {
			id, parseErr := strconv.ParseUint(cached, 10, 64)
			if parseErr == nil {
				return uint(id), nil
			}
		} else if !errors.Is(err, redis.Nil) {
			slog.Warn("identity cache read failed", "externalUserId", externalUserID, "error", err)
		}
	}

	user, err := s.repo.FindByExternalID(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, realtime.ErrUnknownIdentity
		}
		return 0, err
	}

	if s.redis != nil {
		key := identityKeyPrefix + externalUserID
		if err := s.redis.Set(ctx, key, strconv.FormatUint(uint64(user.ID), 10), identityCacheTTL).Err(); err != nil {
			slog.Warn("identity cache write failed", "externalUserId", externalUserID, "error", err)
		}
	}

	return user.ID, nil
}

// GetByExternalID returns the full user record for an external id.
func (s *Service) GetByExternalID(ctx context.Context, externalUserID string) (*models.User, error) {
	user, err := s.repo.FindByExternalID(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, realtime.ErrUnknownIdentity
		}
		return nil, err
	}
	return user, nil
}

// SetUserOnline marks the user as having at least one live connection.
func (s *Service) SetUserOnline(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return nil
	}
	key := presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
	return s.redis.Set(ctx, key, "1", presenceTTL).Err()
}

// SetUserOffline clears the user's presence marker.
func (s *Service) SetUserOffline(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return nil
	}
	key := presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
	return s.redis.Del(ctx, key).Err()
}

// IsUserOnline reports whether the user currently has a presence marker.
func (s *Service) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	key := presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
