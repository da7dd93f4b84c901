package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/db"
)

const redisSessionPrefix = "session:"

var ErrSessionNotFound = errors.New("session not found")

type (
	Session struct {
		Token     string
		UserID    uint64
		ExpiresAt time.Time
	}

	SessionStore interface {
		Create(ctx context.Context, userID uint64) (*Session, error)
		// Get returns ErrSessionNotFound for unknown and expired tokens.
		Get(ctx context.Context, token string) (*Session, error)
		Delete(ctx context.Context, token string) error
	}

	DBSessionStore struct {
		db  *gorm.DB
		ttl time.Duration
		now func() time.Time
	}

	RedisSessionStore struct {
		rdb *redis.Client
		ttl time.Duration
	}
)

func NewSessionStore(lc fx.Lifecycle, cfg *config.Config, gdb *gorm.DB, l *zap.SugaredLogger) (SessionStore, error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return NewDBSessionStore(gdb, cfg.SessionTTL), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "ping redis")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Info("Closing redis client.")
			return rdb.Close()
		},
	})
	return NewRedisSessionStore(rdb, cfg.SessionTTL), nil
}

func NewDBSessionStore(gdb *gorm.DB, ttl time.Duration) *DBSessionStore {
	return &DBSessionStore{
		db:  gdb,
		ttl: ttl,
		now: time.Now,
	}
}

func (s *DBSessionStore) Create(ctx context.Context, userID uint64) (*Session, error) {
	model := db.Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return &Session{
		Token:     model.Token,
		UserID:    model.UserID,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

func (s *DBSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	model := db.Session{}
	res := s.db.WithContext(ctx).Where("token = ?", token).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(res.Error, "find session")
	}

	if !s.now().Before(model.ExpiresAt) {
		if err := s.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	return &Session{
		Token:     model.Token,
		UserID:    model.UserID,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

func (s *DBSessionStore) Delete(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).Where("token = ?", token).Delete(&db.Session{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete session")
	}
	return nil
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID uint64) (*Session, error) {
	token := uuid.New().String()
	expiresAt := time.Now().Add(s.ttl)
	if err := s.rdb.Set(ctx, redisSessionPrefix+token, userID, s.ttl).Err(); err != nil {
		return nil, errors.Wrap(err, "set session")
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	key := redisSessionPrefix + token
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "get session")
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse session user id %q", raw)
	}
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get session ttl")
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, redisSessionPrefix+token).Err(); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}
