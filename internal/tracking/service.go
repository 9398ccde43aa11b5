// Package tracking serves the public, unauthenticated status lookup.
// Views deliberately carry no requester identity and no agent notes:
// anyone holding a tracking number may call this.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "etatcivil/internal/platform/redis"
	requestmodels "etatcivil/internal/request/models"
)

// View is the public projection of a request's state.
type View struct {
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	ActType        string     `json:"act_type"`
	Variant        string     `json:"document_variant"`
	CopyCount      int        `json:"copy_count"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// Lookup resolves a tracking number to its request.
type Lookup interface {
	GetByTrackingNumber(ctx context.Context, number string) (*requestmodels.Request, error)
}

// Cache is the read-through cache port. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("tracking: cache miss")

// RedisCache backs the cache port with Redis.
type RedisCache struct {
	client *platformredis.Client
}

// NewRedisCache wraps the platform Redis client. Returns a nil Cache for
// a nil client so an unconfigured Redis simply disables caching.
func NewRedisCache(client *platformredis.Client) Cache {
	if client == nil {
		return nil
	}
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Service answers tracking lookups, serving from cache when possible.
type Service struct {
	lookup Lookup
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCache enables the read-through cache. Terminal requests are cached
// with a longer TTL since they no longer change.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if cache == nil {
			return
		}
		s.cache = cache
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

const defaultTTL = 2 * time.Minute

func New(lookup Lookup, opts ...Option) *Service {
	s := &Service{
		lookup: lookup,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(number string) string {
	return "tracking:" + number
}

// Get resolves a tracking number to its public view. Cache failures fall
// through to the store; they are logged, never surfaced.
func (s *Service) Get(ctx context.Context, number string) (*View, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, cacheKey(number))
		switch {
		case err == nil:
			var view View
			if err := json.Unmarshal(data, &view); err == nil {
				return &view, nil
			}
			s.logger.WarnContext(ctx, "discarding corrupt tracking cache entry", "tracking_number", number)
		case !errors.Is(err, ErrCacheMiss):
			s.logger.WarnContext(ctx, "tracking cache read failed", "error", err)
		}
	}

	req, err := s.lookup.GetByTrackingNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	view := project(req)

	if s.cache != nil {
		ttl := s.ttl
		if req.Status.IsTerminal() {
			ttl = 24 * time.Hour
		}
		if data, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, cacheKey(number), data, ttl); err != nil {
				s.logger.WarnContext(ctx, "tracking cache write failed", "error", err)
			}
		}
	}
	return view, nil
}

func project(req *requestmodels.Request) *View {
	return &View{
		TrackingNumber: req.TrackingNumber,
		Status:         string(req.Status),
		ActType:        req.ActType.String(),
		Variant:        req.Variant.String(),
		CopyCount:      req.CopyCount,
		CreatedAt:      req.CreatedAt,
		DeliveredAt:    req.DeliveredAt,
	}
}
