package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"academy-cloud/internal/billing/application"
	billing "academy-cloud/internal/billing/domain"
	"academy-cloud/internal/observability/metrics"
)

const (
	defaultKeyPrefix = "academy:batch-fee"
	defaultTTL       = 5 * time.Minute
)

// CachedBatchCatalog caches batch fee configurations in Redis in front of
// another catalog. Redis failures fall through to the backing catalog.
type CachedBatchCatalog struct {
	client *goredis.Client
	next   application.BatchCatalog
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

// CacheOption configures the cache.
type CacheOption func(*CachedBatchCatalog)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedBatchCatalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *CachedBatchCatalog) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) CacheOption {
	return func(c *CachedBatchCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedBatchCatalog wraps next with a Redis cache.
func NewCachedBatchCatalog(client *goredis.Client, next application.BatchCatalog, opts ...CacheOption) (*CachedBatchCatalog, error) {
	if client == nil {
		return nil, errors.New("batch cache: nil redis client")
	}
	if next == nil {
		return nil, errors.New("batch cache: nil catalog")
	}
	cache := &CachedBatchCatalog{
		client: client,
		next:   next,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// NewClient connects to Redis from a redis:// URL and pings it.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type cachedBatch struct {
	BatchID        string          `json:"batchId"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Model          string          `json:"model"`
	Amount         decimal.Decimal `json:"amount"`
}

// Get serves from cache when possible. Absent batches are not cached.
func (c *CachedBatchCatalog) Get(ctx context.Context, organizationID, batchID string) (*billing.BatchFeeConfig, error) {
	key := c.key(organizationID, batchID)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		batch, decodeErr := decode(raw)
		if decodeErr == nil {
			metrics.IncBatchCache(metrics.CacheHit)
			return batch, nil
		}
		c.logger.WithFields(logrus.Fields{"evt": "batch_cache_decode_failed", "key": key}).WithError(decodeErr).Warn("batch cache entry unreadable")
		metrics.IncBatchCache(metrics.CacheMiss)
	case errors.Is(err, goredis.Nil):
		metrics.IncBatchCache(metrics.CacheMiss)
	default:
		metrics.IncBatchCache(metrics.CacheError)
		c.logger.WithFields(logrus.Fields{"evt": "batch_cache_get_failed", "key": key}).WithError(err).Warn("batch cache unavailable")
	}

	batch, err := c.next.Get(ctx, organizationID, batchID)
	if err != nil || batch == nil {
		return batch, err
	}
	payload, err := encode(batch)
	if err != nil {
		return batch, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{"evt": "batch_cache_set_failed", "key": key}).WithError(err).Warn("batch cache write failed")
	}
	return batch, nil
}

// Invalidate drops a cached batch.
func (c *CachedBatchCatalog) Invalidate(ctx context.Context, organizationID, batchID string) error {
	return c.client.Del(ctx, c.key(organizationID, batchID)).Err()
}

func (c *CachedBatchCatalog) key(organizationID, batchID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, organizationID, batchID)
}

func encode(batch *billing.BatchFeeConfig) ([]byte, error) {
	if batch.Fee == nil {
		return nil, billing.ErrInvalidConfiguration
	}
	entry := cachedBatch{
		BatchID:        batch.BatchID,
		OrganizationID: batch.OrganizationID,
		Name:           batch.Name,
		Model:          string(batch.Fee.Model()),
	}
	switch fee := batch.Fee.(type) {
	case billing.OneTimeFee:
		entry.Amount = fee.Amount
	case billing.FixedMonthlyFee:
		entry.Amount = fee.MonthlyFee
	case billing.PerSessionFee:
		entry.Amount = fee.SessionFee
	case billing.PerAttendanceFee:
		entry.Amount = fee.SessionFee
	default:
		return nil, billing.ErrInvalidConfiguration
	}
	return json.Marshal(entry)
}

func decode(raw []byte) (*billing.BatchFeeConfig, error) {
	var entry cachedBatch
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	amount := entry.Amount
	var fee billing.FeeConfig
	var err error
	if billing.PaymentModel(entry.Model) == billing.ModelFixedMonthly {
		fee, err = billing.NewFeeConfig(entry.Model, &amount, nil)
	} else {
		fee, err = billing.NewFeeConfig(entry.Model, nil, &amount)
	}
	if err != nil {
		return nil, err
	}
	return &billing.BatchFeeConfig{
		BatchID:        entry.BatchID,
		OrganizationID: entry.OrganizationID,
		Name:           entry.Name,
		Fee:            fee,
	}, nil
}
