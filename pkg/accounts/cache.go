package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "account:"

// CachedRepository is a cache-aside decorator that keeps accounts by ID in
// Redis. Cache failures are logged and the call falls through to the wrapped
// repository, so Redis is never required for correctness.
type CachedRepository struct {
	next   Repository
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCachedRepository(next Repository, client redis.Cmdable, ttl time.Duration, log *zap.SugaredLogger) *CachedRepository {
	return &CachedRepository{next: next, client: client, ttl: ttl, log: log.Named("account-cache")}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, id)
}

func (r *CachedRepository) Create(ctx context.Context, a Account) (Account, error) {
	created, err := r.next.Create(ctx, a)
	if err != nil {
		return created, err
	}
	r.set(ctx, created)
	return created, nil
}

func (r *CachedRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var a Account
		if jerr := json.Unmarshal(data, &a); jerr == nil {
			return a, nil
		}
		r.log.Warnw("Discarding undecodable cache entry", "key", cacheKey(id))
	case !errors.Is(err, redis.Nil):
		r.log.Warnw("Cache read failed", "key", cacheKey(id), "error", err)
	}

	a, err := r.next.FindByID(ctx, id)
	if err != nil {
		return a, err
	}
	r.set(ctx, a)
	return a, nil
}

func (r *CachedRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.next.FindByEmail(ctx, email)
}

func (r *CachedRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.next.ExistsByEmail(ctx, email)
}

func (r *CachedRepository) List(ctx context.Context) ([]Account, error) {
	return r.next.List(ctx)
}

func (r *CachedRepository) Update(ctx context.Context, a Account) (Account, error) {
	updated, err := r.next.Update(ctx, a)
	if err != nil {
		return updated, err
	}
	r.invalidate(ctx, a.ID)
	return updated, nil
}

func (r *CachedRepository) Delete(ctx context.Context, id int64) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedRepository) Count(ctx context.Context) (int64, error) {
	return r.next.Count(ctx)
}

func (r *CachedRepository) invalidate(ctx context.Context, id int64) {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.log.Warnw("Cache delete failed", "key", cacheKey(id), "error", err)
	}
}

func (r *CachedRepository) set(ctx context.Context, a Account) {
	data, err := json.Marshal(a)
	if err != nil {
		r.log.Warnw("Cache marshal failed", "id", a.ID, "error", err)
		return
	}
	if err := r.client.Set(ctx, cacheKey(a.ID), data, r.ttl).Err(); err != nil {
		r.log.Warnw("Cache write failed", "key", cacheKey(a.ID), "error", err)
	}
}

var _ Repository = (*CachedRepository)(nil)
