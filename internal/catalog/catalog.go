// Package catalog resolves products and terminal configuration for the
// engine. Product snapshots are cached in Redis with a read-through policy;
// the database stays the source of truth.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// Lookup is what the order and payment services need from the catalog.
type Lookup interface {
	// Products returns the active products among ids. Unknown or inactive
	// ids are reported in missing, sorted ascending.
	Products(ctx context.Context, ids []int64) (found map[int64]model.Product, missing []int64, err error)
	// Terminal returns the terminal configuration; gorm.ErrRecordNotFound if absent.
	Terminal(ctx context.Context, id int64) (*model.Terminal, error)
}

// Service is the gorm-backed Lookup with an optional Redis cache.
type Service struct {
	products  repository.ProductRepository
	terminals repository.TerminalRepository
	cache     *redis.Client
	ttl       time.Duration

	productLoads atomic.Int64
}

// New builds a catalog Service. cache may be nil, in which case every call hits the database.
func New(products repository.ProductRepository, terminals repository.TerminalRepository, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{products: products, terminals: terminals, cache: cache, ttl: ttl}
}

func productKey(id int64) string { return fmt.Sprintf("pos:product:%d", id) }

func (s *Service) Products(ctx context.Context, ids []int64) (map[int64]model.Product, []int64, error) {
	ids = dedupe(ids)
	found := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}

	s.readCache(ctx, ids, found)

	pending := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			pending = append(pending, id)
		}
	}

	if len(pending) > 0 {
		s.productLoads.Add(1)
		rows, err := s.products.FindByIDs(ctx, pending)
		if err != nil {
			return nil, nil, fmt.Errorf("load products: %w", err)
		}
		for _, p := range rows {
			found[p.ID] = p
		}
		s.writeCache(ctx, rows)
	}

	missing := make([]int64, 0)
	for _, id := range ids {
		p, ok := found[id]
		if !ok || !p.IsActive {
			delete(found, id)
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

// readCache fills found from Redis. Cache errors are logged and treated as misses.
func (s *Service) readCache(ctx context.Context, ids []int64, found map[int64]model.Product) {
	if s.cache == nil {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	vals, err := s.cache.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("catalog cache read failed", zap.Error(err))
		return
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p model.Product
		if err := json.Unmarshal([]byte(str), &p); err == nil {
			found[ids[i]] = p
		}
	}
}

func (s *Service) writeCache(ctx context.Context, rows []model.Product) {
	if s.cache == nil || len(rows) == 0 {
		return
	}
	pipe := s.cache.Pipeline()
	for _, p := range rows {
		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, productKey(p.ID), payload, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("catalog cache write failed", zap.Error(err))
	}
}

func (s *Service) Terminal(ctx context.Context, id int64) (*model.Terminal, error) {
	return s.terminals.GetByID(ctx, id)
}

// ProductLoads reports how many times Products went to the database.
func (s *Service) ProductLoads() int64 { return s.productLoads.Load() }

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
