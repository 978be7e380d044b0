package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/synthcache/codec"
	"github.com/unkn0wn-root/synthcache/config"
	asynchook "github.com/unkn0wn-root/synthcache/hooks/async"
	"github.com/unkn0wn-root/synthcache/hot"
	"github.com/unkn0wn-root/synthcache/hot/bigcache"
	"github.com/unkn0wn-root/synthcache/hot/ristretto"
	"github.com/unkn0wn-root/synthcache/sloghooks"
	"github.com/unkn0wn-root/synthcache/store"
	"github.com/unkn0wn-root/synthcache/store/disk"
	"github.com/unkn0wn-root/synthcache/store/redis"
	"github.com/unkn0wn-root/synthcache/store/tiered"
)

// newHooks logs hook events through zl's core, so they share its encoder,
// level and sink.
func newHooks(zl *zap.Logger) *asynchook.Hooks {
	sl := slog.New(zapslog.NewHandler(zl.Core())).With("component", "synthcache")
	return asynchook.New(sloghooks.New(sl, sloghooks.Options{HitEvery: 100, CoalescedEvery: 10}), 1, 1024)
}

// openStore builds the durable store and, when configured, a hot tier in
// front of it.
func openStore(ctx context.Context, cfg *config.Config, hooks *asynchook.Hooks) (store.Store, error) {
	durable, err := openDurable(ctx, cfg)
	if err != nil {
		return nil, err
	}
	hp, err := openHot(cfg)
	if err != nil {
		_ = durable.Close(ctx)
		return nil, err
	}
	if hp == nil {
		return durable, nil
	}
	// hot values never leave the process; the tier's default CBOR codec
	// applies whatever the durable backend uses
	return tiered.New(tiered.Config{
		Durable:  durable,
		Hot:      hp,
		OnReject: hooks.HotTierRejected,
	})
}

func openDurable(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case "disk":
		return disk.Open(disk.Config{Root: cfg.CacheDir})
	case "redis":
		c, err := codec.ByName[store.Entry](cfg.Redis.Codec)
		if err != nil {
			return nil, err
		}
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return redis.New(redis.Config{
			Client:      rdb,
			Prefix:      cfg.Redis.Prefix,
			Codec:       c,
			MaxDecode:   cfg.Redis.MaxValueBytes,
			CloseClient: true,
		})
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// openHot returns nil when no hot tier is configured.
func openHot(cfg *config.Config) (hot.Provider, error) {
	switch cfg.HotTier {
	case "", "none":
		return nil, nil
	case "ristretto":
		return ristretto.New(ristretto.Config{MaxCost: int64(cfg.HotTierMB) << 20})
	case "bigcache":
		return bigcache.New(bigcache.Config{HardMaxCacheSizeMB: cfg.HotTierMB})
	default:
		return nil, fmt.Errorf("unknown hot tier %q", cfg.HotTier)
	}
}

// newLimiter returns nil (no limit) when perSec is 0.
func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), max(burst, 1))
}
