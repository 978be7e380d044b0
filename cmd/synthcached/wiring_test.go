package main

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/synthcache/config"
	"github.com/unkn0wn-root/synthcache/store"
	"github.com/unkn0wn-root/synthcache/store/disk"
	"github.com/unkn0wn-root/synthcache/store/redis"
	"github.com/unkn0wn-root/synthcache/store/tiered"
)

var fp = strings.Repeat("c", 64)

func baseConfig(t *testing.T) *config.Config {
	return &config.Config{
		CacheDir:  t.TempDir(),
		Store:     "disk",
		HotTier:   "none",
		HotTierMB: 8,
		LogLevel:  "info",
		Redis:     config.Redis{Prefix: "synthcache", Codec: "cbor"},
	}
}

func roundTrip(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, &store.Entry{Fingerprint: fp, Audio: []byte("RIFF0000WAVE"), Format: "wav"}))
	e, err := st.Read(ctx, fp)
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF0000WAVE"), e.Audio)
}

func TestOpenStoreDisk(t *testing.T) {
	cfg := baseConfig(t)
	hooks := newHooks(zap.NewNop())
	defer hooks.Close()

	st, err := openStore(context.Background(), cfg, hooks)
	require.NoError(t, err)
	defer st.Close(context.Background())

	require.IsType(t, &disk.Disk{}, st)
	roundTrip(t, st)
}

func TestOpenStoreTiered(t *testing.T) {
	for _, tier := range []string{"ristretto", "bigcache"} {
		t.Run(tier, func(t *testing.T) {
			cfg := baseConfig(t)
			cfg.HotTier = tier
			hooks := newHooks(zap.NewNop())
			defer hooks.Close()

			st, err := openStore(context.Background(), cfg, hooks)
			require.NoError(t, err)
			defer st.Close(context.Background())

			require.IsType(t, &tiered.Tiered{}, st)
			roundTrip(t, st)
		})
	}
}

func TestOpenStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig(t)
	cfg.Store = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Codec = "msgpack"
	hooks := newHooks(zap.NewNop())
	defer hooks.Close()

	st, err := openStore(context.Background(), cfg, hooks)
	require.NoError(t, err)
	defer st.Close(context.Background())

	require.IsType(t, &redis.Redis{}, st)
	roundTrip(t, st)
	require.True(t, mr.Exists("synthcache:"+fp))
}

func TestOpenStoreRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig(t)
	cfg.Store = "redis"
	cfg.Redis.Addr = addr
	hooks := newHooks(zap.NewNop())
	defer hooks.Close()

	_, err := openStore(context.Background(), cfg, hooks)
	require.Error(t, err)
}

func TestOpenStoreRejectsUnknown(t *testing.T) {
	cfg := baseConfig(t)
	cfg.HotTier = "memcached"
	hooks := newHooks(zap.NewNop())
	defer hooks.Close()

	_, err := openStore(context.Background(), cfg, hooks)
	require.ErrorContains(t, err, "memcached")
}

func TestOpenEngineUnknownKind(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Engine = "espeak"
	_, err := openEngine(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	require.Nil(t, newLimiter(0, 1))
	l := newLimiter(2.5, 0)
	require.NotNil(t, l)
	require.Equal(t, 1, l.Burst())
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Addr = "127.0.0.1:5025"
	cmd := rootCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--addr", ":9000", "--engine-instances", "4"}))
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, 4, cfg.EngineInstances)
}

func TestHooksLogThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	hooks := newHooks(zap.New(core))

	hooks.CacheMiss(fp) // debug, filtered by the zap level
	hooks.EngineFailed(fp, "timeout", context.DeadlineExceeded)
	hooks.Close()

	require.Equal(t, 0, logs.FilterMessage("synthcache.cache_miss").Len())
	got := logs.FilterMessage("synthcache.engine_failed").All()
	require.Len(t, got, 1)
	require.Equal(t, zapcore.WarnLevel, got[0].Level)
	require.Equal(t, "timeout", got[0].ContextMap()["reason"])
	require.Equal(t, "synthcache", got[0].ContextMap()["component"])
}

func TestHotTierIgnoresRedisCodec(t *testing.T) {
	cfg := baseConfig(t)
	cfg.HotTier = "ristretto"
	cfg.Redis.Codec = "gob"
	hooks := newHooks(zap.NewNop())
	defer hooks.Close()

	st, err := openStore(context.Background(), cfg, hooks)
	require.NoError(t, err)
	defer st.Close(context.Background())
	roundTrip(t, st)
}
