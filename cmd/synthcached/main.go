// Command synthcached serves cached text-to-speech over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/synthcache"
	"github.com/unkn0wn-root/synthcache/config"
	"github.com/unkn0wn-root/synthcache/engine"
	_ "github.com/unkn0wn-root/synthcache/engine/coqui"
	_ "github.com/unkn0wn-root/synthcache/engine/remote"
	zaplog "github.com/unkn0wn-root/synthcache/log/zap"
	"github.com/unkn0wn-root/synthcache/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "synthcached",
		Short:         "Serve text-to-speech with a content-addressed result cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg); err != nil {
				fmt.Fprintln(os.Stderr, "synthcached:", err)
				return err
			}
			return nil
		},
	}

	// flags default to the environment, so a flag wins over its variable
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "disk store root")
	f.StringVar(&cfg.Model, "model", cfg.Model, "default model")
	f.StringVar(&cfg.Device, "device", cfg.Device, "engine device (cpu, cuda, mps)")
	f.StringVar(&cfg.Engine, "engine", cfg.Engine, "engine backend (coqui, remote)")
	f.StringVar(&cfg.EngineBinary, "engine-binary", cfg.EngineBinary, "coqui tts binary")
	f.StringVar(&cfg.EngineURL, "engine-url", cfg.EngineURL, "remote engine base URL")
	f.IntVar(&cfg.EngineInstances, "engine-instances", cfg.EngineInstances, "concurrent engine invocations")
	f.DurationVar(&cfg.EngineTimeout, "engine-timeout", cfg.EngineTimeout, "per-invocation engine timeout")
	f.Float64Var(&cfg.EngineRate, "engine-rate", cfg.EngineRate, "engine calls per second, 0 = unlimited")
	f.StringVar(&cfg.Store, "store", cfg.Store, "durable store (disk, redis)")
	f.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "redis address")
	f.StringVar(&cfg.Redis.Codec, "redis-codec", cfg.Redis.Codec, "redis value codec (cbor, msgpack, json)")
	f.StringVar(&cfg.HotTier, "hot-tier", cfg.HotTier, "in-memory tier (none, ristretto, bigcache)")
	f.IntVar(&cfg.HotTierMB, "hot-tier-mb", cfg.HotTierMB, "in-memory tier capacity in MiB")
	f.BoolVar(&cfg.LegacyFieldNames, "legacy-field-names", cfg.LegacyFieldNames, "emit audio_data_url instead of audioDataUrl")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	zl, err := newZap(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	log := zaplog.New(zl)

	hooks := newHooks(zl)
	defer hooks.Close()

	st, err := openStore(ctx, cfg, hooks)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	eng, err := openEngine(ctx, cfg)
	if err != nil {
		_ = st.Close(context.Background())
		return fmt.Errorf("open engine: %w", err)
	}

	coord, err := synthcache.New(synthcache.Options{
		Store:           st,
		Engine:          eng,
		Logger:          log,
		Hooks:           hooks,
		EngineInstances: cfg.EngineInstances,
		EngineTimeout:   cfg.EngineTimeout,
	})
	if err != nil {
		_ = eng.Close()
		_ = st.Close(context.Background())
		return err
	}

	h, err := server.New(coord, synthcache.Defaults{Model: cfg.Model, Device: cfg.Device},
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithLogger(log),
		server.WithLegacyKeys(cfg.LegacyFieldNames),
	)
	if err != nil {
		_ = coord.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", synthcache.Fields{
			"addr": cfg.Addr, "engine": cfg.Engine, "store": cfg.Store, "hot_tier": cfg.HotTier,
			"model": cfg.Model, "device": cfg.Device, "instances": cfg.EngineInstances,
		})
		errc <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		log.Info("shutting down", nil)
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", synthcache.Fields{"err": err})
	}
	if err := coord.Close(sctx); err != nil {
		log.Warn("coordinator shutdown", synthcache.Fields{"err": err})
	}
	return serveErr
}

func openEngine(ctx context.Context, cfg *config.Config) (engine.Engine, error) {
	e, err := engine.Open(ctx, cfg.Engine, engine.Config{
		Binary:       cfg.EngineBinary,
		URL:          cfg.EngineURL,
		Device:       cfg.Device,
		DefaultModel: cfg.Model,
		OpenTimeout:  cfg.EngineTimeout,
	})
	if err != nil {
		return nil, err
	}
	e = engine.Limit(newLimiter(cfg.EngineRate, cfg.EngineInstances), e)
	return engine.Trace(cfg.Engine, e), nil
}

func newZap(level, format string) (*zap.Logger, error) {
	var zc zap.Config
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = lvl
	return zc.Build()
}
