// Package config loads the synthcached daemon configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"SYNTHCACHE_ADDR" envDefault:"127.0.0.1:5025"`

	// CacheDir is the disk store root; "" => $TMPDIR/coqui-cache.
	CacheDir string `env:"COQUI_CACHE"`
	Model    string `env:"TTS_MODEL" envDefault:"tts_models/de/thorsten/vits"`
	Device   string `env:"TTS_DEVICE" envDefault:"cpu"`

	Engine          string        `env:"ENGINE" envDefault:"coqui"`
	EngineBinary    string        `env:"ENGINE_BINARY" envDefault:"tts"`
	EngineURL       string        `env:"ENGINE_URL"`
	EngineInstances int           `env:"ENGINE_INSTANCES" envDefault:"1"`
	EngineTimeout   time.Duration `env:"ENGINE_TIMEOUT" envDefault:"2m"`
	EngineRate      float64       `env:"ENGINE_RATE" envDefault:"0"` // calls/sec; 0 = unlimited

	Store     string `env:"STORE" envDefault:"disk"`
	Redis     Redis  `envPrefix:"REDIS_"`
	HotTier   string `env:"HOT_TIER" envDefault:"none"`
	HotTierMB int    `env:"HOT_TIER_MB" envDefault:"64"`

	MaxBodyBytes     int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	LegacyFieldNames bool          `env:"LEGACY_FIELD_NAMES" envDefault:"false"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

type Redis struct {
	Addr          string `env:"ADDR" envDefault:"localhost:6379"`
	Password      string `env:"PASSWORD"`
	DB            int    `env:"DB" envDefault:"0"`
	Prefix        string `env:"PREFIX" envDefault:"synthcache"`
	Codec         string `env:"CODEC" envDefault:"cbor"`
	MaxValueBytes int    `env:"MAX_VALUE_BYTES" envDefault:"67108864"`
}

var (
	engines   = []string{"coqui", "remote"}
	stores    = []string{"disk", "redis"}
	hotTiers  = []string{"none", "ristretto", "bigcache"}
	codecs    = []string{"cbor", "msgpack", "json"}
	levels    = []string{"debug", "info", "warn", "error"}
	logFormat = []string{"json", "console"}
)

// Load reads dotenv files (default ".env"; a missing file is not an error),
// then parses the environment. Variables already set win over dotenv values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "coqui-cache")
	}
	return &cfg, nil
}

// Validate rejects unknown enum values and non-positive limits.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(name, v string, allowed []string) {
		if !slices.Contains(allowed, v) {
			errs = append(errs, fmt.Errorf("%s=%q: want one of %v", name, v, allowed))
		}
	}

	oneOf("ENGINE", c.Engine, engines)
	oneOf("STORE", c.Store, stores)
	oneOf("HOT_TIER", c.HotTier, hotTiers)
	oneOf("REDIS_CODEC", c.Redis.Codec, codecs)
	oneOf("LOG_LEVEL", c.LogLevel, levels)
	oneOf("LOG_FORMAT", c.LogFormat, logFormat)

	if c.Addr == "" {
		errs = append(errs, errors.New("SYNTHCACHE_ADDR is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("TTS_MODEL is required"))
	}
	if c.Engine == "remote" && c.EngineURL == "" {
		errs = append(errs, errors.New("ENGINE_URL is required for ENGINE=remote"))
	}
	if c.EngineInstances <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_INSTANCES=%d: must be > 0", c.EngineInstances))
	}
	if c.EngineTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_TIMEOUT=%s: must be > 0", c.EngineTimeout))
	}
	if c.EngineRate < 0 {
		errs = append(errs, fmt.Errorf("ENGINE_RATE=%g: must be >= 0", c.EngineRate))
	}
	if c.HotTier != "none" && c.HotTierMB <= 0 {
		errs = append(errs, fmt.Errorf("HOT_TIER_MB=%d: must be > 0", c.HotTierMB))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES=%d: must be > 0", c.MaxBodyBytes))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT=%s: must be > 0", c.ShutdownTimeout))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
