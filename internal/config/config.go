// Package config loads derivimg settings from defaults, an optional
// derivimg.yaml, DERIVIMG_* environment variables and bound CLI flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the resolved runtime configuration.
type Config struct {
	Preset       string
	Widths       []string
	Formats      []string
	SkipOriginal bool
	// SkipOriginalSet reports whether SkipOriginal was given explicitly;
	// otherwise the preset decides.
	SkipOriginalSet bool
	Force           bool
	Quality         int
	Lossless        bool
	AllowUpscale    bool
	Workers         int
	OutDir          string
	URLPath         string

	Log    LogConfig
	Cache  CacheConfig
	Source SourceConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type CacheConfig struct {
	Backend string
	// Size is the number of entries kept by the memory backend.
	Size          int
	MaxEntryBytes int64
	Redis         RedisConfig
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type SourceConfig struct {
	MaxBytes int64
	Timeout  time.Duration
}

// New returns a viper instance with defaults, env binding and the config
// search path set up. file, when non-empty, replaces the search path.
//
// skip_original has no default so that IsSet tells an explicit false apart
// from an unset value.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DERIVIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("derivimg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("preset", "responsive")
	v.SetDefault("out", "./img")
	v.SetDefault("url_path", "/img/")
	v.SetDefault("workers", 0)
	v.SetDefault("quality", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.max_entry_size", "8M")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "derivimg:")
	v.SetDefault("cache.redis.ttl", "24h")

	v.SetDefault("source.max_bytes", "64M")
	v.SetDefault("source.timeout", "30s")
}

// flagKeys maps CLI flag names to config keys where they differ.
var flagKeys = map[string]string{
	"skip-original": "skip_original",
	"url-path":      "url_path",
	"cache":         "cache.backend",
	"log-format":    "log.format",
	"max-bytes":     "source.max_bytes",
}

// BindFlags binds every flag in fs that names a config key. Flags only
// override other sources when changed on the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			if !isKey(f.Name) {
				return
			}
			key = f.Name
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func isKey(name string) bool {
	switch name {
	case "preset", "widths", "formats", "force", "quality", "lossless",
		"upscale", "workers", "out":
		return true
	}
	return false
}

// Load reads the config file if present and resolves every setting. A
// missing file on the search path is not an error; a missing explicit
// file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Preset:          v.GetString("preset"),
		Widths:          splitList(v.GetStringSlice("widths")),
		Formats:         splitList(v.GetStringSlice("formats")),
		SkipOriginal:    v.GetBool("skip_original"),
		SkipOriginalSet: v.IsSet("skip_original"),
		Force:           v.GetBool("force"),
		Quality:         v.GetInt("quality"),
		Lossless:        v.GetBool("lossless"),
		AllowUpscale:    v.GetBool("upscale"),
		Workers:         v.GetInt("workers"),
		OutDir:          v.GetString("out"),
		URLPath:         v.GetString("url_path"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("cache.backend")),
			Size:    v.GetInt("cache.size"),
			Redis: RedisConfig{
				Addr:     v.GetString("cache.redis.addr"),
				Username: v.GetString("cache.redis.username"),
				Password: v.GetString("cache.redis.password"),
				DB:       v.GetInt("cache.redis.db"),
				Prefix:   v.GetString("cache.redis.prefix"),
				TTL:      v.GetDuration("cache.redis.ttl"),
			},
		},
		Source: SourceConfig{
			Timeout: v.GetDuration("source.timeout"),
		},
	}

	var err error
	if cfg.Cache.MaxEntryBytes, err = parseSize(v, "cache.max_entry_size"); err != nil {
		return nil, err
	}
	if cfg.Source.MaxBytes, err = parseSize(v, "source.max_bytes"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q (memory, redis, none)", c.Cache.Backend)
	}
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("quality: %d out of range 1-100", c.Quality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative")
	}
	return nil
}

// parseSize reads a human size ("64M", "512KB"). "0" and "" disable the
// limit.
func parseSize(v *viper.Viper, key string) (int64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" || raw == "0" {
		return 0, nil
	}
	n, err := bytefmt.ToBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return int64(n), nil
}

// splitList accepts both YAML lists and comma separated values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
