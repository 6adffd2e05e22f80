package registry

import (
	"flag"
	"fmt"
	"time"
)

type Config struct {
	NotFoundTTL        time.Duration `yaml:"not_found_ttl"`
	NotFoundCacheSize  int           `yaml:"not_found_cache_size" category:"advanced"`
	PreloadConcurrency int           `yaml:"preload_concurrency"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.DurationVar(&cfg.NotFoundTTL, "registry.not-found-ttl", time.Minute, "How long a module without a usable line map is remembered. 0 disables negative caching.")
	f.IntVar(&cfg.NotFoundCacheSize, "registry.not-found-cache-size", 1024, "Maximum number of remembered modules without a usable line map.")
	f.IntVar(&cfg.PreloadConcurrency, "registry.preload-concurrency", 4, "Maximum number of line maps loaded concurrently by a preload.")
}

func (cfg *Config) Validate() error {
	if cfg.NotFoundTTL < 0 {
		return fmt.Errorf("invalid not-found-ttl value, must not be negative")
	}
	if cfg.NotFoundTTL > 0 && cfg.NotFoundCacheSize < 1 {
		return fmt.Errorf("invalid not-found-cache-size value, must be positive")
	}
	if cfg.PreloadConcurrency < 1 {
		return fmt.Errorf("invalid preload-concurrency value, must be positive")
	}
	return nil
}
