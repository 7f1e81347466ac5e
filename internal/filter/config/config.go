package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds the daemon configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log    LogConfig    `koanf:"log"`
	Store  StoreConfig  `koanf:"store"`
	Cache  CacheConfig  `koanf:"cache"`
	Server ServerConfig `koanf:"server"`
}

// LogConfig controls log verbosity: "debug", "info", "warn", or "error".
type LogConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig selects where the rule set is persisted.
type StoreConfig struct {
	// Backend is "bolt", "file" (TOML) or "memory" (nothing persisted).
	Backend string `koanf:"backend" validate:"required,oneof=bolt file memory"`

	// Path is the bolt database or TOML file; ignored by the memory backend.
	Path string `koanf:"path" validate:"required_unless=Backend memory"`

	// BloomFPRate is the target false-positive rate of the rule membership index.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

// CacheConfig sizes the verdict cache. Zero disables caching.
type CacheConfig struct {
	Size int `koanf:"size" validate:"gte=0"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr     string `koanf:"addr" validate:"required,listen_addr"`
	MaxConns int    `koanf:"max_conns" validate:"gte=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{Level: "info"},
	Store: StoreConfig{
		Backend:     "bolt",
		Path:        "/var/lib/keyword-filter/rules.db",
		BloomFPRate: 0.01,
	},
	Cache: CacheConfig{Size: 10000},
	Server: ServerConfig{
		Addr:     ":8080",
		MaxConns: 256,
	},
}

// envKeys maps FILTER_* variables (prefix stripped) to config keys.
var envKeys = map[string]string{
	"ENV":                 "env",
	"LOG_LEVEL":           "log.level",
	"STORE_BACKEND":       "store.backend",
	"STORE_PATH":          "store.path",
	"STORE_BLOOM_FP_RATE": "store.bloom_fp_rate",
	"CACHE_SIZE":          "cache.size",
	"SERVER_ADDR":         "server.addr",
	"SERVER_MAX_CONNS":    "server.max_conns",
}

// validListenAddr accepts "host:port" or ":port" with a port in 1..65535.
// The host part, when present, must be an IP address or "localhost".
func validListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "FILTER_".
// Unknown variables are ignored.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "FILTER_",
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[strings.TrimPrefix(key, "FILTER_")]
			if !ok {
				return "", nil
			}
			return mapped, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges a TOML config file over the defaults.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), toml.Parser())
}

// registerValidation registers the custom "listen_addr" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then FILTER_* environment variables, and validates the result.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
