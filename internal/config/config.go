package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the resolved shopfront configuration.
type Config struct {
	API          APIConfig
	Storage      StorageConfig
	Connectivity ConnectivityConfig
	Sync         SyncConfig
	Log          LogConfig
	Mock         MockConfig
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type StorageConfig struct {
	Backend   string // file, memory or redis
	Dir       string
	Namespace string
	RedisURL  string
}

type ConnectivityConfig struct {
	ProbeInterval    time.Duration
	FailureThreshold int
}

type SyncConfig struct {
	MaxRetries      int
	RefreshInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string // text or json
	File   string // empty logs to stderr
}

type MockConfig struct {
	Addr     string
	SeedFile string
}

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"

	envPrefix = "SHOPFRONT"

	defaultConfigPath       = "~/.config/shopfront/config.toml"
	defaultBaseURL          = "http://127.0.0.1:8082/api/v1"
	defaultRequestTimeout   = 10 * time.Second
	defaultStorageDir       = "~/.local/share/shopfront"
	defaultNamespace        = "shopfront"
	defaultRedisURL         = "redis://127.0.0.1:6379/0"
	defaultProbeInterval    = 2 * time.Second
	defaultFailureThreshold = 2
	defaultMaxRetries       = 3
	defaultRefreshInterval  = 30 * time.Second
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultLogFile          = "~/.local/share/shopfront/shopfront.log"
	defaultMockAddr         = "127.0.0.1:8082"
)

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() Config {
	return Config{
		API:          APIConfig{BaseURL: defaultBaseURL, RequestTimeout: defaultRequestTimeout},
		Storage:      StorageConfig{Backend: BackendFile, Dir: mustExpand(defaultStorageDir), Namespace: defaultNamespace, RedisURL: defaultRedisURL},
		Connectivity: ConnectivityConfig{ProbeInterval: defaultProbeInterval, FailureThreshold: defaultFailureThreshold},
		Sync:         SyncConfig{MaxRetries: defaultMaxRetries, RefreshInterval: defaultRefreshInterval},
		Log:          LogConfig{Level: defaultLogLevel, Format: defaultLogFormat, File: mustExpand(defaultLogFile)},
		Mock:         MockConfig{Addr: defaultMockAddr},
	}
}

type fileConfig struct {
	API struct {
		BaseURL        string `toml:"base_url"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"api"`
	Storage struct {
		Backend   string `toml:"backend"`
		Dir       string `toml:"dir"`
		Namespace string `toml:"namespace"`
		RedisURL  string `toml:"redis_url"`
	} `toml:"storage"`
	Connectivity struct {
		ProbeInterval    string `toml:"probe_interval"`
		FailureThreshold int    `toml:"failure_threshold"`
	} `toml:"connectivity"`
	Sync struct {
		MaxRetries      int    `toml:"max_retries"`
		RefreshInterval string `toml:"refresh_interval"`
	} `toml:"sync"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`
	Mock struct {
		Addr     string `toml:"addr"`
		SeedFile string `toml:"seed_file"`
	} `toml:"mock"`
}

// envOverrides mirrors the file keys as SHOPFRONT_* variables.
type envOverrides struct {
	BaseURL          string `envconfig:"API_BASE_URL"`
	RequestTimeout   string `envconfig:"API_REQUEST_TIMEOUT"`
	Backend          string `envconfig:"STORAGE_BACKEND"`
	Dir              string `envconfig:"STORAGE_DIR"`
	Namespace        string `envconfig:"STORAGE_NAMESPACE"`
	RedisURL         string `envconfig:"STORAGE_REDIS_URL"`
	ProbeInterval    string `envconfig:"CONNECTIVITY_PROBE_INTERVAL"`
	FailureThreshold string `envconfig:"CONNECTIVITY_FAILURE_THRESHOLD"`
	MaxRetries       string `envconfig:"SYNC_MAX_RETRIES"`
	RefreshInterval  string `envconfig:"SYNC_REFRESH_INTERVAL"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	LogFormat        string `envconfig:"LOG_FORMAT"`
	LogFile          string `envconfig:"LOG_FILE"`
	MockAddr         string `envconfig:"MOCK_ADDR"`
	MockSeedFile     string `envconfig:"MOCK_SEED_FILE"`
}

// Load reads the TOML file at path (default ~/.config/shopfront/config.toml),
// falling back to defaults when it is missing, then applies SHOPFRONT_*
// environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw fileConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.applyFile(raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.applyEnv(env); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("storage.backend %q: want file, memory or redis", c.Storage.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

func (c *Config) applyFile(raw fileConfig) error {
	setString(&c.API.BaseURL, raw.API.BaseURL)
	if err := setDuration(&c.API.RequestTimeout, "api.request_timeout", raw.API.RequestTimeout); err != nil {
		return err
	}
	setLower(&c.Storage.Backend, raw.Storage.Backend)
	setPath(&c.Storage.Dir, raw.Storage.Dir)
	setString(&c.Storage.Namespace, raw.Storage.Namespace)
	setString(&c.Storage.RedisURL, raw.Storage.RedisURL)
	if err := setDuration(&c.Connectivity.ProbeInterval, "connectivity.probe_interval", raw.Connectivity.ProbeInterval); err != nil {
		return err
	}
	setPositive(&c.Connectivity.FailureThreshold, raw.Connectivity.FailureThreshold)
	setPositive(&c.Sync.MaxRetries, raw.Sync.MaxRetries)
	if err := setDuration(&c.Sync.RefreshInterval, "sync.refresh_interval", raw.Sync.RefreshInterval); err != nil {
		return err
	}
	setLower(&c.Log.Level, raw.Log.Level)
	setLower(&c.Log.Format, raw.Log.Format)
	setPath(&c.Log.File, raw.Log.File)
	setString(&c.Mock.Addr, raw.Mock.Addr)
	setPath(&c.Mock.SeedFile, raw.Mock.SeedFile)
	return nil
}

func (c *Config) applyEnv(env envOverrides) error {
	setString(&c.API.BaseURL, env.BaseURL)
	if err := setDuration(&c.API.RequestTimeout, "SHOPFRONT_API_REQUEST_TIMEOUT", env.RequestTimeout); err != nil {
		return err
	}
	setLower(&c.Storage.Backend, env.Backend)
	setPath(&c.Storage.Dir, env.Dir)
	setString(&c.Storage.Namespace, env.Namespace)
	setString(&c.Storage.RedisURL, env.RedisURL)
	if err := setDuration(&c.Connectivity.ProbeInterval, "SHOPFRONT_CONNECTIVITY_PROBE_INTERVAL", env.ProbeInterval); err != nil {
		return err
	}
	if err := setInt(&c.Connectivity.FailureThreshold, "SHOPFRONT_CONNECTIVITY_FAILURE_THRESHOLD", env.FailureThreshold); err != nil {
		return err
	}
	if err := setInt(&c.Sync.MaxRetries, "SHOPFRONT_SYNC_MAX_RETRIES", env.MaxRetries); err != nil {
		return err
	}
	if err := setDuration(&c.Sync.RefreshInterval, "SHOPFRONT_SYNC_REFRESH_INTERVAL", env.RefreshInterval); err != nil {
		return err
	}
	setLower(&c.Log.Level, env.LogLevel)
	setLower(&c.Log.Format, env.LogFormat)
	setPath(&c.Log.File, env.LogFile)
	setString(&c.Mock.Addr, env.MockAddr)
	setPath(&c.Mock.SeedFile, env.MockSeedFile)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setLower(dst *string, v string) {
	setString(dst, strings.ToLower(v))
}

func setPath(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = mustExpand(v)
	}
}

func setPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d > 0 {
		*dst = d
	}
	return nil
}

func setInt(dst *int, key, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	setPositive(dst, n)
	return nil
}

// ExpandPath resolves ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
