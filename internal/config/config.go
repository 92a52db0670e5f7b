// Package config loads the calculator service settings: defaults, then an
// optional YAML file, then CALC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voice-calculator/internal/speech"
	"voice-calculator/internal/voice"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Session   SessionConfig   `yaml:"session"`
	Redis     RedisConfig     `yaml:"redis"`
	Voice     VoiceConfig     `yaml:"voice"`
	Speech    speech.Voice    `yaml:"speech"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	OriginPatterns  []string      `yaml:"origin_patterns"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	// OTLP enables the OTLP HTTP exporters for traces, metrics and logs.
	// They read the standard OTEL_EXPORTER_OTLP_* variables.
	OTLP bool `yaml:"otlp"`
}

type SessionConfig struct {
	Store     string        `yaml:"store"`
	TTL       time.Duration `yaml:"ttl"`
	HubBuffer int           `yaml:"hub_buffer"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type VoiceConfig struct {
	RestartDelay      time.Duration `yaml:"restart_delay"`
	Phonetic          bool          `yaml:"phonetic"`
	PhoneticThreshold float64       `yaml:"phonetic_threshold"`
	FuzzyThreshold    float64       `yaml:"fuzzy_threshold"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "voice-calculator"},
		Session: SessionConfig{
			Store:     StoreMemory,
			TTL:       30 * time.Minute,
			HubBuffer: 16,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "calc:session:",
		},
		Voice: VoiceConfig{
			RestartDelay:      100 * time.Millisecond,
			PhoneticThreshold: 0.80,
			FuzzyThreshold:    0.90,
		},
		Speech: speech.DefaultVoice(),
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Environment variables are expanded but not applied as overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode expands ${VAR} references and rejects unknown keys.
func decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read yaml: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// applyEnv overrides cfg from the environment. Every malformed value is
// reported.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("CALC_ADDR", &cfg.Server.Addr)
	if v, ok := lookup("CALC_ORIGIN_PATTERNS"); ok && v != "" {
		cfg.Server.OriginPatterns = strings.Split(v, ",")
	}
	str("CALC_LOG_LEVEL", &cfg.Log.Level)
	str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	boolean("CALC_OTLP", &cfg.Telemetry.OTLP)
	str("CALC_SESSION_STORE", &cfg.Session.Store)
	duration("CALC_SESSION_TTL", &cfg.Session.TTL)
	str("CALC_REDIS_ADDR", &cfg.Redis.Addr)
	str("CALC_REDIS_PASSWORD", &cfg.Redis.Password)
	integer("CALC_REDIS_DB", &cfg.Redis.DB)
	str("CALC_REDIS_PREFIX", &cfg.Redis.Prefix)
	boolean("CALC_PHONETIC", &cfg.Voice.Phonetic)

	return errors.Join(errs...)
}

// Validate checks cfg and returns every problem found as one joined error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive, got %s", cfg.Server.ShutdownTimeout))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	switch cfg.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required when session.store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.store %q is invalid; valid values: memory, redis", cfg.Session.Store))
	}
	if cfg.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must not be negative, got %s", cfg.Session.TTL))
	}
	if cfg.Session.HubBuffer <= 0 {
		errs = append(errs, fmt.Errorf("session.hub_buffer must be positive, got %d", cfg.Session.HubBuffer))
	}

	if cfg.Voice.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("voice.restart_delay must not be negative, got %s", cfg.Voice.RestartDelay))
	}
	for name, v := range map[string]float64{
		"voice.phonetic_threshold": cfg.Voice.PhoneticThreshold,
		"voice.fuzzy_threshold":    cfg.Voice.FuzzyThreshold,
	} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %g", name, v))
		}
	}

	if cfg.Speech.Rate <= 0 {
		errs = append(errs, fmt.Errorf("speech.rate must be positive, got %g", cfg.Speech.Rate))
	}
	if cfg.Speech.Volume < 0 || cfg.Speech.Volume > 1 {
		errs = append(errs, fmt.Errorf("speech.volume must be in [0, 1], got %g", cfg.Speech.Volume))
	}

	return errors.Join(errs...)
}

// DispatcherOptions turns on phonetic correction when configured.
func (c VoiceConfig) DispatcherOptions() []voice.DispatcherOption {
	if !c.Phonetic {
		return nil
	}
	return []voice.DispatcherOption{
		voice.WithCorrector(voice.NewPhoneticCorrector(
			voice.WithPhoneticThreshold(c.PhoneticThreshold),
			voice.WithFuzzyThreshold(c.FuzzyThreshold),
		)),
	}
}
