package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

type TranslationConfig struct {
	Mode      string `yaml:"mode"` // mock, http, exec
	Endpoint  string `yaml:"endpoint"`
	Command   string `yaml:"command"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type SynthesisConfig struct {
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type BroadcastConfig struct {
	MaxInflight int `yaml:"max_inflight"`
}

type BufferConfig struct {
	MaxOutstandingSecs float64 `yaml:"max_outstanding_secs"`
}

type RegistryConfig struct {
	HeartbeatTimeout int `yaml:"heartbeat_timeout_ms"`
	SweepInterval    int `yaml:"sweep_interval_ms"`
}

type SegmentLogConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Cache       CacheConfig       `yaml:"cache"`
	Translation TranslationConfig `yaml:"translation"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Buffer      BufferConfig      `yaml:"buffer"`
	Registry    RegistryConfig    `yaml:"registry"`
	SegmentLog  SegmentLogConfig  `yaml:"segment_log"`
}

func Default() Config {
	return Config{
		RuntimeName: "babelcast-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Cache: CacheConfig{
			Capacity:   10000,
			TTLSeconds: 3600,
		},
		Translation: TranslationConfig{
			Mode:      "mock",
			Endpoint:  "http://localhost:8090",
			TimeoutMS: 2000,
		},
		Synthesis: SynthesisConfig{
			Mode:       "mock",
			Voice:      "default",
			SampleRate: 22050,
			TimeoutMS:  3000,
		},
		Broadcast: BroadcastConfig{
			MaxInflight: 100,
		},
		Buffer: BufferConfig{
			MaxOutstandingSecs: 10,
		},
		Registry: RegistryConfig{
			HeartbeatTimeout: 15000,
			SweepInterval:    5000,
		},
		SegmentLog: SegmentLogConfig{
			Path:          "./data/babelcast-segments.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "BABELCAST_RUNTIME_NAME")
	overrideString(&cfg.Environment, "BABELCAST_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "BABELCAST_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "BABELCAST_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "BABELCAST_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "BABELCAST_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "BABELCAST_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "BABELCAST_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "BABELCAST_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "BABELCAST_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "BABELCAST_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "BABELCAST_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "BABELCAST_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "BABELCAST_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "BABELCAST_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "BABELCAST_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Cache.Capacity, "BABELCAST_CACHE_CAPACITY")
	overrideInt(&cfg.Cache.TTLSeconds, "BABELCAST_CACHE_TTL_SECONDS")
	overrideString(&cfg.Translation.Mode, "BABELCAST_TRANSLATION_MODE")
	overrideString(&cfg.Translation.Endpoint, "BABELCAST_TRANSLATION_ENDPOINT")
	overrideString(&cfg.Translation.Command, "BABELCAST_TRANSLATION_COMMAND")
	overrideInt(&cfg.Translation.TimeoutMS, "BABELCAST_TRANSLATION_TIMEOUT_MS")
	overrideString(&cfg.Synthesis.Mode, "BABELCAST_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Command, "BABELCAST_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.Voice, "BABELCAST_SYNTHESIS_VOICE")
	overrideInt(&cfg.Synthesis.SampleRate, "BABELCAST_SYNTHESIS_SAMPLE_RATE")
	overrideInt(&cfg.Synthesis.TimeoutMS, "BABELCAST_SYNTHESIS_TIMEOUT_MS")
	overrideInt(&cfg.Broadcast.MaxInflight, "BABELCAST_BROADCAST_MAX_INFLIGHT")
	overrideFloat(&cfg.Buffer.MaxOutstandingSecs, "BABELCAST_BUFFER_MAX_OUTSTANDING_SECS")
	overrideInt(&cfg.Registry.HeartbeatTimeout, "BABELCAST_REGISTRY_HEARTBEAT_TIMEOUT_MS")
	overrideInt(&cfg.Registry.SweepInterval, "BABELCAST_REGISTRY_SWEEP_INTERVAL_MS")
	overrideString(&cfg.SegmentLog.Path, "BABELCAST_SEGMENT_LOG_PATH")
	overrideString(&cfg.SegmentLog.RetentionMode, "BABELCAST_SEGMENT_LOG_RETENTION_MODE")
	overrideInt(&cfg.SegmentLog.RetentionDays, "BABELCAST_SEGMENT_LOG_RETENTION_DAYS")
	overrideInt(&cfg.SegmentLog.MaxSessions, "BABELCAST_SEGMENT_LOG_MAX_SESSIONS")
	overrideBool(&cfg.SegmentLog.VacuumOnStart, "BABELCAST_SEGMENT_LOG_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Cache.Capacity <= 0 {
		return errors.New("cache.capacity must be positive")
	}
	if cfg.Cache.TTLSeconds <= 0 {
		return errors.New("cache.ttl_seconds must be positive")
	}
	switch cfg.Translation.Mode {
	case "mock", "http", "exec":
	default:
		return errors.New("translation.mode must be one of mock|http|exec")
	}
	if cfg.Translation.Mode == "http" && cfg.Translation.Endpoint == "" {
		return errors.New("translation.endpoint must be set when mode=http")
	}
	if cfg.Translation.Mode == "exec" && cfg.Translation.Command == "" {
		return errors.New("translation.command must be set when mode=exec")
	}
	if cfg.Translation.TimeoutMS <= 0 {
		return errors.New("translation.timeout_ms must be positive")
	}
	switch cfg.Synthesis.Mode {
	case "mock", "exec":
	default:
		return errors.New("synthesis.mode must be one of mock|exec")
	}
	if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
		return errors.New("synthesis.command must be set when mode=exec")
	}
	if cfg.Synthesis.SampleRate <= 0 {
		return errors.New("synthesis.sample_rate must be positive")
	}
	if cfg.Synthesis.TimeoutMS <= 0 {
		return errors.New("synthesis.timeout_ms must be positive")
	}
	if cfg.Broadcast.MaxInflight <= 0 {
		return errors.New("broadcast.max_inflight must be >= 1")
	}
	if cfg.Buffer.MaxOutstandingSecs <= 0 {
		return errors.New("buffer.max_outstanding_secs must be positive")
	}
	if cfg.Registry.HeartbeatTimeout <= 0 {
		return errors.New("registry.heartbeat_timeout_ms must be positive")
	}
	if cfg.Registry.SweepInterval <= 0 {
		return errors.New("registry.sweep_interval_ms must be positive")
	}
	if cfg.SegmentLog.Path == "" {
		return errors.New("segment_log.path must not be empty")
	}
	switch cfg.SegmentLog.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("segment_log.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.SegmentLog.RetentionDays < 0 {
		return errors.New("segment_log.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
