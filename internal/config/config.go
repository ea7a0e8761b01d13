package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from built-in defaults,
// then an optional YAML file, then environment variables.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	Capture       CaptureConfig       `yaml:"capture"`
	Events        EventsConfig        `yaml:"events"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	NATS          NATSConfig          `yaml:"nats"`
	Observability ObservabilityConfig `yaml:"observability"`
	View          ViewConfig          `yaml:"view"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	Env         string `yaml:"env"`
	HTTPPort    string `yaml:"http_port"`
	GRPCPort    string `yaml:"grpc_port"`
	MetricsPort string `yaml:"metrics_port"`
}

type STTConfig struct {
	Provider        string        `yaml:"provider"` // mock, google
	LanguageCode    string        `yaml:"language_code"`
	SampleRateHz    int           `yaml:"sample_rate_hz"`
	InterimResults  bool          `yaml:"interim_results"`
	AudioEncoding   string        `yaml:"audio_encoding"`
	NoSpeechTimeout time.Duration `yaml:"no_speech_timeout"`
	MockDelay       time.Duration `yaml:"mock_delay"`
}

type CaptureConfig struct {
	RestartDelay time.Duration `yaml:"restart_delay"` // Pause before an automatic restart
}

type EventsConfig struct {
	Backend string `yaml:"backend"` // none, kafka, nats
}

type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	TopicTranscript string   `yaml:"topic_transcript"`
	TopicSession    string   `yaml:"topic_session"`
	Principal       string   `yaml:"principal"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json, console
	LogFile   string `yaml:"log_file"`   // used by the terminal view
}

type ViewConfig struct {
	Mode string `yaml:"mode"` // http, tui
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-voice-search",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsPort: "9090",
		},
		STT: STTConfig{
			Provider:        "mock",
			LanguageCode:    "en-US",
			SampleRateHz:    16000,
			InterimResults:  true,
			AudioEncoding:   "LINEAR16",
			NoSpeechTimeout: 8 * time.Second,
			MockDelay:       300 * time.Millisecond,
		},
		Events: EventsConfig{
			Backend: "none",
		},
		Kafka: KafkaConfig{
			TopicTranscript: "voicesearch.transcript",
			TopicSession:    "voicesearch.session",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "voicesearch",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			LogFile:   "voice-search.log",
		},
		View: ViewConfig{
			Mode: "http",
		},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile reads a YAML file on top of the defaults and then applies
// environment overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.Env = envOrDefault("ENV", cfg.Service.Env)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.MetricsPort = envOrDefault("METRICS_PORT", cfg.Service.MetricsPort)

	cfg.STT.Provider = envOrDefault("STT_PROVIDER", cfg.STT.Provider)
	cfg.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", cfg.STT.LanguageCode)
	cfg.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", cfg.STT.SampleRateHz)
	cfg.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", cfg.STT.InterimResults)
	cfg.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", cfg.STT.AudioEncoding)
	cfg.STT.NoSpeechTimeout = envOrDefaultDuration("STT_NO_SPEECH_TIMEOUT", cfg.STT.NoSpeechTimeout)
	cfg.STT.MockDelay = envOrDefaultDuration("STT_MOCK_DELAY", cfg.STT.MockDelay)

	cfg.Capture.RestartDelay = envOrDefaultDuration("CAPTURE_RESTART_DELAY", cfg.Capture.RestartDelay)

	cfg.Events.Backend = envOrDefault("EVENTS_BACKEND", cfg.Events.Backend)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled || cfg.Events.Backend == "kafka")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.TopicTranscript = envOrDefault("KAFKA_TOPIC_TRANSCRIPT", cfg.Kafka.TopicTranscript)
	cfg.Kafka.TopicSession = envOrDefault("KAFKA_TOPIC_SESSION", cfg.Kafka.TopicSession)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.NATS.URL = envOrDefault("NATS_URL", cfg.NATS.URL)
	cfg.NATS.SubjectPrefix = envOrDefault("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.LogFile = envOrDefault("LOG_FILE", cfg.Observability.LogFile)
	if cfg.Service.Env == "dev" && os.Getenv("LOG_FORMAT") == "" {
		cfg.Observability.LogFormat = "console"
	}

	cfg.View.Mode = envOrDefault("VIEW_MODE", cfg.View.Mode)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
