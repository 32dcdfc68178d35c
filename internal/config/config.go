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
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Audio       AudioConfig       `yaml:"audio"`
	STT         STTConfig         `yaml:"stt"`
	Session     SessionConfig     `yaml:"session"`
	TTS         TTSConfig         `yaml:"tts"`
	Geo         GeoConfig         `yaml:"geo"`
	ReportStore ReportStoreConfig `yaml:"report_store"`
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

type AudioConfig struct {
	Mode          string `yaml:"mode"` // exec, wav, mock
	Command       string `yaml:"command"`
	WAVPath       string `yaml:"wav_path"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	FrameSamples  int    `yaml:"frame_samples"`
	OpenTimeoutMS int    `yaml:"open_timeout_ms"`
}

type STTConfig struct {
	Mode           string            `yaml:"mode"` // exec, mock
	Command        string            `yaml:"command"`
	ModelPaths     map[string]string `yaml:"model_paths"`
	UtteranceMS    int               `yaml:"utterance_ms"`
	FlushTimeoutMS int               `yaml:"flush_timeout_ms"`
}

type SessionConfig struct {
	Language      string `yaml:"language"`
	WindowSeconds int    `yaml:"window_seconds"`
	QueueCapacity int    `yaml:"queue_capacity"`
	QueuePolicy   string `yaml:"queue_policy"` // block, drop_oldest
}

type TTSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // exec, mock
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
}

type GeoConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ReportStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxReports    int    `yaml:"max_reports"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "voaprotect-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			Mode:          "mock",
			SampleRate:    16000,
			Channels:      1,
			FrameSamples:  8000,
			OpenTimeoutMS: 3000,
		},
		STT: STTConfig{
			Mode: "mock",
			ModelPaths: map[string]string{
				"en": "./model",
				"fr": "./model-fr",
			},
			UtteranceMS:    2000,
			FlushTimeoutMS: 10000,
		},
		Session: SessionConfig{
			Language:      "en",
			WindowSeconds: 10,
			QueueCapacity: 16,
			QueuePolicy:   "block",
		},
		TTS: TTSConfig{
			Enabled: false,
			Mode:    "mock",
			Voice:   "en-US",
		},
		Geo: GeoConfig{
			Enabled:   false,
			Endpoint:  "http://ip-api.com/json",
			TimeoutMS: 3000,
		},
		ReportStore: ReportStoreConfig{
			Path:          "./data/voaprotect-reports.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxReports:    10000,
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
	overrideString(&cfg.RuntimeName, "VOA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "VOA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Audio.Mode, "VOA_AUDIO_MODE")
	overrideString(&cfg.Audio.Command, "VOA_AUDIO_COMMAND")
	overrideString(&cfg.Audio.WAVPath, "VOA_AUDIO_WAV_PATH")
	overrideInt(&cfg.Audio.SampleRate, "VOA_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "VOA_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.FrameSamples, "VOA_AUDIO_FRAME_SAMPLES")
	overrideInt(&cfg.Audio.OpenTimeoutMS, "VOA_AUDIO_OPEN_TIMEOUT_MS")
	overrideString(&cfg.STT.Mode, "VOA_STT_MODE")
	overrideString(&cfg.STT.Command, "VOA_STT_COMMAND")
	overrideInt(&cfg.STT.UtteranceMS, "VOA_STT_UTTERANCE_MS")
	overrideInt(&cfg.STT.FlushTimeoutMS, "VOA_STT_FLUSH_TIMEOUT_MS")
	overrideString(&cfg.Session.Language, "VOA_SESSION_LANGUAGE")
	overrideInt(&cfg.Session.WindowSeconds, "VOA_SESSION_WINDOW_SECONDS")
	overrideInt(&cfg.Session.QueueCapacity, "VOA_SESSION_QUEUE_CAPACITY")
	overrideString(&cfg.Session.QueuePolicy, "VOA_SESSION_QUEUE_POLICY")
	overrideBool(&cfg.TTS.Enabled, "VOA_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "VOA_TTS_MODE")
	overrideString(&cfg.TTS.Command, "VOA_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "VOA_TTS_VOICE")
	overrideBool(&cfg.Geo.Enabled, "VOA_GEO_ENABLED")
	overrideString(&cfg.Geo.Endpoint, "VOA_GEO_ENDPOINT")
	overrideInt(&cfg.Geo.TimeoutMS, "VOA_GEO_TIMEOUT_MS")
	overrideString(&cfg.ReportStore.Path, "VOA_REPORT_STORE_PATH")
	overrideString(&cfg.ReportStore.RetentionMode, "VOA_REPORT_STORE_RETENTION_MODE")
	overrideInt(&cfg.ReportStore.RetentionDays, "VOA_REPORT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.ReportStore.MaxReports, "VOA_REPORT_STORE_MAX_REPORTS")
	overrideBool(&cfg.ReportStore.VacuumOnStart, "VOA_REPORT_STORE_VACUUM_ON_START")
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
	switch cfg.Audio.Mode {
	case "exec", "wav", "mock":
	default:
		return errors.New("audio.mode must be one of exec|wav|mock")
	}
	if cfg.Audio.Mode == "exec" && cfg.Audio.Command == "" {
		return errors.New("audio.command must be set when mode=exec")
	}
	if cfg.Audio.Mode == "wav" && cfg.Audio.WAVPath == "" {
		return errors.New("audio.wav_path must be set when mode=wav")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.FrameSamples <= 0 {
		return errors.New("audio.frame_samples must be positive")
	}
	switch cfg.STT.Mode {
	case "exec", "mock":
	default:
		return errors.New("stt.mode must be one of exec|mock")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.Session.Language == "" {
		return errors.New("session.language must not be empty")
	}
	if _, ok := cfg.STT.ModelPaths[cfg.Session.Language]; !ok {
		return fmt.Errorf("stt.model_paths has no entry for language %q", cfg.Session.Language)
	}
	if cfg.Session.WindowSeconds <= 0 {
		return errors.New("session.window_seconds must be positive")
	}
	if cfg.Session.QueueCapacity <= 0 {
		return errors.New("session.queue_capacity must be >= 1")
	}
	switch cfg.Session.QueuePolicy {
	case "block", "drop_oldest":
	default:
		return errors.New("session.queue_policy must be one of block|drop_oldest")
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "exec", "mock":
		default:
			return errors.New("tts.mode must be one of exec|mock")
		}
		if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
	}
	if cfg.Geo.Enabled {
		if cfg.Geo.Endpoint == "" {
			return errors.New("geo.endpoint must not be empty when geo is enabled")
		}
		if cfg.Geo.TimeoutMS <= 0 {
			return errors.New("geo.timeout_ms must be positive when geo is enabled")
		}
	}
	if cfg.ReportStore.Path == "" {
		return errors.New("report_store.path must not be empty")
	}
	switch cfg.ReportStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("report_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.ReportStore.RetentionDays < 0 {
		return errors.New("report_store.retention_days must be >= 0")
	}
	return nil
}
