package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Speech    SpeechConfig    `yaml:"speech"`
	Recommend RecommendConfig `yaml:"recommend"`
	Client    ClientConfig    `yaml:"client"`
	Menu      []Dish          `yaml:"menu" validate:"dive"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
}

type AudioConfig struct {
	// MaxChunkBytes bounds a single decoded audio chunk.
	MaxChunkBytes int `yaml:"max_chunk_bytes" validate:"min=1"`
	// MaxSessionBytes bounds the total buffered audio per recording cycle.
	MaxSessionBytes int `yaml:"max_session_bytes" validate:"min=1"`
	// ProcessTimeout bounds the transcribe+recommend pipeline per cycle.
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

type SpeechConfig struct {
	// BaseURL of an OpenAI-compatible transcription endpoint. Empty means
	// the canned transcriber is used.
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	// APIKey is taken from SPEECH_API_KEY when unset.
	APIKey string `yaml:"-"`
}

type RecommendConfig struct {
	// BaseURL of an OpenAI-compatible chat completions endpoint
	// (DeepSeek by default). Empty means the canned recommender is used.
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	MaxItems int    `yaml:"max_items" validate:"min=1,max=10"`
	// APIKey is taken from DEEPSEEK_API_KEY when unset.
	APIKey string `yaml:"-"`
}

// ClientConfig tunes the voice session client (TUI and embedded uses).
type ClientConfig struct {
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectAttempts int           `yaml:"reconnect_attempts" validate:"min=1"`
}

// Dish is one menu item offered to the recommender and served on the
// read-only menu endpoint.
type Dish struct {
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Price       float64  `yaml:"price" json:"price" validate:"min=0"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Audio: AudioConfig{
			MaxChunkBytes:   1 << 20,  // 1 MiB per chunk
			MaxSessionBytes: 32 << 20, // 32 MiB per cycle
			ProcessTimeout:  60 * time.Second,
		},
		Speech: SpeechConfig{
			Model:    "whisper-1",
			Language: "zh",
		},
		Recommend: RecommendConfig{
			Model:    "deepseek-chat",
			MaxItems: 5,
		},
		Client: ClientConfig{
			ReconnectDelay:    time.Second,
			ReconnectAttempts: 5,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML config at path, applies defaults for missing
// fields, pulls API keys from the environment and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Speech.APIKey = os.Getenv("SPEECH_API_KEY")
	cfg.Recommend.APIKey = os.Getenv("DEEPSEEK_API_KEY")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
