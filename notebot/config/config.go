package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Transport
	TelegramToken string `yaml:"telegram_token"`
	HTTPAddr      string `yaml:"http_addr" default:":8000"`
	JWTSecret     string `yaml:"jwt_secret"`
	BotWorkers    int    `yaml:"bot_workers" default:"8" validate:"min=1"`

	// Note store
	DBDriver   string `yaml:"db_driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	DBPath     string `yaml:"db_path" default:"notes.db"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port" default:"5432"`
	DBName     string `yaml:"db_name"`

	// Models
	ModelBackend       string        `yaml:"model_backend" default:"ollama" validate:"oneof=ollama openai"`
	OllamaURL          string        `yaml:"ollama_url" default:"http://localhost:11434/api" validate:"url"`
	OpenAIBaseURL      string        `yaml:"openai_base_url" default:"http://localhost:8080/v1" validate:"url"`
	OpenAIAPIKey       string        `yaml:"openai_api_key"`
	LLMModelName       string        `yaml:"llm_model_name" default:"phi" validate:"required"`
	EmbeddingModelName string        `yaml:"embedding_model_name" default:"all-minilm" validate:"required"`
	TranscribeBackend  string        `yaml:"transcribe_backend" default:"whisper" validate:"oneof=whisper openai"`
	WhisperURL         string        `yaml:"whisper_url" default:"http://localhost:8178" validate:"url"`
	WhisperModelSize   string        `yaml:"whisper_model_size" default:"base"`
	WhisperLanguage    string        `yaml:"whisper_language"`
	WhisperBeamSize    int           `yaml:"whisper_beam_size" default:"5" validate:"min=1"`
	ModelTimeout       time.Duration `yaml:"model_timeout" default:"120s"`
	PromptsFile        string        `yaml:"prompts_file"`

	// Voice archive (optional)
	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket" default:"voice-notes"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	// Logging
	LogDir     string `yaml:"log_dir" default:"./logs"`
	LogConsole bool   `yaml:"log_console"`
}

// LoadConfig resolves settings in order: struct defaults, the YAML file named by
// CONFIG_FILE, then environment (a local .env file is merged into it first).
func LoadConfig() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return cfg, errors.Wrap(err, "config defaults")
	}

	// A missing .env is normal in containers.
	_ = godotenv.Load()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envParser
	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.BotWorkers = env.Int("BOT_WORKERS", cfg.BotWorkers)

	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)

	cfg.ModelBackend = getEnv("MODEL_BACKEND", cfg.ModelBackend)
	cfg.OllamaURL = getEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.LLMModelName = getEnv("LLM_MODEL_NAME", cfg.LLMModelName)
	cfg.EmbeddingModelName = getEnv("EMBEDDING_MODEL_NAME", cfg.EmbeddingModelName)
	cfg.TranscribeBackend = getEnv("TRANSCRIBE_BACKEND", cfg.TranscribeBackend)
	cfg.WhisperURL = getEnv("WHISPER_URL", cfg.WhisperURL)
	cfg.WhisperModelSize = getEnv("WHISPER_MODEL_SIZE", cfg.WhisperModelSize)
	cfg.WhisperLanguage = getEnv("WHISPER_LANGUAGE", cfg.WhisperLanguage)
	cfg.WhisperBeamSize = env.Int("WHISPER_BEAM_SIZE", cfg.WhisperBeamSize)
	cfg.ModelTimeout = env.Duration("MODEL_TIMEOUT", cfg.ModelTimeout)
	cfg.PromptsFile = getEnv("PROMPTS_FILE", cfg.PromptsFile)

	cfg.MinIOEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinIOEndpoint)
	cfg.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIOAccessKey)
	cfg.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIOSecretKey)
	cfg.MinIOBucket = getEnv("MINIO_BUCKET", cfg.MinIOBucket)
	cfg.MinIOUseSSL = env.Bool("MINIO_USE_SSL", cfg.MinIOUseSSL)

	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogConsole = env.Bool("LOG_CONSOLE", cfg.LogConsole)
	return env.err
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

// envParser reads typed variables. Unset or empty variables keep the fallback;
// the first value that does not parse is kept in err.
type envParser struct {
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = errors.Wrapf(err, "invalid %s=%q", key, value)
	}
}

func (p *envParser) Int(key string, fallback int) int {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return fallback
	}
	return n
}

func (p *envParser) Bool(key string, fallback bool) bool {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return fallback
	}
	return b
}

func (p *envParser) Duration(key string, fallback time.Duration) time.Duration {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return fallback
	}
	return d
}

// PostgresDSN builds the connection string for the postgres driver.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
	)
}

// HTTPEnabled reports whether the authenticated HTTP API can be served; it needs a JWT secret.
func (c Config) HTTPEnabled() bool {
	return c.JWTSecret != ""
}

// ArchiveEnabled reports whether voice recordings should be kept in object storage.
func (c Config) ArchiveEnabled() bool {
	return c.MinIOEndpoint != ""
}
