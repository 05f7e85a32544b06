package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		DisableCORS     bool          `yaml:"disable_cors"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	// defaults cannot tell an explicit false from unset, so opt-outs are negative
	Metrics struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		Issuer          string        `yaml:"issuer" default:"priceportal"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl" default:"5m"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" default:"24h"`
		BcryptCost      int           `yaml:"bcrypt_cost" default:"10"`
		RateLimit       struct {
			RequestsPerMinute int `yaml:"requests_per_minute" default:"30"`
			Burst             int `yaml:"burst" default:"10"`
		} `yaml:"rate_limit"`
	} `yaml:"auth"`
	Postgres struct {
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns" default:"10"`
		MinConns        int32         `yaml:"min_conns" default:"1"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" default:"1h"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		Disabled   bool          `yaml:"disabled"`
		HistoryTTL time.Duration `yaml:"history_ttl" default:"15m"`
		RateTTL    time.Duration `yaml:"rate_ttl" default:"1h"`
		MaxEntries int           `yaml:"max_entries" default:"1000"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"portal.predictions"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			Sync         bool          `yaml:"sync"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"priceportal-archiver"`
			Workers    int           `yaml:"workers" default:"2"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"portal.predictions.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"priceportal"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	MarketData struct {
		BaseURL           string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		Timeout           time.Duration `yaml:"timeout" default:"10s"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"5"`
		Burst             int           `yaml:"burst" default:"5"`
		UserAgent         string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; priceportal/1.0)"`
		RateSymbol        string        `yaml:"rate_symbol" default:"INR=X"`
		FallbackRate      float64       `yaml:"fallback_rate" default:"83.0"`
	} `yaml:"market_data"`
	Model struct {
		Engine       string        `yaml:"engine" default:"native"` // native or http
		ArtifactPath string        `yaml:"artifact_path" default:"artifacts/stock_predictor.json"`
		ScalerPath   string        `yaml:"scaler_path" default:"artifacts/scaler.json"`
		ServingURL   string        `yaml:"serving_url"`
		ServingName  string        `yaml:"serving_name" default:"stock_predictor"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"model"`
	Training struct {
		Symbol     string        `yaml:"symbol" default:"SPY"`
		Start      string        `yaml:"start" default:"2010-01-01"`
		End        string        `yaml:"end" default:"2024-01-01"`
		Epochs     int           `yaml:"epochs" default:"20"`
		BatchSize  int           `yaml:"batch_size" default:"32"`
		TrainRatio float64       `yaml:"train_ratio" default:"0.8"`
		TrainerURL string        `yaml:"trainer_url" default:"http://localhost:8501"`
		Timeout    time.Duration `yaml:"timeout" default:"30m"`
	} `yaml:"training"`
}

// Load reads a YAML configuration file and fills in defaults. An empty
// path yields a pure-defaults config.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML, applies .env and environment overrides, then validates.
func LoadWithEnv(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (or JWT_SECRET)")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth token lifetimes must be positive")
	}
	if c.Model.Engine != "native" && c.Model.Engine != "http" {
		return fmt.Errorf("model.engine must be 'native' or 'http', got '%s'", c.Model.Engine)
	}
	if c.Model.Engine == "http" && c.Model.ServingURL == "" {
		return errors.New("model.serving_url is required for the http engine")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Training.TrainRatio <= 0 || c.Training.TrainRatio >= 1 {
		return fmt.Errorf("training.train_ratio must be in (0,1), got %v", c.Training.TrainRatio)
	}
	if _, err := c.TrainingRange(); err != nil {
		return err
	}
	return nil
}

// DateRange is a half-open [Start, End) calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TrainingRange parses the configured training window.
func (c *Config) TrainingRange() (DateRange, error) {
	start, err := time.Parse("2006-01-02", c.Training.Start)
	if err != nil {
		return DateRange{}, fmt.Errorf("training.start: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.Training.End)
	if err != nil {
		return DateRange{}, fmt.Errorf("training.end: %w", err)
	}
	if !end.After(start) {
		return DateRange{}, errors.New("training.end must be after training.start")
	}
	return DateRange{Start: start, End: end}, nil
}
