package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/pkg/logger"
)

// EnvPrefix is the prefix of every environment override, e.g. COT_CFTC_API_TOKEN.
const EnvPrefix = "COT"

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AuthToken       string        `yaml:"auth_token"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled" default:"true"`
			RPS     float64 `yaml:"rps" default:"5" validate:"gte=0"`
			Burst   int     `yaml:"burst" default:"10" validate:"gte=0"`
		} `yaml:"rate_limit"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		positioning.Params `yaml:",inline"`
		Workers            int `yaml:"workers" default:"1" validate:"gte=1"`
	} `yaml:"engine"`
	Source struct {
		// Kind picks the loader for serve mode: cftc, csv or clickhouse.
		Kind string `yaml:"kind" default:"cftc" validate:"oneof=cftc csv clickhouse"`
	} `yaml:"source"`
	CFTC struct {
		BaseURL    string        `yaml:"base_url" default:"https://publicreporting.cftc.gov/resource" validate:"url"`
		DatasetID  string        `yaml:"dataset_id" default:"TFF_COMBINED" validate:"required"`
		APIToken   string        `yaml:"api_token"`
		StartDate  string        `yaml:"start_date" default:"2010-01-01" validate:"datetime=2006-01-02"`
		EndDate    string        `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
		Limit      int           `yaml:"limit" default:"50000" validate:"gt=0"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
		RPS        float64       `yaml:"rps" default:"2" validate:"gt=0"`
	} `yaml:"cftc"`
	CSV struct {
		Paths []string `yaml:"paths"`
	} `yaml:"csv"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		Table        string        `yaml:"table" default:"cot_tff_observations" validate:"required"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"cot.crowding"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Default returns a valid configuration built from struct defaults alone.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.Engine.Params = positioning.DefaultParams()
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields Default().
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// overrides lists the environment variables honored on top of the file.
type overrides struct {
	Environment   string   `envconfig:"ENVIRONMENT"`
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	ServerPort    int      `envconfig:"SERVER_PORT"`
	AuthToken     string   `envconfig:"AUTH_TOKEN"`
	SourceKind    string   `envconfig:"SOURCE_KIND"`
	CFTCAPIToken  string   `envconfig:"CFTC_API_TOKEN"`
	CFTCDatasetID string   `envconfig:"CFTC_DATASET_ID"`
	CSVPaths      []string `envconfig:"CSV_PATHS"`
	CHHost        string   `envconfig:"CLICKHOUSE_HOST"`
	CHPassword    string   `envconfig:"CLICKHOUSE_PASSWORD"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC"`
}

// LoadWithEnv loads config from YAML and overrides with COT_* environment
// variables. A .env file in the working directory is read first if present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	var o overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.apply(o)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) apply(o overrides) {
	if o.Environment != "" {
		c.Environment = o.Environment
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.ServerPort != 0 {
		c.Server.Port = o.ServerPort
	}
	if o.AuthToken != "" {
		c.Server.AuthToken = o.AuthToken
	}
	if o.SourceKind != "" {
		c.Source.Kind = o.SourceKind
	}
	if o.CFTCAPIToken != "" {
		c.CFTC.APIToken = o.CFTCAPIToken
	}
	if o.CFTCDatasetID != "" {
		c.CFTC.DatasetID = o.CFTCDatasetID
	}
	if len(o.CSVPaths) > 0 {
		c.CSV.Paths = o.CSVPaths
	}
	if o.CHHost != "" {
		c.ClickHouse.Host = o.CHHost
	}
	if o.CHPassword != "" {
		c.ClickHouse.Password = o.CHPassword
	}
	if len(o.KafkaBrokers) > 0 {
		c.Kafka.Brokers = o.KafkaBrokers
	}
	if o.KafkaTopic != "" {
		c.Kafka.Topic = o.KafkaTopic
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Engine.Params.Normalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Source.Kind == "csv" && len(c.CSV.Paths) == 0 {
		return fmt.Errorf("csv.paths cannot be empty when source.kind is csv")
	}
	return nil
}

// KafkaEnabled reports whether a publisher can be built.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}
