package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"StockForecaster/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Recorder backends.
const (
	BackendNone       = "none"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
	BackendKafka      = "kafka"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"3m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
	} `yaml:"server"`
	Market struct {
		BaseURL      string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		UserAgent    string        `yaml:"user_agent" default:"Mozilla/5.0"`
		Proxy        string        `yaml:"proxy"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		Tickers      []string      `yaml:"tickers" default:"[\"AAPL\",\"MSFT\",\"AMZN\",\"TSLA\",\"GOOG\",\"META\",\"TSM\",\"NVDA\",\"NFLX\",\"AMD\"]"`
		DefaultStart string        `yaml:"default_start" default:"2014-01-01"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"1h"`
	} `yaml:"market"`
	Analysis struct {
		SignificanceLevel float64       `yaml:"significance_level" default:"0.05"`
		DecomposePeriod   int           `yaml:"decompose_period" default:"30"`
		DecomposeModel    string        `yaml:"decompose_model" default:"additive"`
		SeasonalPeriod    int           `yaml:"seasonal_period" default:"12"`
		Confidence        float64       `yaml:"confidence" default:"0.95"`
		RunTimeout        time.Duration `yaml:"run_timeout" default:"2m"`
		Auto              struct {
			SeasonalPeriod int    `yaml:"seasonal_period" default:"12"`
			MaxP           int    `yaml:"max_p" default:"3"`
			MaxQ           int    `yaml:"max_q" default:"3"`
			MaxD           int    `yaml:"max_d" default:"2"`
			Criterion      string `yaml:"criterion" default:"aic"`
		} `yaml:"auto"`
	} `yaml:"analysis"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"5"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.5"`
	} `yaml:"rate_limit"`
	Cache struct {
		MemoryMaxSize int `yaml:"memory_max_size" default:"256"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"stockforecaster"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Recorder struct {
		Backend    string `yaml:"backend" default:"none"`
		Sink       string `yaml:"sink" default:"sqlite"`
		BufferSize int    `yaml:"buffer_size" default:"256"`
	} `yaml:"recorder"`
	SQLite struct {
		Path string `yaml:"path" default:"data/forecasts.db"`
	} `yaml:"sqlite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"forecaster"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"forecast.completed"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"stockforecaster-recorder"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Schedule struct {
		WarmupCron string `yaml:"warmup_cron"`
	} `yaml:"schedule"`
	Dashboard struct {
		Title      string `yaml:"title" default:"Stock Market Forecaster"`
		Subtitle   string `yaml:"subtitle" default:"Forecasting Stock Price of Selected Company"`
		HeroImage  string `yaml:"hero_image"`
		SocialText string `yaml:"social_text" default:"Connect with me on Social Media"`
		SocialURL  string `yaml:"social_url" default:"https://www.instagram.com/"`
		SocialIcon string `yaml:"social_icon" default:"https://icones.pro/wp-content/uploads/2021/02/instagram-logo-icone4.png"`
	} `yaml:"dashboard"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills unset fields from defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("MARKET_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := getenv("TICKERS"); v != "" {
		c.Market.Tickers = util.SplitCSV(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		// host:port
		for i := len(v) - 1; i >= 0; i-- {
			if v[i] == ':' {
				c.Cache.Redis.Host = v[:i]
				if p, err := strconv.Atoi(v[i+1:]); err == nil {
					c.Cache.Redis.Port = p
				}
				break
			}
		}
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("RECORDER_BACKEND"); v != "" {
		c.Recorder.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Market.Tickers) == 0 {
		return fmt.Errorf("market.tickers cannot be empty")
	}
	if _, ok := util.ParseTime(c.Market.DefaultStart); !ok {
		return fmt.Errorf("market.default_start must be YYYY-MM-DD, got '%s'", c.Market.DefaultStart)
	}
	if c.Analysis.SignificanceLevel <= 0 || c.Analysis.SignificanceLevel >= 1 {
		return fmt.Errorf("analysis.significance_level must be in (0,1)")
	}
	if c.Analysis.Confidence <= 0 || c.Analysis.Confidence >= 1 {
		return fmt.Errorf("analysis.confidence must be in (0,1)")
	}
	if c.Analysis.DecomposePeriod < 2 {
		return fmt.Errorf("analysis.decompose_period must be at least 2")
	}
	switch c.Recorder.Backend {
	case BackendNone, BackendSQLite, BackendClickHouse:
	case BackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required for recorder.backend 'kafka'")
		}
	default:
		return fmt.Errorf("recorder.backend must be one of none, sqlite, clickhouse, kafka, got '%s'", c.Recorder.Backend)
	}
	if c.Kafka.Consumer.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required when kafka.consumer.enabled")
		}
		if c.Recorder.Sink != BackendSQLite && c.Recorder.Sink != BackendClickHouse {
			return fmt.Errorf("recorder.sink must be 'sqlite' or 'clickhouse', got '%s'", c.Recorder.Sink)
		}
		// one process writes to a single store
		if b := c.Recorder.Backend; (b == BackendSQLite || b == BackendClickHouse) && b != c.Recorder.Sink {
			return fmt.Errorf("recorder.sink '%s' must match recorder.backend '%s'", c.Recorder.Sink, b)
		}
	}
	return nil
}

// StoreBackend reports which database, if any, this process writes forecast runs to.
// The Kafka backend only publishes; the consumer side persists into the sink.
func (c *Config) StoreBackend() string {
	switch c.Recorder.Backend {
	case BackendSQLite, BackendClickHouse:
		return c.Recorder.Backend
	}
	if c.Kafka.Consumer.Enabled {
		return c.Recorder.Sink
	}
	return BackendNone
}
