package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development staging production"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Stream struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		BufferSize     int           `yaml:"buffer_size" default:"256"`
	} `yaml:"stream"`
	Exchanges struct {
		Primary   string                     `yaml:"primary" validate:"required"`
		Fallbacks []string                   `yaml:"fallbacks"`
		Accounts  map[string]ExchangeAccount `yaml:"accounts"`
	} `yaml:"exchanges"`
	Router struct {
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"30s"`
		MinOrderSize float64       `yaml:"min_order_size"`
		MaxOrderSize float64       `yaml:"max_order_size"`
	} `yaml:"router"`
	Retry struct {
		MaxRetries int           `yaml:"max_retries" default:"3"`
		BaseDelay  time.Duration `yaml:"base_delay" default:"1s"`
		MaxDelay   time.Duration `yaml:"max_delay" default:"10s"`
		Multiplier float64       `yaml:"multiplier" default:"2"`
	} `yaml:"retry"`
	Intake struct {
		MaxSignalsPerMinute int     `yaml:"max_signals_per_minute" default:"5"`
		MinConfidence       float64 `yaml:"min_confidence" default:"70"`
		PriorityThreshold   float64 `yaml:"priority_threshold" default:"85"`
		AuditSize           int     `yaml:"audit_size" default:"500"`
		Workers             int     `yaml:"workers" default:"2"`
	} `yaml:"intake"`
	Risk struct {
		MaxRiskPerTrade     float64 `yaml:"max_risk_per_trade" default:"0.02"`
		MaxDailyLoss        float64 `yaml:"max_daily_loss" default:"0.05"`
		MaxDrawdown         float64 `yaml:"max_drawdown"`
		MaxConcurrentTrades int     `yaml:"max_concurrent_trades" default:"5"`
		MaxDailyTrades      int     `yaml:"max_daily_trades" default:"20"`
		MinConfidence       float64 `yaml:"min_confidence" default:"60"`
		MaxLeverage         float64 `yaml:"max_leverage" default:"3"`
		MaxPositionSize     float64 `yaml:"max_position_size" default:"0.25"`
		CorrelationLimit    int     `yaml:"correlation_limit" default:"3"`
		VolatilityLimit     float64 `yaml:"volatility_limit"`
		LiquidityThreshold  float64 `yaml:"liquidity_threshold"`
		MinOrderValue       float64 `yaml:"min_order_value" default:"10"`
		PortfolioValue      float64 `yaml:"portfolio_value" validate:"gt=0"`
	} `yaml:"risk"`
	Cache struct {
		Type   string `yaml:"type" default:"memory" validate:"oneof=memory redis"`
		Redis  struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"coinroute"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Backend struct {
		Type         string        `yaml:"type" default:"none" validate:"oneof=kafka clickhouse none"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"orders"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"coinroute"`
			Topic      string        `yaml:"topic" default:"signals"`
			OffsetFrom string        `yaml:"offset_from" default:"earliest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"250ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coinroute"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// ExchangeAccount holds credentials and rate caps for one exchange.
// Zero caps fall back to the built-in per-exchange defaults.
type ExchangeAccount struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Sandbox   bool   `yaml:"sandbox"`
	PerSecond int    `yaml:"per_second"`
	PerMinute int    `yaml:"per_minute"`
	PerHour   int    `yaml:"per_hour"`
}

// Load reads and parses a YAML configuration file. Struct defaults and
// the environment preset are applied first, then file values on top, so
// explicit keys override both.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var env struct {
		Environment string `yaml:"environment"`
	}
	if err := yaml.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.Environment = env.Environment
	c.applyPreset()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
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

	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("PRIMARY_EXCHANGE"); v != "" {
		c.Exchanges.Primary = v
	}
	if v := os.Getenv("FALLBACK_EXCHANGES"); v != "" {
		c.Exchanges.Fallbacks = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	for name, acct := range c.Exchanges.Accounts {
		prefix := strings.ToUpper(name)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			acct.APIKey = v
		}
		if v := os.Getenv(prefix + "_API_SECRET"); v != "" {
			acct.APISecret = v
		}
		c.Exchanges.Accounts[name] = acct
	}

	return c, nil
}

// applyPreset tightens or loosens the numeric policy limits per
// environment. It runs between defaults.Set and the YAML unmarshal, so
// preset values are baseline defaults and any key set explicitly in the
// file still wins.
func (c *Config) applyPreset() {
	switch c.Environment {
	case "development":
		c.Risk.MaxRiskPerTrade = 0.05
		c.Risk.MaxDailyTrades = 100
		c.Intake.MaxSignalsPerMinute = 20
		c.Retry.MaxRetries = 1
	case "staging":
		c.Risk.MaxRiskPerTrade = 0.03
		c.Risk.MaxDailyTrades = 50
		c.Intake.MaxSignalsPerMinute = 10
	case "production":
		// struct defaults are the production values
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty with the kafka backend")
	}
	if _, ok := c.Exchanges.Accounts[c.Exchanges.Primary]; !ok {
		return fmt.Errorf("exchanges.accounts is missing the primary exchange '%s'", c.Exchanges.Primary)
	}
	for _, name := range c.Exchanges.Fallbacks {
		if _, ok := c.Exchanges.Accounts[name]; !ok {
			return fmt.Errorf("exchanges.accounts is missing the fallback exchange '%s'", name)
		}
	}
	return nil
}
