package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BiasCorrection holds the per-timeframe directional correction factors.
// Factors are multiplicative and applied after the confidence blend.
type BiasCorrection struct {
	BuyFactor  float64 `yaml:"buy_factor"`
	SellFactor float64 `yaml:"sell_factor"`
	HoldBoost  float64 `yaml:"hold_boost"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Feed struct {
		Symbols          []string      `yaml:"symbols"`
		WebSocketURL     string        `yaml:"websocket_url"`
		RestURL          string        `yaml:"rest_url"`
		BackupRestURL    string        `yaml:"backup_rest_url"`
		StalenessWindow  time.Duration `yaml:"staleness_window"`
		PollInterval     time.Duration `yaml:"poll_interval"`
		RequestTimeout   time.Duration `yaml:"request_timeout"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		BackoffBase      time.Duration `yaml:"backoff_base"`
		BackoffCap       time.Duration `yaml:"backoff_cap"`
		SubscriberBuffer int           `yaml:"subscriber_buffer"`
		CallbackBudget   time.Duration `yaml:"callback_budget"`
	} `yaml:"feed"`
	Monitor struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"monitor"`
	Confidence struct {
		BaseThreshold  float64                   `yaml:"base_threshold"`
		CandleHistory  int                       `yaml:"candle_history"`
		ContextTTL     time.Duration             `yaml:"context_ttl"`
		ContextTTLLong time.Duration             `yaml:"context_ttl_long"`
		BiasCorrection map[string]BiasCorrection `yaml:"bias_correction"`
	} `yaml:"confidence"`
	Account struct {
		StartingCash float64 `yaml:"starting_cash"`
		FeeRate      float64 `yaml:"fee_rate"`
	} `yaml:"account"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		BatchSize        int           `yaml:"batch_size"`
		BatchTimeout     time.Duration `yaml:"batch_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PRICE_STALENESS_WINDOW_SECONDS"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			c.Feed.StalenessWindow = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("MONITOR_INTERVAL_SECONDS"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			c.Monitor.Interval = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD_BASE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Confidence.BaseThreshold = f
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.StalenessWindow <= 0 {
		c.Feed.StalenessWindow = 10 * time.Second
	}
	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = 5 * time.Second
	}
	if c.Feed.RequestTimeout <= 0 {
		c.Feed.RequestTimeout = 3 * time.Second
	}
	if c.Feed.ReconnectDelay <= 0 {
		c.Feed.ReconnectDelay = 2 * time.Second
	}
	if c.Feed.PingInterval <= 0 {
		c.Feed.PingInterval = 20 * time.Second
	}
	if c.Feed.BackoffBase <= 0 {
		c.Feed.BackoffBase = time.Second
	}
	if c.Feed.BackoffCap <= 0 {
		c.Feed.BackoffCap = 30 * time.Second
	}
	if c.Feed.SubscriberBuffer <= 0 {
		c.Feed.SubscriberBuffer = 64
	}
	if c.Feed.CallbackBudget <= 0 {
		c.Feed.CallbackBudget = 500 * time.Millisecond
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 5 * time.Second
	}
	if c.Confidence.BaseThreshold <= 0 {
		c.Confidence.BaseThreshold = 0.45
	}
	if c.Confidence.CandleHistory <= 0 {
		c.Confidence.CandleHistory = 200
	}
	if c.Confidence.ContextTTL <= 0 {
		c.Confidence.ContextTTL = 5 * time.Minute
	}
	if c.Confidence.ContextTTLLong <= 0 {
		c.Confidence.ContextTTLLong = 15 * time.Minute
	}
	if len(c.Confidence.BiasCorrection) == 0 {
		c.Confidence.BiasCorrection = DefaultBiasCorrection()
	}
	if c.Account.StartingCash <= 0 {
		c.Account.StartingCash = 10000
	}
}

// DefaultBiasCorrection returns the stock correction table. Short timeframes
// historically over-trigger BUY and long timeframes over-trigger SELL; the
// factors lean against that skew. These are tuning values, not invariants.
func DefaultBiasCorrection() map[string]BiasCorrection {
	return map[string]BiasCorrection{
		"1m":  {BuyFactor: 0.85, SellFactor: 1.00, HoldBoost: 1.05},
		"5m":  {BuyFactor: 0.90, SellFactor: 1.00, HoldBoost: 1.03},
		"15m": {BuyFactor: 0.95, SellFactor: 1.00, HoldBoost: 1.00},
		"1h":  {BuyFactor: 1.00, SellFactor: 0.95, HoldBoost: 1.00},
		"4h":  {BuyFactor: 1.00, SellFactor: 0.90, HoldBoost: 1.03},
		"1d":  {BuyFactor: 1.00, SellFactor: 0.85, HoldBoost: 1.05},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	if c.Feed.WebSocketURL == "" && c.Feed.RestURL == "" {
		return fmt.Errorf("at least one of feed.websocket_url or feed.rest_url is required")
	}
	if c.Confidence.BaseThreshold >= 1 {
		return fmt.Errorf("confidence.base_threshold must be below 1.0, got %v", c.Confidence.BaseThreshold)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	for tf, bc := range c.Confidence.BiasCorrection {
		if bc.BuyFactor <= 0 || bc.SellFactor <= 0 {
			return fmt.Errorf("bias correction for %s must have positive factors", tf)
		}
	}
	return nil
}
