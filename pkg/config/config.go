package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"PairScout/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Sink struct {
		Type         string        `yaml:"type"` // clickhouse or memory
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"sink"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		QuotesTopic    string   `yaml:"quotes_topic"`
		SignalsTopic   string   `yaml:"signals_topic"`
		ErrorLogsTopic string   `yaml:"error_logs_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
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
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Instruments    []string      `yaml:"instruments"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Discovery struct {
		WindowDays      int           `yaml:"window_days"`
		MinObservations int           `yaml:"min_observations"`
		TopK            int           `yaml:"top_k"`
		MaxTupleSize    int           `yaml:"max_tuple_size"`
		MaxPValue       float64       `yaml:"max_p_value"`
		MinHalfLifeDays float64       `yaml:"min_half_life_days"`
		MaxHalfLifeDays float64       `yaml:"max_half_life_days"`
		MinSharpe       float64       `yaml:"min_sharpe"`
		Workers         int           `yaml:"workers"`
		IndexKind       string        `yaml:"index_kind"` // exact or graph
		QueueWorkers    int           `yaml:"queue_workers"`
		ResultCacheTTL  time.Duration `yaml:"result_cache_ttl"`
	} `yaml:"discovery"`
	Signals struct {
		EntryZ        float64 `yaml:"entry_z"`
		ExitZ         float64 `yaml:"exit_z"`
		StopZ         float64 `yaml:"stop_z"`
		MaxHoldDays   int     `yaml:"max_hold_days"`
		CapitalPerLeg float64 `yaml:"capital_per_leg"`
	} `yaml:"signals"`
	Backtest struct {
		CommissionRate float64 `yaml:"commission_rate"`
		SlippageRate   float64 `yaml:"slippage_rate"`
		InitialCapital float64 `yaml:"initial_capital"`
		RiskFreeRate   float64 `yaml:"risk_free_rate"`
	} `yaml:"backtest"`
	Reporting struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"reporting"`
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
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Feed.Instruments = strings.Split(v, ",")
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_QUOTES_TOPIC"); v != "" {
		c.Kafka.QuotesTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DISCOVERY_WORKERS"); v != "" {
		if n := util.ParseIntDefault(v, 0); n > 0 {
			c.Discovery.Workers = n
		}
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n := util.ParseIntDefault(v, 0); n > 0 {
			c.Server.Port = n
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Discovery.WindowDays == 0 {
		c.Discovery.WindowDays = 252
	}
	if c.Discovery.MinObservations == 0 {
		c.Discovery.MinObservations = 252
	}
	if c.Discovery.TopK == 0 {
		c.Discovery.TopK = 10
	}
	if c.Discovery.MaxTupleSize == 0 {
		c.Discovery.MaxTupleSize = 2
	}
	if c.Discovery.MaxPValue == 0 {
		c.Discovery.MaxPValue = 0.05
	}
	if c.Discovery.MinHalfLifeDays == 0 {
		c.Discovery.MinHalfLifeDays = 5
	}
	if c.Discovery.MaxHalfLifeDays == 0 {
		c.Discovery.MaxHalfLifeDays = 30
	}
	if c.Discovery.MinSharpe == 0 {
		c.Discovery.MinSharpe = 1.0
	}
	if c.Discovery.Workers == 0 {
		c.Discovery.Workers = 4
	}
	if c.Discovery.IndexKind == "" {
		c.Discovery.IndexKind = "exact"
	}
	if c.Signals.EntryZ == 0 {
		c.Signals.EntryZ = 2.0
	}
	if c.Signals.ExitZ == 0 {
		c.Signals.ExitZ = 0.5
	}
	if c.Signals.StopZ == 0 {
		c.Signals.StopZ = 3.5
	}
	if c.Signals.MaxHoldDays == 0 {
		c.Signals.MaxHoldDays = 20
	}
	if c.Signals.CapitalPerLeg == 0 {
		c.Signals.CapitalPerLeg = 10_000
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 100_000
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Sink.Type == "" {
		return fmt.Errorf("sink.type is required")
	}
	if c.Sink.Type != "clickhouse" && c.Sink.Type != "memory" {
		return fmt.Errorf("sink.type must be 'clickhouse' or 'memory', got '%s'", c.Sink.Type)
	}
	if len(c.Feed.Instruments) == 0 {
		return fmt.Errorf("feed.instruments cannot be empty")
	}
	if !(c.Signals.ExitZ < c.Signals.EntryZ && c.Signals.EntryZ < c.Signals.StopZ) {
		return fmt.Errorf("signals thresholds must satisfy exit_z < entry_z < stop_z")
	}
	if c.Discovery.IndexKind != "exact" && c.Discovery.IndexKind != "graph" {
		return fmt.Errorf("discovery.index_kind must be 'exact' or 'graph', got '%s'", c.Discovery.IndexKind)
	}
	return nil
}
