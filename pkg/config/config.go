package config

import (
	"fmt"
	"os"
	"strings"
	"time"

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
	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		RecommendTopic   string   `yaml:"recommend_topic"`
		PerformanceTopic string   `yaml:"performance_topic"`
		BarsTopic        string   `yaml:"bars_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
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
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MarketData struct {
		HistoryURL     string        `yaml:"history_url"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		Timeout        time.Duration `yaml:"timeout"`
		RetryMax       int           `yaml:"retry_max"`
		RetryBackoff   time.Duration `yaml:"retry_backoff"`
		SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"market_data"`
	Regions []string `yaml:"regions"`
	Models  struct {
		ArtifactDir   string  `yaml:"artifact_dir"`
		MinHistory    int     `yaml:"min_history"`
		LabelHorizon  int     `yaml:"label_horizon"`
		TestFraction  float64 `yaml:"test_fraction"`
		TopN          int     `yaml:"top_n"`
		GradientBoost struct {
			Trees        int     `yaml:"trees"`
			Depth        int     `yaml:"depth"`
			LearningRate float64 `yaml:"learning_rate"`
			Weight       float64 `yaml:"weight"`
		} `yaml:"gradient_boost"`
		GradientBoostAlt struct {
			Trees        int     `yaml:"trees"`
			Depth        int     `yaml:"depth"`
			LearningRate float64 `yaml:"learning_rate"`
			Weight       float64 `yaml:"weight"`
		} `yaml:"gradient_boost_alt"`
		Forest struct {
			Trees     int     `yaml:"trees"`
			Depth     int     `yaml:"depth"`
			SampleFrc float64 `yaml:"sample_fraction"`
			Weight    float64 `yaml:"weight"`
		} `yaml:"forest"`
		Intensive struct {
			Trees int `yaml:"trees"`
			Depth int `yaml:"depth"`
		} `yaml:"intensive"`
	} `yaml:"models"`
	Regime struct {
		Window        int     `yaml:"window"`
		TrendBull     float64 `yaml:"trend_bull"`
		TrendBear     float64 `yaml:"trend_bear"`
		VolatilityLow float64 `yaml:"volatility_low"`
		VolatilityHi  float64 `yaml:"volatility_high"`
	} `yaml:"regime"`
	Learner struct {
		RetrainBelow  float64       `yaml:"retrain_below"`
		FineTuneBelow float64       `yaml:"fine_tune_below"`
		FlatBand      float64       `yaml:"flat_band"`
		MinSamples    int           `yaml:"min_samples"`
		TrainTimeout  time.Duration `yaml:"train_timeout"`
		QueueWorkers  int           `yaml:"queue_workers"`
	} `yaml:"learner"`
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
	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("REGIONS"); v != "" {
		c.Regions = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	m := &c.Models
	if m.MinHistory <= 0 {
		m.MinHistory = 60
	}
	if m.LabelHorizon <= 0 {
		m.LabelHorizon = 1
	}
	if m.TestFraction <= 0 || m.TestFraction >= 1 {
		m.TestFraction = 0.2
	}
	if m.TopN <= 0 {
		m.TopN = 10
	}
	if m.GradientBoost.Trees <= 0 {
		m.GradientBoost.Trees = 200
		m.GradientBoost.Depth = 4
		m.GradientBoost.LearningRate = 0.05
	}
	if m.GradientBoostAlt.Trees <= 0 {
		m.GradientBoostAlt.Trees = 100
		m.GradientBoostAlt.Depth = 6
		m.GradientBoostAlt.LearningRate = 0.1
	}
	if m.Forest.Trees <= 0 {
		m.Forest.Trees = 100
		m.Forest.Depth = 8
		m.Forest.SampleFrc = 0.8
	}
	if m.GradientBoost.Weight <= 0 {
		m.GradientBoost.Weight = 0.5
		m.GradientBoostAlt.Weight = 0.3
		m.Forest.Weight = 0.2
	}
	if m.Intensive.Trees <= 0 {
		m.Intensive.Trees = 500
		m.Intensive.Depth = 15
	}

	r := &c.Regime
	if r.Window <= 0 {
		r.Window = 20
	}
	if r.TrendBull == 0 {
		r.TrendBull = 3.0
	}
	if r.TrendBear == 0 {
		r.TrendBear = -3.0
	}
	if r.VolatilityLow == 0 {
		r.VolatilityLow = 0.25
	}
	if r.VolatilityHi == 0 {
		r.VolatilityHi = 0.4
	}

	l := &c.Learner
	if l.RetrainBelow == 0 {
		l.RetrainBelow = 0.50
	}
	if l.FineTuneBelow == 0 {
		l.FineTuneBelow = 0.55
	}
	if l.FlatBand == 0 {
		l.FlatBand = 0.5
	}
	if l.MinSamples <= 0 {
		l.MinSamples = 10
	}
	if l.TrainTimeout <= 0 {
		l.TrainTimeout = 10 * time.Minute
	}
	if l.QueueWorkers <= 0 {
		l.QueueWorkers = 1
	}

	if c.MarketData.RetryMax <= 0 {
		c.MarketData.RetryMax = 3
	}
	if c.MarketData.RetryBackoff <= 0 {
		c.MarketData.RetryBackoff = 500 * time.Millisecond
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 15 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("regions cannot be empty")
	}
	if c.Models.ArtifactDir == "" {
		return fmt.Errorf("models.artifact_dir is required")
	}
	if c.Learner.RetrainBelow >= c.Learner.FineTuneBelow {
		return fmt.Errorf("learner.retrain_below must be less than learner.fine_tune_below")
	}
	w := c.Models.GradientBoost.Weight + c.Models.GradientBoostAlt.Weight + c.Models.Forest.Weight
	if w < 0.999 || w > 1.001 {
		return fmt.Errorf("model ensemble weights must sum to 1.0, got %.3f", w)
	}
	return nil
}
