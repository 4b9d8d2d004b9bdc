package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/strategy"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultRefreshInterval = 10 * time.Second
	DefaultTimeout         = 10 * time.Second
	DefaultRetryCount      = 3
)

type Config struct {
	// 基础配置
	Markets         []MarketConfig `json:"markets" yaml:"markets"`                   // 交易市场列表
	RefreshInterval string         `json:"refresh_interval" yaml:"refresh_interval"` // 策略执行间隔
	Proxy           string         `json:"proxy" yaml:"proxy"`                       // HTTP(S) 代理

	Database Database `json:"database" yaml:"database"`

	// 交易所配置
	ExchangeConfig ExchangeConfig `json:"exchange_config" yaml:"exchange_config"`

	Log LogConfig `json:"log" yaml:"log"`
}

type MarketConfig struct {
	ID                    string `json:"id" yaml:"id"`                                           // 交易所市场ID
	Name                  string `json:"name" yaml:"name"`                                       // 展示名称
	BaseCurrency          string `json:"base_currency" yaml:"base_currency"`                     // 基础货币
	CounterCurrency       string `json:"counter_currency" yaml:"counter_currency"`               // 计价货币
	CounterCurrencyBudget string `json:"counter_currency_budget" yaml:"counter_currency_budget"` // 每次买入花费
	MinimumGainFraction   string `json:"minimum_gain_fraction" yaml:"minimum_gain_fraction"`     // 最小涨幅, eg: "0.02"
}

type Database struct {
	Driver  string `json:"driver" yaml:"driver"`     // postgres / sqlite, 为空则不持久化
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

type ExchangeConfig struct {
	Mode       string `json:"mode" yaml:"mode"` // live / paper
	Debug      bool   `json:"debug" yaml:"debug"`
	APIKey     string `json:"api_key" yaml:"api_key"`       // 交易所API密钥
	SecretKey  string `json:"secret_key" yaml:"secret_key"` // 交易所密钥
	BaseURL    string `json:"base_url" yaml:"base_url"`     // 行情接口地址, 仅 paper 模式
	Timeout    string `json:"timeout" yaml:"timeout"`
	RetryCount int    `json:"retry_count" yaml:"retry_count"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug / info / warn / error
	Format string `json:"format" yaml:"format"` // json / text
}

// Load reads the config file at path (YAML unless the extension is .json),
// applies environment overrides and defaults, and validates the result.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes raw config bytes; ext selects the format (".json" or YAML).
func Parse(raw []byte, ext string) (*Config, error) {
	config := &Config{}

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return config, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.ExchangeConfig.APIKey, "BINANCE_API_KEY")
	override(&c.ExchangeConfig.SecretKey, "BINANCE_SECRET_KEY")
	override(&c.Database.ConnStr, "SEESAW_DB_DSN")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Log.Format, "LOG_FORMAT")
}

func (c *Config) applyDefaults() {
	if c.RefreshInterval == "" {
		c.RefreshInterval = DefaultRefreshInterval.String()
	}
	if c.ExchangeConfig.Mode == "" {
		c.ExchangeConfig.Mode = ModeLive
	}
	if c.ExchangeConfig.Timeout == "" {
		c.ExchangeConfig.Timeout = DefaultTimeout.String()
	}
	if c.ExchangeConfig.RetryCount == 0 {
		c.ExchangeConfig.RetryCount = DefaultRetryCount
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	for i := range c.Markets {
		if c.Markets[i].Name == "" {
			c.Markets[i].Name = c.Markets[i].ID
		}
	}
}

// Validate checks the config as a whole; every problem found is reported.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Markets) == 0 {
		errs = append(errs, errors.New("at least one market is required"))
	}
	seen := make(map[string]struct{}, len(c.Markets))
	for i, m := range c.Markets {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("markets[%d]: id is required", i))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			errs = append(errs, fmt.Errorf("markets[%d]: duplicate market id %s", i, m.ID))
		}
		seen[m.ID] = struct{}{}

		if _, err := m.Params(); err != nil {
			errs = append(errs, fmt.Errorf("markets[%d] %s: %w", i, m.ID, err))
		}
	}

	if d, err := time.ParseDuration(c.RefreshInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid refresh_interval %q", c.RefreshInterval))
	}
	if d, err := time.ParseDuration(c.ExchangeConfig.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid exchange timeout %q", c.ExchangeConfig.Timeout))
	}
	if c.ExchangeConfig.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("invalid exchange retry_count %d", c.ExchangeConfig.RetryCount))
	}

	switch c.ExchangeConfig.Mode {
	case ModeLive:
		if c.ExchangeConfig.APIKey == "" || c.ExchangeConfig.SecretKey == "" {
			errs = append(errs, errors.New("live mode requires api_key and secret_key"))
		}
	case ModePaper:
	default:
		errs = append(errs, fmt.Errorf("unknown exchange mode %q", c.ExchangeConfig.Mode))
	}

	switch c.Database.Driver {
	case "":
	case DriverPostgres, DriverSQLite:
		if c.Database.ConnStr == "" {
			errs = append(errs, fmt.Errorf("database driver %s requires conn_str", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

// Interval returns the parsed refresh interval.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d <= 0 {
		return DefaultRefreshInterval
	}
	return d
}

// RequestTimeout returns the parsed exchange request timeout.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.ExchangeConfig.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

func (m MarketConfig) Market() models.Market {
	return models.Market{
		ID:              m.ID,
		Name:            m.Name,
		BaseCurrency:    m.BaseCurrency,
		CounterCurrency: m.CounterCurrency,
	}
}

// Params parses and validates the strategy parameters of the market.
func (m MarketConfig) Params() (strategy.Params, error) {
	budget, err := decimal.NewFromString(m.CounterCurrencyBudget)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("invalid counter_currency_budget %q: %w", m.CounterCurrencyBudget, err)
	}
	gain, err := decimal.NewFromString(m.MinimumGainFraction)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("invalid minimum_gain_fraction %q: %w", m.MinimumGainFraction, err)
	}

	params := strategy.Params{CounterCurrencyBudget: budget, MinimumGainFraction: gain}
	if err := params.Validate(); err != nil {
		return strategy.Params{}, err
	}
	return params, nil
}
