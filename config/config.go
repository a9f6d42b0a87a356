package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Mode constants for the trading engine.
const (
	ModeDemo = "demo"
	ModeLive = "live"
)

// BotConfig holds the core trading parameters.
type BotConfig struct {
	Mode           string        `mapstructure:"mode"`   // demo or live
	Symbol         string        `mapstructure:"symbol"` // exchange symbol, e.g. BTCUSDT
	BaseCurrency   string        `mapstructure:"base_currency"`
	QuoteCurrency  string        `mapstructure:"quote_currency"`
	InitialBalance float64       `mapstructure:"initial_balance"`
	CycleInterval  time.Duration `mapstructure:"cycle_interval"`
}

// RiskConfig holds the risk gate thresholds.
type RiskConfig struct {
	MaxPositionPercent float64 `mapstructure:"max_position_percent"` // % of account
	RiskPerTrade       float64 `mapstructure:"risk_per_trade"`       // fraction of balance risked per trade
	StopLossPercent    float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent  float64 `mapstructure:"take_profit_percent"`
	MaxDailyTrades     int     `mapstructure:"max_daily_trades"`
	MinConfidence      float64 `mapstructure:"min_confidence"`
	MinRiskReward      float64 `mapstructure:"min_risk_reward"`
}

// AnalysisConfig holds the indicator parameters.
type AnalysisConfig struct {
	Interval      string  `mapstructure:"interval"` // candle interval, e.g. 1h
	CandleLimit   int     `mapstructure:"candle_limit"`
	RSIPeriod     int     `mapstructure:"rsi_period"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
}

// AIConfig holds the external analysis client settings. The API key is
// read from the environment, never from the config file.
type AIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	APIKey    string        `mapstructure:"-"`
}

// BinanceConfig holds the exchange credentials. Keys come from the
// environment (loaded from .env by main).
type BinanceConfig struct {
	Testnet   bool   `mapstructure:"testnet"`
	APIKey    string `mapstructure:"-"`
	SecretKey string `mapstructure:"-"`
}

// RedisConfig holds the optional history persistence settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxAgeDays int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Config is the root configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	AI       AIConfig       `mapstructure:"ai"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// Load reads the configuration from config.yaml (with config.local.yaml
// taking precedence when present), applying defaults and environment
// overrides.
func Load() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()
	viper.AutomaticEnv()

	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.AI.APIKey = os.Getenv("AI_API_KEY")
	cfg.Binance.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.Binance.SecretKey = os.Getenv("BINANCE_SECRET_KEY")

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("bot.mode", ModeDemo)
	viper.SetDefault("bot.symbol", "BTCUSDT")
	viper.SetDefault("bot.base_currency", "BTC")
	viper.SetDefault("bot.quote_currency", "USDT")
	viper.SetDefault("bot.initial_balance", 10000.0)
	viper.SetDefault("bot.cycle_interval", 30*time.Second)

	viper.SetDefault("risk.max_position_percent", 5.0)
	viper.SetDefault("risk.risk_per_trade", 0.02)
	viper.SetDefault("risk.stop_loss_percent", 2.0)
	viper.SetDefault("risk.take_profit_percent", 4.0)
	viper.SetDefault("risk.max_daily_trades", 10)
	viper.SetDefault("risk.min_confidence", 0.7)
	viper.SetDefault("risk.min_risk_reward", 1.5)

	viper.SetDefault("analysis.interval", "1h")
	viper.SetDefault("analysis.candle_limit", 100)
	viper.SetDefault("analysis.rsi_period", 14)
	viper.SetDefault("analysis.rsi_oversold", 30.0)
	viper.SetDefault("analysis.rsi_overbought", 70.0)

	viper.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("ai.model", "deepseek/deepseek-chat")
	viper.SetDefault("ai.max_tokens", 1000)
	viper.SetDefault("ai.timeout", 30*time.Second)

	viper.SetDefault("binance.testnet", true)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file_path", "logs/trader.log")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_age", 30)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.compress", false)
}

// Validate checks the configuration for unsafe or inconsistent values.
// It returns a list of warnings rather than failing: the engine keeps
// running in demo mode, downgrading whatever is unusable.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Bot.Mode != ModeDemo && c.Bot.Mode != ModeLive {
		warnings = append(warnings, fmt.Sprintf("unknown bot mode %q, falling back to demo", c.Bot.Mode))
		c.Bot.Mode = ModeDemo
	}
	if c.Bot.Mode == ModeLive && c.Binance.APIKey == "" {
		warnings = append(warnings, "BINANCE_API_KEY is required for live trading, falling back to demo")
		c.Bot.Mode = ModeDemo
	}
	if c.Risk.MaxPositionPercent > 20 {
		warnings = append(warnings, fmt.Sprintf("max_position_percent %.1f exceeds 20%%, capping at 20", c.Risk.MaxPositionPercent))
		c.Risk.MaxPositionPercent = 20
	}
	if c.Risk.MinConfidence <= 0 || c.Risk.MinConfidence > 1 {
		warnings = append(warnings, fmt.Sprintf("min_confidence %.2f outside (0,1], resetting to 0.7", c.Risk.MinConfidence))
		c.Risk.MinConfidence = 0.7
	}
	if c.Risk.MaxDailyTrades <= 0 {
		warnings = append(warnings, "max_daily_trades must be positive, resetting to 10")
		c.Risk.MaxDailyTrades = 10
	}
	if c.Bot.InitialBalance <= 0 {
		warnings = append(warnings, "initial_balance must be positive, resetting to 10000")
		c.Bot.InitialBalance = 10000
	}
	if c.Bot.CycleInterval < time.Second {
		warnings = append(warnings, "cycle_interval below 1s, resetting to 30s")
		c.Bot.CycleInterval = 30 * time.Second
	}

	return warnings
}
