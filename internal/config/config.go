package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pool-range-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Pair      PairConfig      `mapstructure:"pair"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Command   CommandConfig   `mapstructure:"command"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// ChainConfig covers on-chain data access.
type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ID             int64         `mapstructure:"id"`
	RouterAddress  string        `mapstructure:"router_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PairConfig identifies the monitored token pair. The rate is quoted as
// quote tokens per one whole base token.
type PairConfig struct {
	BaseAddress  string `mapstructure:"base_address"`
	QuoteAddress string `mapstructure:"quote_address"`
	BaseSymbol   string `mapstructure:"base_symbol"`
}

// TelegramConfig 描述 Telegram 机器人参数。
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CommandConfig sets the inbound chat command syntax.
type CommandConfig struct {
	Keyword string `mapstructure:"keyword"`
}

// LimitsConfig holds the default acceptable rate range and its storage path.
type LimitsConfig struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
	Path  string  `mapstructure:"path"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MPSWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mpswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "10s")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("chain.rpc_url", "https://rpc.gnosischain.com")
	v.SetDefault("chain.id", int64(100))
	v.SetDefault("chain.router_address", "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	v.SetDefault("chain.request_timeout", "10s")

	v.SetDefault("pair.base_address", "0xfa57aa7beed63d03aaf85ffd1753f5f6242588fb")
	v.SetDefault("pair.quote_address", "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d")
	v.SetDefault("pair.base_symbol", "MPS")

	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("command.keyword", "monitor-mps")

	v.SetDefault("limits.lower", 3.58)
	v.SetDefault("limits.upper", 3.73)
	v.SetDefault("limits.path", "limits.db")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if !common.IsHexAddress(c.Chain.RouterAddress) {
		return fmt.Errorf("chain.router_address is not a valid address")
	}
	if !common.IsHexAddress(c.Pair.BaseAddress) {
		return fmt.Errorf("pair.base_address is not a valid address")
	}
	if !common.IsHexAddress(c.Pair.QuoteAddress) {
		return fmt.Errorf("pair.quote_address is not a valid address")
	}
	if strings.EqualFold(c.Pair.BaseAddress, c.Pair.QuoteAddress) {
		return fmt.Errorf("pair.base_address and pair.quote_address must differ")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token 必须配置")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id 必须配置")
	}
	if _, err := c.Telegram.NumericChatID(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Command.Keyword) == "" {
		return fmt.Errorf("command.keyword is required")
	}
	if c.Limits.Lower <= 0 {
		return fmt.Errorf("limits.lower must be greater than zero")
	}
	if c.Limits.Upper < c.Limits.Lower {
		return fmt.Errorf("limits.upper must not be below limits.lower")
	}
	return nil
}

// NumericChatID parses the configured chat identifier.
func (t *TelegramConfig) NumericChatID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(t.ChatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.chat_id must be a numeric chat identifier: %w", err)
	}
	return id, nil
}
