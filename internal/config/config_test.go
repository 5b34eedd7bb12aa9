package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  bot_token: \"123:abc\"\n  chat_id: \"42\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Scheduler.Interval != 10*time.Second {
		t.Fatalf("默认轮询间隔应为 10s, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Chain.ID != 100 {
		t.Fatalf("默认链 ID 应为 100, 实际 %d", cfg.Chain.ID)
	}
	if cfg.Chain.RouterAddress != "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506" {
		t.Fatalf("默认路由地址不正确: %s", cfg.Chain.RouterAddress)
	}
	if cfg.Command.Keyword != "monitor-mps" {
		t.Fatalf("默认指令关键字不正确: %s", cfg.Command.Keyword)
	}
	if cfg.Limits.Lower != 3.58 || cfg.Limits.Upper != 3.73 {
		t.Fatalf("默认区间不正确: %v-%v", cfg.Limits.Lower, cfg.Limits.Upper)
	}
	if cfg.Pair.BaseSymbol != "MPS" {
		t.Fatalf("默认符号不正确: %s", cfg.Pair.BaseSymbol)
	}
	if cfg.Telegram.APIBase != "https://api.telegram.org" {
		t.Fatalf("默认 API 地址不正确: %s", cfg.Telegram.APIBase)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  interval: 30s
telegram:
  bot_token: "123:abc"
  chat_id: "42"
command:
  keyword: watch-pool
limits:
  lower: 1.5
  upper: 2.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Fatalf("interval 覆盖失败: %s", cfg.Scheduler.Interval)
	}
	if cfg.Command.Keyword != "watch-pool" {
		t.Fatalf("keyword 覆盖失败: %s", cfg.Command.Keyword)
	}
	if cfg.Limits.Lower != 1.5 || cfg.Limits.Upper != 2.5 {
		t.Fatalf("limits 覆盖失败: %v-%v", cfg.Limits.Lower, cfg.Limits.Upper)
	}
}

func TestLoadRequiresTelegramCredential(t *testing.T) {
	path := writeConfig(t, "telegram:\n  chat_id: \"42\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("缺少 bot_token 应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{Interval: 10 * time.Second},
		Chain: ChainConfig{
			RPCURL:        "https://rpc.gnosischain.com",
			ID:            100,
			RouterAddress: "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
		},
		Pair: PairConfig{
			BaseAddress:  "0xfa57aa7beed63d03aaf85ffd1753f5f6242588fb",
			QuoteAddress: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d",
			BaseSymbol:   "MPS",
		},
		Telegram: TelegramConfig{BotToken: "123:abc", ChatID: "42"},
		Command:  CommandConfig{Keyword: "monitor-mps"},
		Limits:   LimitsConfig{Lower: 3.58, Upper: 3.73, Path: "limits.db"},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interval为零", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"缺少RPC", func(c *Config) { c.Chain.RPCURL = "" }},
		{"路由地址非法", func(c *Config) { c.Chain.RouterAddress = "not-an-address" }},
		{"基础代币地址非法", func(c *Config) { c.Pair.BaseAddress = "0x123" }},
		{"代币地址相同", func(c *Config) { c.Pair.QuoteAddress = c.Pair.BaseAddress }},
		{"缺少token", func(c *Config) { c.Telegram.BotToken = "" }},
		{"缺少chat_id", func(c *Config) { c.Telegram.ChatID = "" }},
		{"chat_id非数字", func(c *Config) { c.Telegram.ChatID = "abc" }},
		{"keyword为空", func(c *Config) { c.Command.Keyword = "  " }},
		{"下界非正", func(c *Config) { c.Limits.Lower = 0 }},
		{"上界低于下界", func(c *Config) { c.Limits.Upper = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s 应校验失败", tc.name)
			}
		})
	}
}

func TestNumericChatID(t *testing.T) {
	tg := TelegramConfig{ChatID: " 12345 "}
	id, err := tg.NumericChatID()
	if err != nil {
		t.Fatalf("数字 chat_id 应解析成功: %v", err)
	}
	if id != 12345 {
		t.Fatalf("chat_id 解析错误: %d", id)
	}

	tg.ChatID = "@channel"
	if _, err := tg.NumericChatID(); err == nil {
		t.Fatal("非数字 chat_id 应报错")
	}
}
