// Package config loads service configuration from a YAML file with
// environment-variable overrides. Priority order: environment variables
// > .env file > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Helius struct {
		APIKey string `yaml:"api_key"`
		RPCURL string `yaml:"rpc_url"`
		APIURL string `yaml:"api_url"`
		WSURL  string `yaml:"ws_url"`
	} `yaml:"helius"`
	Market struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"market"`
	Alert struct {
		Threshold      int     `yaml:"threshold"`
		TimeWindowSec  int     `yaml:"time_window_sec"`
		CooldownSec    int     `yaml:"cooldown_sec"`
		MaxMarketCap   float64 `yaml:"max_market_cap"`
		MinVolume24h   float64 `yaml:"min_volume_24h"`
		MinTxns24h     int     `yaml:"min_txns_24h"`
		MinBuyValueUSD float64 `yaml:"min_buy_value_usd"`
		MinLiquidity   float64 `yaml:"min_liquidity"`
		BullishWinSec  int     `yaml:"bullish_window_sec"`
		BlackoutHours  []int   `yaml:"blackout_hours"`
		BlackoutExtra  int     `yaml:"blackout_extra_threshold"`
		UTCOffsetHours int     `yaml:"utc_offset_hours"`
	} `yaml:"alert"`
	Valuation struct {
		DeadTokenCap  float64 `yaml:"dead_token_cap"`
		ShortListGain float64 `yaml:"short_list_gain"`
		ContractsGain float64 `yaml:"contracts_gain"`
	} `yaml:"valuation"`
	Polling struct {
		IntervalSec     int `yaml:"interval_sec"`
		BatchSize       int `yaml:"batch_size"`
		FetchLimit      int `yaml:"fetch_limit"`
		CheckpointEvery int `yaml:"checkpoint_every"`
	} `yaml:"polling"`
	Webhook struct {
		Secret  string `yaml:"secret"`
		Enabled bool   `yaml:"enabled"`
	} `yaml:"webhook"`
	Storage struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`
	Report struct {
		Schedule      string `yaml:"schedule"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"report"`
	WalletsFile string `yaml:"wallets_file"`
	HTTPAddr    string `yaml:"http_addr"`
}

// Load reads config from a YAML file (missing file is fine), then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	// .env values become plain environment variables; real env wins.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("HELIUS_API_KEY", &c.Helius.APIKey)
	envStr("HELIUS_RPC_URL", &c.Helius.RPCURL)
	envStr("HELIUS_API_URL", &c.Helius.APIURL)
	envStr("HELIUS_WS_URL", &c.Helius.WSURL)
	envStr("DEXSCREENER_BASE_URL", &c.Market.BaseURL)

	envInt("ALERT_THRESHOLD", &c.Alert.Threshold)
	envInt("TIME_WINDOW", &c.Alert.TimeWindowSec)
	envInt("ALERT_COOLDOWN", &c.Alert.CooldownSec)
	envFloat("MAX_MCAP", &c.Alert.MaxMarketCap)
	envFloat("MIN_VOLUME_24H", &c.Alert.MinVolume24h)
	envInt("MIN_TXNS_24H", &c.Alert.MinTxns24h)
	envFloat("MIN_BUY_VALUE_USD", &c.Alert.MinBuyValueUSD)
	envFloat("MIN_LIQUIDITY", &c.Alert.MinLiquidity)
	envInt("BULLISH_WINDOW", &c.Alert.BullishWinSec)
	envInt("BLACKOUT_EXTRA_THRESHOLD", &c.Alert.BlackoutExtra)
	envInt("UTC_OFFSET_HOURS", &c.Alert.UTCOffsetHours)
	if v := os.Getenv("BLACKOUT_HOURS"); v != "" {
		c.Alert.BlackoutHours = parseHourList(v)
	}

	envFloat("DEAD_TOKEN_MCAP", &c.Valuation.DeadTokenCap)
	envFloat("SHORT_LIST_THRESHOLD", &c.Valuation.ShortListGain)
	envFloat("CONTRACTS_CHECK_THRESHOLD", &c.Valuation.ContractsGain)

	envInt("POLLING_INTERVAL", &c.Polling.IntervalSec)
	envInt("WALLET_BATCH_SIZE", &c.Polling.BatchSize)
	envInt("TX_FETCH_LIMIT", &c.Polling.FetchLimit)

	envStr("WEBHOOK_SECRET", &c.Webhook.Secret)
	if v := os.Getenv("WEBHOOK_ENABLED"); v != "" {
		c.Webhook.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	envStr("DATABASE_URL", &c.Storage.PostgresDSN)
	envStr("CLICKHOUSE_URL", &c.Storage.ClickhouseDSN)

	envStr("REPORT_SCHEDULE", &c.Report.Schedule)
	envInt("DATA_RETENTION_DAYS", &c.Report.RetentionDays)

	envStr("WALLETS_FILE", &c.WalletsFile)
	envStr("HTTP_ADDR", &c.HTTPAddr)
}

func (c *Config) applyDefaults() {
	if c.Helius.RPCURL == "" && c.Helius.APIKey != "" {
		c.Helius.RPCURL = "https://mainnet.helius-rpc.com/?api-key=" + c.Helius.APIKey
	}
	if c.Helius.APIURL == "" {
		c.Helius.APIURL = "https://api.helius.xyz/v0"
	}
	if c.Helius.WSURL == "" && c.Helius.APIKey != "" {
		c.Helius.WSURL = "wss://atlas-mainnet.helius-rpc.com/?api-key=" + c.Helius.APIKey
	}

	if c.Alert.Threshold == 0 {
		c.Alert.Threshold = 3
	}
	if c.Alert.TimeWindowSec == 0 {
		c.Alert.TimeWindowSec = 20
	}
	if c.Alert.CooldownSec == 0 {
		c.Alert.CooldownSec = 300
	}
	if c.Alert.MaxMarketCap == 0 {
		c.Alert.MaxMarketCap = 700_000
	}
	if c.Alert.MinVolume24h == 0 {
		c.Alert.MinVolume24h = 10_000
	}
	if c.Alert.MinTxns24h == 0 {
		c.Alert.MinTxns24h = 15
	}
	if c.Alert.MinBuyValueUSD == 0 {
		c.Alert.MinBuyValueUSD = 5
	}
	if c.Alert.MinLiquidity == 0 {
		c.Alert.MinLiquidity = 5_000
	}
	if c.Alert.BullishWinSec == 0 {
		c.Alert.BullishWinSec = 1800
	}
	if c.Alert.BlackoutExtra == 0 {
		c.Alert.BlackoutExtra = 1
	}
	if c.Alert.UTCOffsetHours == 0 {
		c.Alert.UTCOffsetHours = 3
	}

	if c.Valuation.DeadTokenCap == 0 {
		c.Valuation.DeadTokenCap = 20_000
	}
	if c.Valuation.ShortListGain == 0 {
		c.Valuation.ShortListGain = 0.20
	}
	if c.Valuation.ContractsGain == 0 {
		c.Valuation.ContractsGain = 0.50
	}

	if c.Polling.IntervalSec == 0 {
		c.Polling.IntervalSec = 300
	}
	if c.Polling.BatchSize == 0 {
		c.Polling.BatchSize = 25
	}
	if c.Polling.FetchLimit == 0 {
		c.Polling.FetchLimit = 5
	}
	if c.Polling.CheckpointEvery == 0 {
		c.Polling.CheckpointEvery = 10
	}

	if c.Report.Schedule == "" {
		c.Report.Schedule = "0 0 * * *"
	}
	if c.Report.RetentionDays == 0 {
		c.Report.RetentionDays = 30
	}

	if c.WalletsFile == "" {
		c.WalletsFile = "data/smart_money_wallets.json"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
}

// Validate checks that the service can actually run with this config.
func (c *Config) Validate() error {
	if c.Helius.APIKey == "" && c.Helius.RPCURL == "" {
		return fmt.Errorf("helius.api_key or helius.rpc_url is required")
	}
	if c.Alert.Threshold < 1 {
		return fmt.Errorf("alert.threshold must be at least 1")
	}
	for _, h := range c.Alert.BlackoutHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("alert.blackout_hours entry %d out of range", h)
		}
	}
	if c.Polling.BatchSize < 1 {
		return fmt.Errorf("polling.batch_size must be positive")
	}
	return nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// parseHourList parses a comma-separated hour list like "2,3,4".
// Malformed entries are skipped.
func parseHourList(s string) []int {
	var hours []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if h, err := strconv.Atoi(part); err == nil {
			hours = append(hours, h)
		}
	}
	return hours
}
