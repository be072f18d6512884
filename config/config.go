package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config is a fully parsed backtest configuration.
type Config struct {
	Feed           string
	Pair           domain.Pair
	PoolFeePercent decimal.Decimal

	Window           int
	StdDevMultiplier float64
	CorrWindow       int
	Direction        domain.Direction
	TradeFraction    decimal.Decimal

	Interval string
	Steps    int

	InitialBase  decimal.Decimal
	InitialQuote decimal.Decimal

	// On-chain feed settings, used when Feed is "uniswap".
	RPCURL        string
	PoolAddress   string
	BaseDecimals  int32
	QuoteDecimals int32
	PollInterval  time.Duration

	WalDir        string
	DashboardAddr string
	TLSDomains    []string
	TLSCacheDir   string
}

// ConfigTmp mirrors Config with string-typed fields for yaml round-tripping.
type ConfigTmp struct {
	Feed           string `yaml:"feed"`
	Pair           string `yaml:"pair"`
	PoolFeePercent string `yaml:"pool_fee_percent,omitempty"`

	WindowStr           string `yaml:"window,omitempty"`
	StdDevMultiplierStr string `yaml:"std_dev_multiplier,omitempty"`
	CorrWindowStr       string `yaml:"corr_window,omitempty"`
	Direction           string `yaml:"direction,omitempty"`
	TradeFractionStr    string `yaml:"trade_fraction,omitempty"`

	Interval string `yaml:"interval,omitempty"`
	StepsStr string `yaml:"steps,omitempty"`

	InitialBaseStr  string `yaml:"initial_base,omitempty"`
	InitialQuoteStr string `yaml:"initial_quote,omitempty"`

	RPCURL           string `yaml:"rpc_url,omitempty"`
	PoolAddress      string `yaml:"pool_address,omitempty"`
	BaseDecimalsStr  string `yaml:"base_decimals,omitempty"`
	QuoteDecimalsStr string `yaml:"quote_decimals,omitempty"`
	PollIntervalStr  string `yaml:"poll_interval,omitempty"`

	WalDir        string   `yaml:"wal_dir,omitempty"`
	DashboardAddr string   `yaml:"dashboard_addr,omitempty"`
	TLSDomains    []string `yaml:"tls_domains,omitempty"`
	TLSCacheDir   string   `yaml:"tls_cache_dir,omitempty"`
}

const (
	defaultWindow        = 20
	defaultBandWidth     = 2.0
	defaultCorrWindow    = 20
	defaultSteps         = 500
	defaultInterval      = "1h"
	defaultFeePercent    = "0.05"
	defaultTradeFraction = "0.3"
	defaultInitialBase   = "4"
	defaultInitialQuote  = "10000"
	defaultPollInterval  = 12 * time.Second
)

// Get reads configuration from a yaml file when --config is provided and
// from CLI flags otherwise.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")

	feed := flag.String("feed", "binance", "candle source: binance, bybit, hyperliquid, uniswap")
	pairFlag := flag.String("pair", "ETH_USDT", "pool pair, example: ETH_USDT")
	fee := flag.String("fee", defaultFeePercent, "pool fee percent, example: 0.05")
	window := flag.Int("window", defaultWindow, "rolling window size for band statistics")
	bandWidth := flag.Float64("bandwidth", defaultBandWidth, "standard deviation multiplier for band width")
	corrWindow := flag.Int("corrwindow", defaultCorrWindow, "window size for price/liquidity correlation")
	direction := flag.String("direction", "both", "allowed trade direction: both, long, short")
	fraction := flag.String("fraction", defaultTradeFraction, "holding fraction committed per trade")
	interval := flag.String("interval", defaultInterval, "candle interval, example: 1h")
	steps := flag.Int("steps", defaultSteps, "number of candles to replay")
	initialBase := flag.String("base", defaultInitialBase, "initial base token balance")
	initialQuote := flag.String("quote", defaultInitialQuote, "initial quote token balance")
	walDir := flag.String("waldir", "wal", "directory for result journals")
	dashboardAddr := flag.String("dashboard", "", "dashboard listen address, empty disables it")
	rpcURL := flag.String("rpc", "", "ethereum rpc url for the uniswap feed")
	poolAddress := flag.String("pool", "", "uniswap v3 pool address")

	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	pair, err := domain.ParsePair(*pairFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --pair provided, --pair=%s: %w", *pairFlag, err)
	}
	feePercent, err := decimal.NewFromString(*fee)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --fee provided, --fee=%s", *fee)
	}
	dir, err := domain.ParseDirection(*direction)
	if err != nil {
		return Config{}, err
	}
	tradeFraction, err := decimal.NewFromString(*fraction)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --fraction provided, --fraction=%s", *fraction)
	}
	base, err := decimal.NewFromString(*initialBase)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --base provided, --base=%s", *initialBase)
	}
	quote, err := decimal.NewFromString(*initialQuote)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --quote provided, --quote=%s", *initialQuote)
	}

	cfg := Config{
		Feed:             *feed,
		Pair:             pair,
		PoolFeePercent:   feePercent,
		Window:           *window,
		StdDevMultiplier: *bandWidth,
		CorrWindow:       *corrWindow,
		Direction:        dir,
		TradeFraction:    tradeFraction,
		Interval:         *interval,
		Steps:            *steps,
		InitialBase:      base,
		InitialQuote:     quote,
		RPCURL:           *rpcURL,
		PoolAddress:      *poolAddress,
		BaseDecimals:     18,
		QuoteDecimals:    6,
		PollInterval:     defaultPollInterval,
		WalDir:           *walDir,
		DashboardAddr:    *dashboardAddr,
	}
	return cfg, validate(cfg)
}

// Load reads a yaml config from path.
func Load(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}
	return FromTmp(tmp)
}

// FromTmp parses a string-typed config into a Config, applying defaults for
// every omitted field.
func FromTmp(tmp ConfigTmp) (Config, error) {
	pair, err := domain.ParsePair(tmp.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s: %w", tmp.Pair, err)
	}

	cfg := Config{
		Feed:          tmp.Feed,
		Pair:          pair,
		Interval:      tmp.Interval,
		RPCURL:        tmp.RPCURL,
		PoolAddress:   tmp.PoolAddress,
		WalDir:        tmp.WalDir,
		DashboardAddr: tmp.DashboardAddr,
		TLSDomains:    tmp.TLSDomains,
		TLSCacheDir:   tmp.TLSCacheDir,
	}
	if cfg.Feed == "" {
		cfg.Feed = "binance"
	}
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	if cfg.PollInterval, err = durationOr(tmp.PollIntervalStr, defaultPollInterval); err != nil {
		return Config{}, fmt.Errorf("incorrect 'poll_interval' param in yaml config (must be a duration like 12s): %w", err)
	}
	if cfg.WalDir == "" {
		cfg.WalDir = "wal"
	}

	if cfg.PoolFeePercent, err = decimalOr(tmp.PoolFeePercent, defaultFeePercent); err != nil {
		return Config{}, fmt.Errorf("incorrect 'pool_fee_percent' param in yaml config: %w", err)
	}
	if cfg.Window, err = intOr(tmp.WindowStr, defaultWindow); err != nil {
		return Config{}, fmt.Errorf("incorrect 'window' param in yaml config (must be an integer): %w", err)
	}
	if cfg.StdDevMultiplier, err = floatOr(tmp.StdDevMultiplierStr, defaultBandWidth); err != nil {
		return Config{}, fmt.Errorf("incorrect 'std_dev_multiplier' param in yaml config (must be a number): %w", err)
	}
	if cfg.CorrWindow, err = intOr(tmp.CorrWindowStr, defaultCorrWindow); err != nil {
		return Config{}, fmt.Errorf("incorrect 'corr_window' param in yaml config (must be an integer): %w", err)
	}
	if cfg.Direction, err = domain.ParseDirection(tmp.Direction); err != nil {
		return Config{}, fmt.Errorf("incorrect 'direction' param in yaml config: %w", err)
	}
	if cfg.TradeFraction, err = decimalOr(tmp.TradeFractionStr, defaultTradeFraction); err != nil {
		return Config{}, fmt.Errorf("incorrect 'trade_fraction' param in yaml config: %w", err)
	}
	if cfg.Steps, err = intOr(tmp.StepsStr, defaultSteps); err != nil {
		return Config{}, fmt.Errorf("incorrect 'steps' param in yaml config (must be an integer): %w", err)
	}
	if cfg.InitialBase, err = decimalOr(tmp.InitialBaseStr, defaultInitialBase); err != nil {
		return Config{}, fmt.Errorf("incorrect 'initial_base' param in yaml config: %w", err)
	}
	if cfg.InitialQuote, err = decimalOr(tmp.InitialQuoteStr, defaultInitialQuote); err != nil {
		return Config{}, fmt.Errorf("incorrect 'initial_quote' param in yaml config: %w", err)
	}

	baseDecimals, err := intOr(tmp.BaseDecimalsStr, 18)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'base_decimals' param in yaml config (must be an integer): %w", err)
	}
	cfg.BaseDecimals = int32(baseDecimals)

	quoteDecimals, err := intOr(tmp.QuoteDecimalsStr, 6)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'quote_decimals' param in yaml config (must be an integer): %w", err)
	}
	cfg.QuoteDecimals = int32(quoteDecimals)

	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	switch cfg.Feed {
	case "binance", "bybit", "hyperliquid":
	case "uniswap":
		if cfg.RPCURL == "" {
			return fmt.Errorf("the uniswap feed requires 'rpc_url'")
		}
		if cfg.PoolAddress == "" {
			return fmt.Errorf("the uniswap feed requires 'pool_address'")
		}
	default:
		return fmt.Errorf("unknown feed %q", cfg.Feed)
	}

	if cfg.Window < 1 {
		return fmt.Errorf("'window' must be at least 1")
	}
	if cfg.StdDevMultiplier <= 0 {
		return fmt.Errorf("'std_dev_multiplier' must be positive")
	}
	if cfg.CorrWindow < 2 {
		return fmt.Errorf("'corr_window' must be at least 2")
	}
	if cfg.Steps < 1 {
		return fmt.Errorf("'steps' must be positive")
	}
	if cfg.TradeFraction.LessThanOrEqual(decimal.Zero) || cfg.TradeFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("'trade_fraction' must be in (0, 1]")
	}
	if cfg.InitialBase.IsNegative() || cfg.InitialQuote.IsNegative() {
		return fmt.Errorf("initial balances cannot be negative")
	}
	return nil
}

func decimalOr(s, def string) (decimal.Decimal, error) {
	if s == "" {
		s = def
	}
	return decimal.NewFromString(s)
}

func intOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func floatOr(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
