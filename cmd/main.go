// Command bandit backtests a Bollinger band policy over a liquidity pool.
// Candles come from Binance, Bybit, Hyperliquid or directly from a UniswapV3
// pool on chain, and the run can be configured via a YAML file, CLI arguments
// or the interactive wizard.
//
// Usage:
//
//	bandit --config config.yaml
//	bandit --setup
//	bandit (uses CLI arguments)
//
// Optional environment variables:
//
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/config"
	"github.com/vadiminshakov/bandit/internal/agent"
	"github.com/vadiminshakov/bandit/internal/backtest"
	"github.com/vadiminshakov/bandit/internal/clients"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/internal/env"
	"github.com/vadiminshakov/bandit/internal/policy/bollinger"
	"github.com/vadiminshakov/bandit/internal/policy/passive"
	"github.com/vadiminshakov/bandit/internal/services/marketdata"
	"github.com/vadiminshakov/bandit/internal/setup"
	"github.com/vadiminshakov/bandit/internal/storage/results"
	"github.com/vadiminshakov/bandit/internal/web"
	"go.uber.org/zap"
)

const (
	bandAgentName    = "bollinger_band"
	passiveAgentName = "passive_hold"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func loadConfig() (config.Config, error) {
	for _, arg := range os.Args[1:] {
		if arg == "--setup" || arg == "-setup" {
			if err := setup.RunTUI(); err != nil {
				return config.Config{}, err
			}
			return config.Load("config.gen.yaml")
		}
	}
	return config.Get()
}

func run(ctx context.Context, logger *zap.Logger, cfg config.Config) error {
	pool, err := buildPool(cfg)
	if err != nil {
		return err
	}

	ticks, err := loadTicks(ctx, cfg, pool)
	if err != nil {
		return err
	}
	logger.Info("loaded pool history",
		zap.String("feed", cfg.Feed),
		zap.String("pool", pool.ID),
		zap.Int("ticks", len(ticks)))

	initial := map[string]decimal.Decimal{
		pool.Pair.Base:  cfg.InitialBase,
		pool.Pair.Quote: cfg.InitialQuote,
	}
	bandAgent, err := agent.New(bandAgentName, initial)
	if err != nil {
		return err
	}
	passiveAgent, err := agent.New(passiveAgentName, initial)
	if err != nil {
		return err
	}

	environment, err := env.NewReplay(logger, pool, ticks, bandAgent, passiveAgent)
	if err != nil {
		return err
	}

	journal, err := results.NewWALStore(cfg.WalDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	bandPolicy, err := bollinger.New(logger, bandAgent, pool.ID,
		cfg.Window, cfg.StdDevMultiplier, cfg.CorrWindow, cfg.Direction)
	if err != nil {
		return err
	}
	if err := bandPolicy.SetTradeFraction(cfg.TradeFraction); err != nil {
		return err
	}

	runner := backtest.NewRunner(logger, environment, journal)
	if err := runner.AddPolicy(bandPolicy, bandAgentName); err != nil {
		return err
	}
	if err := runner.AddPolicy(passive.New(passiveAgent, pool.ID), passiveAgentName); err != nil {
		return err
	}

	if cfg.DashboardAddr != "" {
		server := web.NewServer(cfg.DashboardAddr, journal, journal)
		go func() {
			var err error
			if len(cfg.TLSDomains) > 0 {
				err = server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.TLSCacheDir)
			} else {
				err = server.Start(ctx)
			}
			if err != nil {
				logger.Error("dashboard server stopped", zap.Error(err))
			}
		}()
		logger.Info("dashboard started", zap.String("addr", cfg.DashboardAddr))
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(report.String())

	if cfg.DashboardAddr != "" {
		logger.Info("backtest finished, dashboard keeps serving results, ctrl-c to exit")
		<-ctx.Done()
	}
	return nil
}

func buildPool(cfg config.Config) (domain.Pool, error) {
	id := fmt.Sprintf("%s/%s-%s", cfg.Pair.Base, cfg.Pair.Quote, cfg.PoolFeePercent.String())
	pool, err := domain.NewPool(id, cfg.Pair, cfg.PoolFeePercent)
	if err != nil {
		return domain.Pool{}, err
	}
	pool.BaseDecimals = cfg.BaseDecimals
	pool.QuoteDecimals = cfg.QuoteDecimals
	if cfg.PoolAddress != "" {
		if !common.IsHexAddress(cfg.PoolAddress) {
			return domain.Pool{}, fmt.Errorf("invalid pool address %q", cfg.PoolAddress)
		}
		pool.Address = common.HexToAddress(cfg.PoolAddress)
	}
	return pool, nil
}

// loadTicks pulls the pool history that the replay environment will feed to
// the policies, one tick per candle or on-chain reading.
func loadTicks(ctx context.Context, cfg config.Config, pool domain.Pool) ([]domain.PoolTick, error) {
	if cfg.Feed == "uniswap" {
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, err
		}
		defer client.Close()

		reader, err := marketdata.NewUniswapPoolReader(client, pool)
		if err != nil {
			return nil, err
		}
		return reader.CollectTicks(ctx, cfg.Steps, cfg.PollInterval)
	}

	provider, err := buildKlineProvider(cfg)
	if err != nil {
		return nil, err
	}
	candles, err := provider.GetKlines(ctx, cfg.Pair, cfg.Interval, cfg.Steps)
	if err != nil {
		return nil, err
	}
	return marketdata.TicksFromCandles(candles), nil
}

func buildKlineProvider(cfg config.Config) (marketdata.KlineProvider, error) {
	switch cfg.Feed {
	case "binance":
		client := clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		return marketdata.NewBinanceKlineProvider(client), nil
	case "bybit":
		client := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		return marketdata.NewBybitKlineProvider(client), nil
	case "hyperliquid":
		key := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return nil, fmt.Errorf("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		info, err := clients.NewHyperliquidInfo(key)
		if err != nil {
			return nil, err
		}
		return marketdata.NewHyperliquidKlineProvider(info), nil
	}
	return nil, fmt.Errorf("unsupported feed %q", cfg.Feed)
}
