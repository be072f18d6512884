package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the answers
// to config.gen.yaml.
func RunTUI() error {
	var (
		feed          string
		pair          string
		interval      string
		stepsStr      string
		windowStr     string
		bandWidthStr  string
		corrWindowStr string
		direction     string
		fractionStr   string
		baseStr       string
		quoteStr      string
		rpcURL        string
		poolAddress   string
		dashboardAddr string
		confirm       bool
	)

	// defaults
	pair = "ETH_USDT"
	interval = "1h"
	stepsStr = "500"
	windowStr = "20"
	bandWidthStr = "2.0"
	corrWindowStr = "20"
	fractionStr = "0.3"
	baseStr = "4"
	quoteStr = "10000"
	dashboardAddr = ":8080"

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your band backtest.\n"))

	// feed
	fmt.Println(stepStyle.Render("STEP 1: DATA FEED"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose your candle source").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
					huh.NewOption("Uniswap V3 (on-chain)", "uniswap"),
				).
				Value(&feed),
		),
	).Run()
	if err != nil {
		return err
	}

	// pair
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: POOL"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. WETH_USDC)").
				Value(&pair).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("pair cannot be empty")
					}
					if !containsUnderscore(s) {
						return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. WETH_USDC)")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// feed specifics
	if feed == "uniswap" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 3: ON-CHAIN SOURCE"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Ethereum RPC URL").
					Value(&rpcURL).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("rpc url cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("Pool Address").
					Description("UniswapV3 pool contract address (0x...)").
					Value(&poolAddress).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("pool address cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	} else {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 3: CANDLES"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Candle Interval").
					Description("Example: 1m, 1h, 1d").
					Value(&interval).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("interval cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("Steps").
					Description("Number of candles to replay").
					Value(&stepsStr).
					Validate(validatePositiveInt),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	// band settings
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: BAND SETTINGS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Rolling Window").
				Description("Observations per band computation (e.g. 20)").
				Value(&windowStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Std Dev Multiplier").
				Description("Band width in standard deviations (e.g. 2.0)").
				Value(&bandWidthStr).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return fmt.Errorf("must be a valid number")
					}
					if v <= 0 {
						return fmt.Errorf("must be positive")
					}
					return nil
				}),
			huh.NewInput().
				Title("Correlation Window").
				Description("Observations for price/liquidity correlation (min 2)").
				Value(&corrWindowStr).
				Validate(validatePositiveInt),
			huh.NewSelect[string]().
				Title("Trade Direction").
				Options(
					huh.NewOption("Both", "both"),
					huh.NewOption("Long only", "long"),
					huh.NewOption("Short only", "short"),
				).
				Value(&direction),
			huh.NewInput().
				Title("Trade Fraction").
				Description("Fraction of holdings committed per trade (0-1, e.g. 0.3)").
				Value(&fractionStr).
				Validate(validateFraction),
		),
	).Run()
	if err != nil {
		return err
	}

	// portfolio and dashboard
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: PORTFOLIO"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Initial Base Balance").
				Value(&baseStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Initial Quote Balance").
				Value(&quoteStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Dashboard Address").
				Description("Listen address for the web dashboard, empty disables it").
				Value(&dashboardAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BANDIT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Feed: %s\nPair: %s\nWindow: %s\nBand width: %s\nCorr window: %s\nDirection: %s\nFraction: %s\n",
		feed, pair, windowStr, bandWidthStr, corrWindowStr, direction, fractionStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		Feed:                feed,
		Pair:                pair,
		WindowStr:           windowStr,
		StdDevMultiplierStr: bandWidthStr,
		CorrWindowStr:       corrWindowStr,
		Direction:           direction,
		TradeFractionStr:    fractionStr,
		Interval:            interval,
		StepsStr:            stepsStr,
		InitialBaseStr:      baseStr,
		InitialQuoteStr:     quoteStr,
		DashboardAddr:       dashboardAddr,
	}
	if feed == "uniswap" {
		cfgTmp.RPCURL = rpcURL
		cfgTmp.PoolAddress = poolAddress
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting backtest...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validatePositiveInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if v < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validateDecimal(s string) error {
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("must be a valid number")
	}
	return nil
}

func containsUnderscore(s string) bool {
	for _, r := range s {
		if r == '_' {
			return true
		}
	}
	return false
}
