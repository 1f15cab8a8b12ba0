package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tradekit-lab/tradekit/internal/backtest"
	"github.com/tradekit-lab/tradekit/internal/broker"
	"github.com/tradekit-lab/tradekit/internal/config"
	"github.com/tradekit-lab/tradekit/internal/datasource"
	"github.com/tradekit-lab/tradekit/internal/ledger"
	"github.com/tradekit-lab/tradekit/internal/live"
	"github.com/tradekit-lab/tradekit/internal/logger"
	"github.com/tradekit-lab/tradekit/internal/provider"
	"github.com/tradekit-lab/tradekit/internal/strategy"
	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/internal/version"
	mdprovider "github.com/tradekit-lab/tradekit/pkg/marketdata/provider"

	"github.com/tradekit-lab/tradekit/pkg/marketdata"
)

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if start := cmd.Timestamp("start"); !start.IsZero() {
		cfg.StartTime = optional.Some(start.UTC())
	}

	if end := cmd.Timestamp("end"); !end.IsZero() {
		cfg.EndTime = optional.Some(end.UTC())
	}

	if output := cmd.String("output"); output != "" {
		cfg.ResultsDir = output
	}

	source, err := datasource.NewDuckDB(log)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(cmd.String("data")); err != nil {
		return err
	}

	strat, err := strategy.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return err
	}

	journals := ledger.Multi{}

	var journal *ledger.DuckDBLedger

	if cfg.ResultsDir != "" {
		if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
			return err
		}

		journal, err = ledger.NewDuckDBLedger("")
		if err != nil {
			return err
		}

		csvJournal, err := ledger.NewCSVLedger(cfg.ResultsDir)
		if err != nil {
			return err
		}

		journals = append(journals, journal, csvJournal)
	}

	defer journals.Close()

	engine, err := backtest.NewEngine(cfg, source, strat, journals, log)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Backtesting"),
		progressbar.OptionShowCount())

	engine.SetProgress(func(processed, total int) {
		bar.ChangeMax(total)
		bar.Set(processed)
	})

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	bar.Finish()

	if journal != nil {
		if err := journal.ExportParquet(cfg.ResultsDir); err != nil {
			return err
		}

		log.Info("journal exported", zap.String("dir", cfg.ResultsDir))
	}

	out, err := yaml.Marshal(result.Summary)
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

func liveAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	var client broker.Client
	if cmd.Bool("paper") {
		client = broker.NewPaper(cfg.SpreadPips)
	} else {
		client = provider.NewBinance(
			os.Getenv("BINANCE_API_KEY"),
			os.Getenv("BINANCE_SECRET_KEY"),
			cmd.Bool("testnet"))
	}

	journals := ledger.Multi{}

	if cfg.ResultsDir != "" {
		csvJournal, err := ledger.NewCSVLedger(cfg.ResultsDir)
		if err != nil {
			return err
		}

		journals = append(journals, csvJournal)
	}

	defer journals.Close()

	engine, err := live.NewEngine(cfg, client, journals, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("live session starting",
		zap.Strings("instruments", cfg.Instruments),
		zap.String("strategy", cfg.Strategy),
		zap.Bool("paper", cmd.Bool("paper")))

	return engine.Run(ctx)
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  mdprovider.Type(cmd.String("provider")),
		WriterType:    marketdata.WriterType(cmd.String("writer")),
		DataPath:      cmd.String("data"),
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}, nil)
	if err != nil {
		return err
	}

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Symbol:      cmd.String("symbol"),
		StartDate:   cmd.Timestamp("start"),
		EndDate:     cmd.Timestamp("end"),
		Granularity: types.Granularity(cmd.String("granularity")),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded to %s\n", filepath.Clean(path))

	return nil
}

func dateFlag(name, alias, usage string, required bool, value time.Time) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:     name,
		Aliases:  []string{alias},
		Usage:    usage,
		Required: required,
		Value:    value,
		Config: cli.TimestampConfig{
			Layouts: []string{"2006-01-02"},
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "tradekit",
		Usage:   "Backtest and trade candle-driven strategies",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "Replay a strategy over historical candles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML configuration",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the Parquet or CSV candle file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Results directory, overrides results_dir in the config",
					},
					dateFlag("start", "s", "Replay from this date (YYYY-MM-DD)", false, time.Time{}),
					dateFlag("end", "e", "Replay until this date (YYYY-MM-DD)", false, time.Time{}),
				},
				Action: backtestAction,
			},
			{
				Name:  "live",
				Usage: "Run a strategy against live market data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML configuration",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "paper",
						Usage: "Simulate executions locally instead of sending orders",
					},
					&cli.BoolFlag{
						Name:  "testnet",
						Usage: "Use the Binance spot testnet",
					},
				},
				Action: liveAction,
			},
			{
				Name:  "download",
				Usage: "Download historical candles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"t"},
						Usage:    "Instrument symbol, e.g. BTC_USDT",
						Required: true,
					},
					dateFlag("start", "s", "Start date (YYYY-MM-DD)", true, time.Time{}),
					dateFlag("end", "e", "End date (YYYY-MM-DD), defaults to today", false, time.Now()),
					&cli.StringFlag{
						Name:    "granularity",
						Aliases: []string{"g"},
						Usage:   "Candle interval (1m, 5m, 15m, 30m, 1h, 4h, 1d)",
						Value:   string(types.GranularityM1),
					},
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   fmt.Sprintf("Data provider (%s, %s)", mdprovider.TypePolygon, mdprovider.TypeBinance),
						Value:   string(mdprovider.TypePolygon),
					},
					&cli.StringFlag{
						Name:    "writer",
						Aliases: []string{"w"},
						Usage:   fmt.Sprintf("Storage format (%s)", marketdata.WriterDuckDB),
						Value:   string(marketdata.WriterDuckDB),
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Output directory",
						Value:   "data",
					},
				},
				Action: downloadAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
