// Command qtctl manages QuickTrade subaccounts and preferences from the
// terminal. It works directly on the config directory, so it can run while
// the API server is up; the server picks up the changes on its next poll.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/cache"
	"github.com/kislikjeka/quicktrade/internal/core/pricing/coingecko"
	"github.com/kislikjeka/quicktrade/internal/core/pricing/service"
	"github.com/kislikjeka/quicktrade/internal/core/trading"
	"github.com/kislikjeka/quicktrade/internal/module/account"
	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
	"github.com/kislikjeka/quicktrade/pkg/config"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "qtctl"
	app.Usage = "manage QuickTrade subaccounts, preferences and simulated trades"
	app.Writer = out
	app.ErrWriter = errOut
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config-dir",
			Value:   "config",
			Usage:   "directory holding api_keys.json and user_prefs.json",
			EnvVars: []string{"QT_CONFIG_DIR"},
		},
		&cli.StringFlag{
			Name:    "exchanges-file",
			Usage:   "YAML file overriding the supported exchange set",
			EnvVars: []string{"QT_EXCHANGES_FILE"},
		},
		&cli.StringFlag{
			Name:    "coingecko-api-key",
			Usage:   "CoinGecko demo API key",
			EnvVars: []string{"COINGECKO_API_KEY"},
		},
		&cli.StringFlag{
			Name:   "coingecko-url",
			Value:  "https://api.coingecko.com/api/v3",
			Usage:  "CoinGecko API base URL",
			Hidden: true,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log store activity to stderr",
		},
	}
	app.Commands = []*cli.Command{
		subaccountCommand,
		prefsCommand,
		priceCommand,
		tradeCommand,
	}
	return app
}

// workspace is everything a command needs, opened from the global flags.
type workspace struct {
	exchanges *config.ExchangesConfig
	creds     *credential.Store
	prefs     *preference.Store
	prices    *service.PriceService
	executor  *trading.Executor
	accounts  *account.Service
	log       *logger.Logger
	closers   []io.Closer
}

type tradeOptions struct {
	latency  time.Duration
	tradeLog string
}

func openWorkspace(c *cli.Context, trade *tradeOptions) (*workspace, error) {
	log := logger.NewDiscard()
	if c.Bool("verbose") {
		log = logger.NewWithFormat("development", "text", c.App.ErrWriter)
	}

	exchanges := config.DefaultExchanges()
	if path := c.String("exchanges-file"); path != "" {
		loaded, err := config.LoadExchangesConfig(path)
		if err != nil {
			return nil, err
		}
		exchanges = loaded
	}

	dir, err := document.Open(c.String("config-dir"))
	if err != nil {
		return nil, err
	}
	creds, err := credential.NewStore(dir, exchanges, log)
	if err != nil {
		return nil, err
	}
	prefs, err := preference.NewStore(dir, exchanges, log)
	if err != nil {
		return nil, err
	}

	ws := &workspace{exchanges: exchanges, creds: creds, prefs: prefs, log: log}

	fetcher := coingecko.NewClientWithBaseURL(c.String("coingecko-api-key"), c.String("coingecko-url"))
	ws.prices = service.NewPriceService(fetcher, cache.NewMemory(cache.DefaultTTL), log)

	execCfg := trading.Config{Latency: trading.DefaultLatency}
	if trade != nil {
		execCfg.Latency = trade.latency
		if trade.tradeLog != "" {
			journal, f, err := logger.NewFile(trade.tradeLog)
			if err != nil {
				return nil, err
			}
			execCfg.Journal = journal
			ws.closers = append(ws.closers, f)
		}
	}
	ws.executor = trading.NewExecutor(creds, execCfg, log)
	ws.accounts = account.NewService(creds, prefs, exchanges, ws.prices, ws.executor, log)
	return ws, nil
}

func (w *workspace) Close() {
	for _, c := range w.closers {
		_ = c.Close()
	}
}

func jsonOutput(c *cli.Context, in any) error {
	j, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(j))
	return err
}
