package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/internal/core/trading"
	"github.com/kislikjeka/quicktrade/pkg/money"
)

var priceCommand = &cli.Command{
	Name:      "price",
	Usage:     "fetches the spot price of a pair from CoinGecko",
	ArgsUsage: "<pair>",
	Action:    getPrice,
}

var tradeCommand = &cli.Command{
	Name:  "trade",
	Usage: "submits a simulated order; nothing is sent to the exchange",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "exchange", Usage: "the exchange to trade on", Required: true},
		&cli.StringFlag{Name: "subaccount", Usage: "the subaccount whose credentials are used", Required: true},
		&cli.StringFlag{Name: "symbol", Usage: "pair such as BTC/USDT", Required: true},
		&cli.StringFlag{Name: "side", Usage: "buy or sell", Value: "buy"},
		&cli.StringFlag{Name: "type", Usage: "market or limit", Value: "market"},
		&cli.StringFlag{Name: "amount", Usage: "order amount in the base asset", Required: true},
		&cli.StringFlag{Name: "price", Usage: "limit price"},
		&cli.DurationFlag{Name: "latency", Usage: "simulated exchange round trip", Value: trading.DefaultLatency},
		&cli.StringFlag{Name: "trade-log", Usage: "trade journal path", EnvVars: []string{"TRADE_LOG_PATH"}},
	},
	Action: submitTrade,
}

func getPrice(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("%w: price needs <pair>", errMissingArgs)
	}
	pair, err := domain.ParsePair(c.Args().First())
	if err != nil {
		return err
	}

	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	q, err := ws.prices.Lookup(c.Context, pair.Base, pair.Quote)
	if err != nil {
		return err
	}
	return jsonOutput(c, map[string]string{
		"symbol":     q.Pair.String(),
		"price":      q.Price.String(),
		"source":     string(q.Source),
		"fetched_at": q.FetchedAt.Format(time.RFC3339),
	})
}

func submitTrade(c *cli.Context) error {
	side, err := trading.ParseSide(c.String("side"))
	if err != nil {
		return err
	}
	orderType, err := trading.ParseOrderType(c.String("type"))
	if err != nil {
		return err
	}
	amount, err := money.ParsePositive(c.String("amount"))
	if err != nil {
		return fmt.Errorf("%w: %v", trading.ErrInvalidAmount, err)
	}

	req := trading.TradeRequest{
		Exchange:   c.String("exchange"),
		Subaccount: c.String("subaccount"),
		Symbol:     c.String("symbol"),
		Side:       side,
		Amount:     amount,
		OrderType:  orderType,
	}
	if orderType == trading.OrderTypeLimit {
		price, err := money.ParsePositive(c.String("price"))
		if err != nil {
			return fmt.Errorf("%w: %v", trading.ErrInvalidPrice, err)
		}
		req.Price = &price
	}

	ws, err := openWorkspace(c, &tradeOptions{latency: c.Duration("latency"), tradeLog: c.String("trade-log")})
	if err != nil {
		return err
	}
	defer ws.Close()

	conf, err := ws.accounts.SubmitOrder(c.Context, req)
	if err != nil {
		return err
	}
	return jsonOutput(c, conf)
}
