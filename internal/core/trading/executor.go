package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/metrics"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

// DefaultLatency is the simulated exchange round trip.
const DefaultLatency = time.Second

// CredentialSource looks up saved API credentials.
type CredentialSource interface {
	GetCredentials(exchange, sub string) (credential.Credential, bool)
}

// Config configures an Executor.
type Config struct {
	Latency time.Duration
	// Journal receives one line per executed order. Nil drops them.
	Journal *logger.Logger
	// Balances is updated with every executed order. Nil creates a fresh one.
	Balances *Balances
}

// Executor simulates order execution. No exchange is contacted.
type Executor struct {
	creds    CredentialSource
	latency  time.Duration
	journal  *logger.Logger
	balances *Balances
	logger   *logger.Logger
	now      func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(creds CredentialSource, cfg Config, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewDiscard()
	}
	journal := cfg.Journal
	if journal == nil {
		journal = logger.NewDiscard()
	}
	balances := cfg.Balances
	if balances == nil {
		balances = NewBalances()
	}
	return &Executor{
		creds:    creds,
		latency:  cfg.Latency,
		journal:  journal,
		balances: balances,
		logger:   log.WithField("component", "trade_executor"),
		now:      time.Now,
	}
}

// Balances returns the simulated balances the executor updates.
func (e *Executor) Balances() *Balances {
	return e.balances
}

// Execute validates req, waits the simulated latency and returns a
// confirmation. Cancelling ctx during the wait aborts the order.
func (e *Executor) Execute(ctx context.Context, req TradeRequest) (*Confirmation, error) {
	conf, err := e.execute(ctx, req)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.OrdersSubmitted.WithLabelValues(req.Exchange, string(req.Side), result).Inc()
	return conf, err
}

func (e *Executor) execute(ctx context.Context, req TradeRequest) (*Confirmation, error) {
	pair, err := req.Validate()
	if err != nil {
		return nil, err
	}

	cred, ok := e.creds.GetCredentials(req.Exchange, req.Subaccount)
	if !ok || !cred.Complete() {
		return nil, fmt.Errorf("%w: %s/%s", ErrMissingCredentials, req.Exchange, req.Subaccount)
	}

	log := e.logger.WithFields(map[string]interface{}{
		"exchange":   req.Exchange,
		"subaccount": req.Subaccount,
		"symbol":     pair.String(),
	})
	log.Info("executing simulated trade", "side", req.Side, "order_type", req.OrderType, "amount", req.Amount.String())

	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn("simulated trade cancelled", "error", ctx.Err())
			return nil, fmt.Errorf("order cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	conf := &Confirmation{
		ID:         uuid.New(),
		Status:     StatusSuccess,
		Exchange:   req.Exchange,
		Subaccount: req.Subaccount,
		Symbol:     pair.String(),
		Side:       req.Side,
		OrderType:  req.OrderType,
		Price:      req.PriceLabel(),
		Amount:     req.Amount,
		Timestamp:  e.now().Unix(),
	}

	e.balances.Apply(pair, req)

	e.journal.Info("Simulated trade executed",
		"order_id", conf.ID.String(),
		"exchange", conf.Exchange,
		"subaccount", conf.Subaccount,
		"symbol", conf.Symbol,
		"side", conf.Side,
		"order_type", conf.OrderType,
		"amount", conf.Amount.String(),
		"price", conf.Price,
	)

	return conf, nil
}
