// Package reconcile decides which network an address is active on by querying
// every catalog network at once through the explorer and JSON-RPC providers.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"ethwallet/pkg/explorer"
	"ethwallet/pkg/fetch"
	"ethwallet/pkg/logger"
	"ethwallet/pkg/models"
	"ethwallet/pkg/network"
	"ethwallet/pkg/rpc"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	MsgRateLimited = "Explorer rate limit reached. Please wait a few seconds and try again."
	MsgNotFound    = "Address not found on any configured network."
	MsgTimedOut    = "Detection timed out. Check your network and try again."
	MsgFailed      = "Failed to load account data."

	defaultNetworkTimeout = 6 * time.Second
	defaultDetectTimeout  = 7 * time.Second
	defaultHistoryLimit   = 10
)

// Explorer is the explorer surface the reconciler needs.
type Explorer interface {
	TxList(ctx context.Context, network models.NetworkDescriptor, address string) (json.RawMessage, error)
	Balance(ctx context.Context, network models.NetworkDescriptor, address string) (*big.Int, error)
}

type Reconciler struct {
	catalog        *network.Catalog
	explorer       Explorer
	dial           rpc.Dialer
	networkTimeout time.Duration
	detectTimeout  time.Duration
	historyLimit   int
	now            func() time.Time
	logger         *zap.Logger
}

type Option func(*Reconciler)

func WithNetworkTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.networkTimeout = d }
}

// WithDetectTimeout bounds a whole Detect call.
func WithDetectTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.detectTimeout = d }
}

func WithHistoryLimit(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger.OrNop(l)
	}
}

func New(catalog *network.Catalog, exp Explorer, dial rpc.Dialer, opts ...Option) *Reconciler {
	r := &Reconciler{
		catalog:        catalog,
		explorer:       exp,
		dial:           dial,
		networkTimeout: defaultNetworkTimeout,
		detectTimeout:  defaultDetectTimeout,
		historyLimit:   defaultHistoryLimit,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// networkResult is what one network query produced. failed is set when the
// query could not produce a trustworthy answer.
type networkResult struct {
	network     models.NetworkDescriptor
	body        json.RawMessage
	resp        explorer.Response
	rateLimited bool
	balance     models.BalanceQueryResult
	failed      error
}

// Detect queries every network concurrently and classifies the results.
// It always returns an Outcome; failures are folded into its status.
func (r *Reconciler) Detect(ctx context.Context, address string) models.Outcome {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID), zap.String("address", address))
	log.Info("detection started")

	ctx, cancel := context.WithTimeout(ctx, r.detectTimeout)
	defer cancel()

	networks := r.catalog.All()
	results := make([]networkResult, len(networks))

	var wg sync.WaitGroup
	for i, n := range networks {
		wg.Add(1)
		go func(i int, n models.NetworkDescriptor) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[i] = networkResult{network: n, failed: errors.Errorf("query panicked: %v", p)}
				}
			}()
			results[i] = r.queryNetwork(ctx, n, address, log)
		}(i, n)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// results may still be written by stragglers; they are never read
		log.Warn("detection abandoned", zap.Error(ctx.Err()))
		msg := MsgFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = MsgTimedOut
		}
		return r.emptyOutcome(models.StatusError, nil, msg)
	}

	outcome := r.classify(results, log)
	log.Info("detection finished", zap.String("status", string(outcome.Status)))
	return outcome
}

func (r *Reconciler) queryNetwork(ctx context.Context, n models.NetworkDescriptor, address string, log *zap.Logger) networkResult {
	ctx, cancel := context.WithTimeout(ctx, r.networkTimeout)
	defer cancel()
	log = log.With(zap.String("network", string(n.ID)))

	res := networkResult{network: n}
	var balanceErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer recoverInto(&res.failed)
		raw, err := r.explorer.TxList(ctx, n, address)
		if err != nil {
			var ex *fetch.ExhaustedError
			if errors.As(err, &ex) && ex.RateLimited() {
				res.body = ex.Evidence()
				res.rateLimited = true
				return
			}
			log.Warn("transaction list failed", zap.Error(err))
			res.failed = err
			return
		}
		res.body = raw
		res.rateLimited = fetch.IsRateLimited(raw)
		resp, err := explorer.ParseResponse(raw)
		if err != nil {
			res.failed = err
			return
		}
		res.resp = resp
		if !resp.OK() && resp.InvalidAPIKey() {
			log.Warn("explorer rejected the API key")
		}
	}()

	go func() {
		defer wg.Done()
		defer recoverInto(&balanceErr)
		res.balance = r.queryBalance(ctx, n, address, log)
	}()

	wg.Wait()
	if balanceErr != nil {
		log.Error("balance query failed", zap.Error(balanceErr))
		res.balance = models.BalanceQueryResult{NetworkID: n.ID, BalanceWei: new(big.Int), Source: models.SourceNone, ObtainedAt: r.now()}
	}
	return res
}

// recoverInto turns a panic in a sub-query into an error stored at dst.
func recoverInto(dst *error) {
	if p := recover(); p != nil {
		*dst = errors.Errorf("query panicked: %v", p)
	}
}

// queryBalance prefers the chain-verified provider and falls back to the
// explorer. If both fail the balance is zero with source none.
func (r *Reconciler) queryBalance(ctx context.Context, n models.NetworkDescriptor, address string, log *zap.Logger) models.BalanceQueryResult {
	wei, err := rpc.FetchBalance(ctx, r.dial, n, address)
	if err == nil {
		return models.BalanceQueryResult{NetworkID: n.ID, BalanceWei: wei, Source: models.SourceProvider, ObtainedAt: r.now()}
	}
	log.Debug("provider balance failed, using explorer", zap.Error(err))

	wei, err = r.explorer.Balance(ctx, n, address)
	if err == nil {
		return models.BalanceQueryResult{NetworkID: n.ID, BalanceWei: wei, Source: models.SourceExplorer, ObtainedAt: r.now()}
	}
	log.Debug("explorer balance failed", zap.Error(err))
	return models.BalanceQueryResult{NetworkID: n.ID, BalanceWei: new(big.Int), Source: models.SourceNone, ObtainedAt: r.now()}
}

// classify applies the precedence rate_limited > ok > error > not_found.
// Networks are considered in catalog order.
func (r *Reconciler) classify(results []networkResult, log *zap.Logger) models.Outcome {
	for _, res := range results {
		if res.rateLimited {
			log.Warn("explorer rate limited", zap.String("network", string(res.network.ID)))
			return r.emptyOutcome(models.StatusRateLimited, res.body, MsgRateLimited)
		}
	}

	for _, res := range results {
		if res.failed != nil || !explorer.HasActivity(res.resp) {
			continue
		}
		txs, err := explorer.Transactions(res.resp, res.network.ID)
		if err != nil {
			log.Warn("transaction list undecodable", zap.String("network", string(res.network.ID)), zap.Error(err))
			return r.emptyOutcome(models.StatusError, res.body, MsgFailed)
		}
		count := len(txs)
		if len(txs) > r.historyLimit {
			txs = txs[:r.historyLimit]
		}
		n := res.network
		return models.Outcome{
			Status:        models.StatusOK,
			Network:       &n,
			Balance:       res.balance,
			Transactions:  txs,
			ActivityCount: count,
			Message:       fmt.Sprintf("Active on %s", n.DisplayName),
		}
	}

	for _, res := range results {
		if res.failed != nil {
			return r.emptyOutcome(models.StatusError, res.body, MsgFailed)
		}
	}

	var diag json.RawMessage
	if len(results) > 0 {
		diag = results[0].body
	}
	return r.emptyOutcome(models.StatusNotFound, diag, MsgNotFound)
}

func (r *Reconciler) emptyOutcome(status models.Status, diag json.RawMessage, msg string) models.Outcome {
	return models.Outcome{
		Status: status,
		Balance: models.BalanceQueryResult{
			BalanceWei: new(big.Int),
			Source:     models.SourceNone,
			ObtainedAt: r.now(),
		},
		Transactions: []models.TransactionRecord{},
		Diagnostic:   diag,
		Message:      msg,
	}
}
