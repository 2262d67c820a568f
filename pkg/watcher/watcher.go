package watcher

import (
	"context"
	"math/big"
	"sync"
	"time"

	"ethwallet/pkg/account"
	"ethwallet/pkg/market"
	"ethwallet/pkg/models"
	"ethwallet/pkg/network"
	"ethwallet/pkg/prediction"
	"ethwallet/pkg/reconcile"
	"ethwallet/pkg/rpc"
	"ethwallet/pkg/submit"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DataSource defines the interface for fetching data.
type DataSource interface {
	Detect(ctx context.Context, address string) models.Outcome
	PriceHistory(ctx context.Context) (models.PriceHistory, error)
	News(ctx context.Context) []string
	AskAI(ctx context.Context, question string) (string, error)
	GasPrice(ctx context.Context, network models.NetworkDescriptor) (models.GasPriceData, error)
	Send(ctx context.Context, acc *account.Account, network models.NetworkID, to, amountEth string) (string, error)
}

// RealDataSource wires the reconciler, market client and submitter together.
type RealDataSource struct {
	Reconciler *reconcile.Reconciler
	Market     *market.Client
	Submitter  *submit.Submitter
	Dial       rpc.Dialer
}

func (d *RealDataSource) Detect(ctx context.Context, address string) models.Outcome {
	return d.Reconciler.Detect(ctx, address)
}

func (d *RealDataSource) PriceHistory(ctx context.Context) (models.PriceHistory, error) {
	return d.Market.PriceHistory(ctx)
}

func (d *RealDataSource) News(ctx context.Context) []string {
	return d.Market.News(ctx)
}

func (d *RealDataSource) AskAI(ctx context.Context, question string) (string, error) {
	return d.Market.AskAI(ctx, question)
}

func (d *RealDataSource) GasPrice(ctx context.Context, n models.NetworkDescriptor) (models.GasPriceData, error) {
	return rpc.FetchGasPrice(ctx, d.Dial, n)
}

func (d *RealDataSource) Send(ctx context.Context, acc *account.Account, n models.NetworkID, to, amountEth string) (string, error) {
	return d.Submitter.Send(ctx, acc, n, to, amountEth)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Address    string                        `json:"address,omitempty"`
	Generation uint64                        `json:"generation"`
	Detecting  bool                          `json:"detecting"`
	Outcome    *models.Outcome               `json:"outcome,omitempty"`
	Prediction *models.Prediction            `json:"prediction,omitempty"`
	Answer     string                        `json:"answer,omitempty"`
	History    models.PriceHistory           `json:"history"`
	News       []string                      `json:"news,omitempty"`
	GasPrices  map[models.NetworkID]*big.Int `json:"gas_prices,omitempty"`
	Networks   []models.NetworkDescriptor    `json:"networks"`
}

// Watcher owns the session: the active account, the latest detection outcome
// and the market view. It is the only writer of that state.
type Watcher struct {
	catalog      *network.Catalog
	dataSource   DataSource
	pollInterval time.Duration
	logger       *zap.Logger

	account    *account.Account
	generation uint64
	detecting  bool
	outcome    *models.Outcome
	prediction *models.Prediction
	answer     string
	history    models.PriceHistory
	news       []string
	gasPrices  map[models.NetworkID]*big.Int

	subscribers []Subscriber
	mu          sync.RWMutex
	inflight    sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(catalog *network.Catalog, ds DataSource, pollInterval time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Watcher{
		catalog:      catalog,
		dataSource:   ds,
		pollInterval: pollInterval,
		logger:       logger,
		gasPrices:    make(map[models.NetworkID]*big.Int),
		stopChan:     make(chan struct{}),
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (w *Watcher) SetDataSource(ds DataSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataSource = ds
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			w.logger.Debug("subscriber full, event dropped", zap.String("event", string(event.Type)))
		}
	}
}

// SetAccount makes acc the active account and starts a detection run for it.
// Results of runs started for earlier accounts are discarded.
func (w *Watcher) SetAccount(ctx context.Context, acc *account.Account) uint64 {
	w.mu.Lock()
	w.account = acc
	w.outcome = nil
	w.mu.Unlock()
	return w.Refresh(ctx)
}

// Account returns the active account, or nil.
func (w *Watcher) Account() *account.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account
}

// Refresh re-runs detection for the active account and returns the new
// generation. It returns 0 when no account is loaded.
func (w *Watcher) Refresh(ctx context.Context) uint64 {
	w.mu.Lock()
	w.generation++
	gen := w.generation
	acc := w.account
	if acc == nil {
		w.detecting = false
		w.mu.Unlock()
		return 0
	}
	w.detecting = true
	w.mu.Unlock()

	address := acc.Address()
	w.notify(Event{Type: EventDetectionStarted, Data: DetectionStarted{Generation: gen, Address: address}})

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.runDetection(ctx, gen, address)
	}()
	return gen
}

func (w *Watcher) runDetection(ctx context.Context, gen uint64, address string) {
	outcome := w.dataSource.Detect(ctx, address)

	w.mu.Lock()
	if gen != w.generation {
		current := w.generation
		w.mu.Unlock()
		w.logger.Info("dropping stale detection result",
			zap.Uint64("generation", gen),
			zap.Uint64("current", current),
			zap.String("status", string(outcome.Status)))
		return
	}
	w.outcome = &outcome
	w.detecting = false
	w.mu.Unlock()

	w.notify(Event{Type: EventDetectionFinished, Data: DetectionFinished{Generation: gen, Address: address, Outcome: outcome}})
}

// Logout forgets the account and invalidates any run in flight.
func (w *Watcher) Logout() {
	w.mu.Lock()
	w.account = nil
	w.outcome = nil
	w.detecting = false
	w.generation++
	w.mu.Unlock()
	w.notify(Event{Type: EventLoggedOut})
}

// Outcome returns the latest applied detection outcome.
func (w *Watcher) Outcome() (models.Outcome, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.outcome == nil {
		return models.Outcome{}, false
	}
	return *w.outcome, true
}

// Ask sends question to the market assistant. When the answer carries a
// forecast block, the session prediction is replaced.
func (w *Watcher) Ask(ctx context.Context, question string) (string, *models.Prediction, error) {
	answer, err := w.dataSource.AskAI(ctx, question)
	if err != nil {
		return "", nil, err
	}

	p, ok := prediction.Extract(answer)
	w.mu.Lock()
	w.answer = answer
	if ok {
		w.prediction = &p
	}
	w.mu.Unlock()

	if !ok {
		w.logger.Debug("answer has no forecast block")
		return answer, nil, nil
	}
	w.notify(Event{Type: EventPredictionUpdated, Data: p})
	return answer, &p, nil
}

// Send submits a transfer from the active account and schedules a balance
// refresh once the node accepts it.
func (w *Watcher) Send(ctx context.Context, networkID models.NetworkID, to, amountEth string) (string, error) {
	acc := w.Account()
	if acc == nil {
		return "", errors.Wrap(models.ErrInvalidInput, "no account loaded")
	}
	hash, err := w.dataSource.Send(ctx, acc, networkID, to, amountEth)
	if err != nil {
		return "", err
	}
	w.notify(Event{Type: EventTransferSubmitted, Data: TransferSubmitted{Network: networkID, Hash: hash}})
	w.Refresh(context.WithoutCancel(ctx))
	return hash, nil
}

// RefreshMarket reloads price history, news and gas prices concurrently.
// Failures leave the previous values in place.
func (w *Watcher) RefreshMarket(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h, err := w.dataSource.PriceHistory(ctx)
		if err != nil {
			w.logger.Warn("price history unavailable", zap.Error(err))
			return
		}
		w.mu.Lock()
		w.history = h
		w.mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		news := w.dataSource.News(ctx)
		w.mu.Lock()
		w.news = news
		w.mu.Unlock()
	}()

	for _, n := range w.catalog.All() {
		wg.Add(1)
		go func(n models.NetworkDescriptor) {
			defer wg.Done()
			data, err := w.dataSource.GasPrice(ctx, n)
			if err != nil {
				return
			}
			w.mu.Lock()
			w.gasPrices[n.ID] = data.Price
			w.mu.Unlock()
			w.notify(Event{Type: EventGasPriceUpdated, Data: data})
		}(n)
	}

	wg.Wait()
	w.notify(Event{Type: EventMarketUpdated})
}

// Snapshot returns a copy of the session state.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Snapshot{
		Generation: w.generation,
		Detecting:  w.detecting,
		Answer:     w.answer,
		History:    w.history,
		News:       append([]string(nil), w.news...),
		GasPrices:  make(map[models.NetworkID]*big.Int, len(w.gasPrices)),
		Networks:   w.catalog.All(),
	}
	if w.account != nil {
		s.Address = w.account.Address()
	}
	if w.outcome != nil {
		o := *w.outcome
		s.Outcome = &o
	}
	if w.prediction != nil {
		p := *w.prediction
		s.Prediction = &p
	}
	for k, v := range w.gasPrices {
		s.GasPrices[k] = v
	}
	return s
}

// Start begins the market polling loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the polling loop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	w.RefreshMarket(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RefreshMarket(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
