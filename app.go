package main

import (
	"os"
	"strings"
	"time"

	"ethwallet/pkg/account"
	"ethwallet/pkg/config"
	"ethwallet/pkg/explorer"
	"ethwallet/pkg/fetch"
	"ethwallet/pkg/market"
	"ethwallet/pkg/network"
	"ethwallet/pkg/reconcile"
	"ethwallet/pkg/rpc"
	"ethwallet/pkg/submit"
	"ethwallet/pkg/watcher"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	marketPollInterval = time.Minute

	envPrivateKey = "ETHWALLET_PRIVATE_KEY"
	envMnemonic   = "ETHWALLET_MNEMONIC"
)

// app holds the components shared by every command.
type app struct {
	cfg        config.Config
	log        *zap.Logger
	catalog    *network.Catalog
	accounts   *account.Manager
	explorer   *explorer.Client
	reconciler *reconcile.Reconciler
	market     *market.Client
	submitter  *submit.Submitter
	watcher    *watcher.Watcher
	dial       rpc.Dialer
}

func newApp(cfg config.Config, log *zap.Logger, dial rpc.Dialer) (*app, error) {
	catalog, err := network.NewCatalog(cfg.Networks)
	if err != nil {
		return nil, err
	}

	explorerFetcher := fetch.New(
		fetch.WithMaxAttempts(cfg.FetchMaxAttempts),
		fetch.WithBaseDelay(cfg.FetchBaseDelay),
		fetch.WithAttemptTimeout(cfg.FetchAttemptTimeout),
		fetch.WithRateLimit(cfg.ExplorerRPS),
		fetch.WithLogger(log.Named("explorer")),
	)
	marketFetcher := fetch.New(
		fetch.WithMaxAttempts(cfg.FetchMaxAttempts),
		fetch.WithBaseDelay(cfg.FetchBaseDelay),
		fetch.WithAttemptTimeout(cfg.FetchAttemptTimeout),
		fetch.WithLogger(log.Named("market")),
	)

	exp := explorer.NewClient(explorerFetcher, cfg.ExplorerProxyURL, cfg.ExplorerAPIKey)
	rec := reconcile.New(catalog, exp, dial,
		reconcile.WithNetworkTimeout(cfg.NetworkTimeout),
		reconcile.WithDetectTimeout(cfg.DetectTimeout),
		reconcile.WithHistoryLimit(cfg.HistoryLimit),
		reconcile.WithLogger(log.Named("reconcile")),
	)
	mkt := market.NewClient(cfg.MarketURL, cfg.CoinGeckoURL, marketFetcher, log.Named("market"))
	accounts := account.NewManager(log.Named("account"))
	sub := submit.New(accounts, catalog, dial, log.Named("submit"))

	ds := &watcher.RealDataSource{Reconciler: rec, Market: mkt, Submitter: sub, Dial: dial}
	w := watcher.NewWatcher(catalog, ds, marketPollInterval, log.Named("watcher"))

	return &app{
		cfg:        cfg,
		log:        log,
		catalog:    catalog,
		accounts:   accounts,
		explorer:   exp,
		reconciler: rec,
		market:     mkt,
		submitter:  sub,
		watcher:    w,
		dial:       dial,
	}, nil
}

// accountFromEnv imports the account named by ETHWALLET_PRIVATE_KEY or
// ETHWALLET_MNEMONIC. Secrets are never accepted as flags.
func (a *app) accountFromEnv() (*account.Account, error) {
	if key := strings.TrimSpace(os.Getenv(envPrivateKey)); key != "" {
		return a.accounts.ImportFromPrivateKey(key)
	}
	if phrase := strings.TrimSpace(os.Getenv(envMnemonic)); phrase != "" {
		return a.accounts.ImportFromMnemonic(phrase)
	}
	return nil, errors.Errorf("set %s or %s", envPrivateKey, envMnemonic)
}
