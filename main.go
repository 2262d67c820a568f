package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"ethwallet/pkg/config"
	"ethwallet/pkg/explorer"
	"ethwallet/pkg/logger"
	"ethwallet/pkg/market"
	"ethwallet/pkg/models"
	"ethwallet/pkg/prediction"
	"ethwallet/pkg/rpc"
	"ethwallet/pkg/server"
	"ethwallet/pkg/tui"
	"ethwallet/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "ethwallet",
		Short:         "Lightweight Ethereum account manager",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (default ~/"+config.ConfigFileName+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "dashboard",
			Short: "Open the terminal dashboard",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDashboard(cmd.Context(), flags)
			},
		},
		newDetectCmd(flags),
		newTokensCmd(flags),
		newSendCmd(flags),
		newPredictCmd(flags),
		newCheckCmd(flags),
		newServeCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version and exit",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ethwallet version %s\n", Version)
			},
		},
	)
	return root
}

// loadApp reads configuration and builds the shared components. logPath
// overrides the configured log destination when non-empty.
func loadApp(flags *rootFlags, logPath string) (*app, error) {
	path, err := config.GetConfigPath(flags.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "determine config path")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config from %s", path)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if logPath == "" {
		logPath = cfg.LogFile
	}
	log, err := logger.New(cfg.LogLevel, logPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log, rpc.Dial)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runDashboard(parent context.Context, flags *rootFlags) error {
	// The terminal belongs to the dashboard, so logs go to a file.
	logPath := filepath.Join(os.TempDir(), "ethwallet.log")
	a, err := loadApp(flags, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	if a.cfg.LogFile != "" {
		logPath = a.cfg.LogFile
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	a.log.Info("dashboard starting", zap.String("version", Version), zap.String("log", logPath))
	a.watcher.Start(ctx)
	defer a.watcher.Stop()

	return tui.Start(ctx, a.watcher, a.accounts, a.cfg, Version)
}

func newDetectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <address>",
		Short: "Find the network an address is active on and print the outcome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.TrimSpace(args[0])
			if !common.IsHexAddress(address) {
				return errors.Wrapf(models.ErrInvalidInput, "not an address: %q", address)
			}
			a, err := loadApp(flags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			outcome := a.reconciler.Detect(ctx, common.HexToAddress(address).Hex())
			return writeJSON(cmd.OutOrStdout(), outcome)
		},
	}
}

func newTokensCmd(flags *rootFlags) *cobra.Command {
	var networkID string
	cmd := &cobra.Command{
		Use:   "tokens <address>",
		Short: "Estimate ERC-20 holdings from the explorer transfer log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.TrimSpace(args[0])
			if !common.IsHexAddress(address) {
				return errors.Wrapf(models.ErrInvalidInput, "not an address: %q", address)
			}
			a, err := loadApp(flags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			n, err := a.catalog.Resolve(models.NetworkID(networkID))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			transfers, err := a.explorer.TokenTransfers(ctx, n, address)
			if err != nil {
				return err
			}
			holdings := explorer.AggregateTokenTransfers(address, transfers)

			out := cmd.OutOrStdout()
			if len(holdings) == 0 {
				fmt.Fprintf(out, "No token holdings found on %s.\n", n.DisplayName)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tBALANCE\tCONTRACT")
			for _, h := range holdings {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Symbol, utils.FormatUnits(h.Balance, h.Decimals, a.cfg.TokenDecimals), h.Contract)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&networkID, "network", "n", string(models.Mainnet), "network id")
	return cmd
}

func newSendCmd(flags *rootFlags) *cobra.Command {
	var networkID, to, amount string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send ETH from the account in " + envPrivateKey + " or " + envMnemonic,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			acc, err := a.accountFromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			hash, err := a.submitter.Send(ctx, acc, models.NetworkID(networkID), to, amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&networkID, "network", "n", string(models.Sepolia), "network id")
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in ETH")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPredictCmd(flags *rootFlags) *cobra.Command {
	var question string
	var height int
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Ask the market assistant and chart its forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			history, err := a.market.PriceHistory(ctx)
			if err != nil {
				a.log.Warn("price history unavailable", zap.Error(err))
			}
			if history.CurrentPrice == 0 {
				if spot, err := a.market.SpotPrice(ctx); err == nil {
					history.CurrentPrice = spot
				}
			}

			answer, err := a.market.AskAI(ctx, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)

			p, ok := prediction.Extract(answer)
			var record *models.Prediction
			if ok {
				record = &p
				fmt.Fprintf(out, "\n24h: $%s  7d: $%s  confidence: %.0f%%  method: %s\n",
					utils.FormatFloat(p.Predicted24h, a.cfg.FiatDecimals),
					utils.FormatFloat(p.Predicted7d, a.cfg.FiatDecimals),
					p.Confidence*100, p.Method)
			}
			if history.CurrentPrice > 0 {
				fmt.Fprintf(out, "Current: $%s (%+.2f%% over %d days)\n",
					utils.FormatFloat(history.CurrentPrice, a.cfg.FiatDecimals),
					market.PriceChange(history.Prices), len(history.Prices))
			}
			if chart := prediction.Render(history.Prices, record, 0, height); chart != "" {
				fmt.Fprintf(out, "\n%s\n", chart)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", market.PredictionQuestion, "question for the assistant")
	cmd.Flags().IntVar(&height, "height", 12, "chart height in rows")
	return cmd
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"test"},
		Short:   "Test the configuration against the configured RPC endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(flags.configPath)
			if err != nil {
				return errors.Wrap(err, "determine config path")
			}
			fileCfg, err := config.LoadConfigFromFile(path)
			if err != nil {
				return errors.Wrapf(err, "load config from %s", path)
			}
			cfg, err := config.ApplyEnv(fileCfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			report := runCheck(ctx, out, path, fileCfg, cfg, rpc.Dial, opts)
			if opts.json {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			}
			if checkFailed(report) {
				return errors.New("configuration check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report chain id updates without saving")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless with the JSON status API and websocket events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			if port == 0 {
				port = a.cfg.Port
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if acc, err := a.accountFromEnv(); err == nil {
				a.watcher.SetAccount(ctx, acc)
				a.log.Info("account loaded", zap.String("address", acc.Address()))
			} else {
				a.log.Info("running without an account", zap.Error(err))
			}

			a.watcher.Start(ctx)
			defer a.watcher.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Running in server mode on port %d...\n", port)
			return server.NewServer(a.watcher, a.log.Named("server")).Start(ctx, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port for the API server (default from config)")
	return cmd
}
