// Command engine runs the autonomous trading engine: it loads a YAML
// config, wires every adapter (exchange, signal providers, storage,
// notification), builds the rule engine and trailing-stop manager, and
// drives them through internal/orchestrator until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/config"
	"github.com/alejandrodnm/cryptoengine/internal/adapters/crypto"
	"github.com/alejandrodnm/cryptoengine/internal/adapters/exchange"
	"github.com/alejandrodnm/cryptoengine/internal/adapters/notify"
	"github.com/alejandrodnm/cryptoengine/internal/adapters/signal"
	"github.com/alejandrodnm/cryptoengine/internal/adapters/storage"
	"github.com/alejandrodnm/cryptoengine/internal/backtest"
	"github.com/alejandrodnm/cryptoengine/internal/confwatch"
	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/executor"
	"github.com/alejandrodnm/cryptoengine/internal/health"
	"github.com/alejandrodnm/cryptoengine/internal/orchestrator"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
	"github.com/alejandrodnm/cryptoengine/internal/rules"
	"github.com/alejandrodnm/cryptoengine/internal/signals"
	"github.com/alejandrodnm/cryptoengine/internal/trailing"
)

// Exit codes per spec.md §6.
const (
	exitOK            = 0
	exitStartupFault  = 1
	exitInvalidConfig = 2
	exitEncryptError  = 3
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine's YAML configuration")
	logLevel := flag.String("log-level", "", "override config.log.level (debug|info|warn|error)")
	logFormat := flag.String("log-format", "", "override config.log.format (text|json)")
	status := flag.Bool("status", false, "print the persisted portfolio summary and exit")
	record := flag.Bool("record", false, "run live and record every tickers/signals tick for later replay")
	replay := flag.String("replay", "", "run against recorded snapshots under this directory instead of live feeds")
	replaySpeed := flag.Float64("replay-speed", 10, "tick-rate multiplier used with -replay")

	encryptMode := flag.Bool("encrypt", false, "one-shot: encrypt a credentials file and exit")
	encryptPath := flag.String("path", "", "--encrypt: path to the plaintext file to seal")
	encryptOut := flag.String("out", "", "--encrypt: path to write the sealed blob (defaults to <path>.enc)")
	publicKey := flag.String("publickey", "", "--encrypt: recipient's hex-encoded P-256 public key")
	privateKey := flag.String("privatekey", "", "--encrypt: this instance's hex-encoded P-256 private key")
	genKeys := flag.Bool("gen-keys", false, "--encrypt: generate and print a fresh key pair instead of sealing a file")

	flag.Parse()

	if *encryptMode {
		os.Exit(runEncrypt(*genKeys, *encryptPath, *encryptOut, *publicKey, *privateKey))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: load config: %v\n", err)
		os.Exit(exitInvalidConfig)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	log := setupLogger(cfg.Log)
	slog.SetDefault(log)

	log.Info("starting engine",
		"instance", cfg.Core.InstanceName,
		"market", cfg.Trading.Market,
		"virtual", cfg.Trading.Virtual,
		"speed_multiplier", cfg.Core.SpeedMultiplier,
	)

	checker := health.NewChecker()

	if *status {
		if err := runStatus(cfg, checker); err != nil {
			fmt.Fprintf(os.Stderr, "engine: status: %v\n", err)
			os.Exit(exitStartupFault)
		}
		os.Exit(exitOK)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := build(cfg, log, checker, *record, *replay, *replaySpeed)
	if err != nil {
		log.Error("startup fault", "err", err)
		os.Exit(exitStartupFault)
	}
	defer eng.Close()

	watcher := confwatch.New(*configPath, cfg, log)
	watcher.Subscribe(func(next *config.Config) {
		signalProc, tradingProc, err := buildProcessors(next)
		if err != nil {
			eng.notifier.Notify(ports.LevelWarning, fmt.Sprintf("config reload produced an invalid rule set, keeping previous rules: %v", err))
			return
		}
		eng.orc.UpdateRules(signalProc, tradingProc)
		eng.notifier.Notify(ports.LevelInfo, "rule set reloaded")
	})
	startReloadHandler(ctx, watcher, log)

	if eng.runner != nil {
		go func() {
			summary := eng.runner.WatchUntilExhausted(ctx, cancel)
			log.Info("backtest completed",
				"ticks", summary.Ticks,
				"avg_lag", summary.AvgLag,
				"wall_clock", summary.Finished.Sub(summary.Started),
			)
		}()
	}

	eng.orc.Run(ctx)
	log.Info("engine stopped cleanly")
}

// startReloadHandler reacts to SIGHUP by reloading the config; hot
// reload has its own dedicated signal, separate from the shutdown
// signals.
func startReloadHandler(ctx context.Context, watcher *confwatch.Watcher, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(hup)
				return
			case <-hup:
				if err := watcher.Reload(ctx); err != nil {
					log.Warn("config reload failed, keeping previous config", "err", err)
				}
			}
		}
	}()
}

func runEncrypt(genKeys bool, path, out, publicKeyHex, privateKeyHex string) int {
	if genKeys {
		pub, priv, err := crypto.GenerateKeyPair()
		if err != nil {
			fmt.Fprintf(os.Stderr, "engine: generate keys: %v\n", err)
			return exitEncryptError
		}
		fmt.Printf("publickey: %s\nprivatekey: %s\n", pub, priv)
		return exitOK
	}

	if path == "" || publicKeyHex == "" || privateKeyHex == "" {
		fmt.Fprintln(os.Stderr, "engine: --encrypt requires --path, --publickey and --privatekey")
		return exitEncryptError
	}
	if out == "" {
		out = path + ".enc"
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: read %s: %v\n", path, err)
		return exitEncryptError
	}
	blob, err := crypto.EncryptBlob(plaintext, publicKeyHex, privateKeyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: encrypt: %v\n", err)
		return exitEncryptError
	}
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "engine: write %s: %v\n", out, err)
		return exitEncryptError
	}
	fmt.Printf("wrote %s\n", out)
	return exitOK
}

func runStatus(cfg *config.Config, checker *health.Checker) error {
	store, err := storage.NewJSONAccountStore(accountPath(cfg))
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	snap, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load account snapshot: %w", err)
	}

	lines := make([]notify.PortfolioLine, 0, len(snap.TradingPairs))
	for symbol, pos := range snap.TradingPairs {
		lines = append(lines, notify.PortfolioLine{
			Pair:         symbol,
			Cost:         pos.AveragePricePaid.Mul(pos.TotalAmount).StringFixed(2),
			CurrentValue: pos.CurrentPrice.Mul(pos.TotalAmount).StringFixed(2),
			DCALevel:     len(pos.OrderIds) - 1 + pos.Metadata.AdditionalDCALevels,
		})
	}
	notify.PrintPortfolioSummary(os.Stdout, snap.Balance.StringFixed(2), snap.Balance.StringFixed(2), lines)

	hsnap := checker.Snapshot()
	fmt.Printf("\nhealth: %s\n", hsnap.Overall)
	return nil
}

func accountPath(cfg *config.Config) string {
	if cfg.Trading.Virtual {
		return cfg.Storage.DataDir + "/virtual-account.json"
	}
	return cfg.Storage.DataDir + "/exchange-account.json"
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// engine bundles everything build wires together so main can Close it
// cleanly on shutdown.
type engine struct {
	orc      *orchestrator.Orchestrator
	notifier *notify.Console
	audit    *storage.SQLiteAuditStore
	runner   *backtest.Runner
}

func (e *engine) Close() {
	e.notifier.Close()
	if e.audit != nil {
		e.audit.Close()
	}
}

func buildProcessors(cfg *config.Config) (*rules.SignalProcessor, *rules.TradingProcessor, error) {
	signalRules, err := config.BuildRuleSet(cfg.Rules.SignalRules, cfg.Rules.ProcessingMode)
	if err != nil {
		return nil, nil, err
	}
	tradingRules, err := config.BuildRuleSet(cfg.Rules.TradingRules, cfg.Rules.ProcessingMode)
	if err != nil {
		return nil, nil, err
	}

	stopLoss := rules.StopLossConfig{
		Enabled:       cfg.Rules.StopLoss.Enabled,
		Margin:        domain.NewMargin(decimal.NewFromFloat(cfg.Rules.StopLoss.Margin)),
		MinAgeSeconds: cfg.Rules.StopLoss.MinAgeSecs,
	}
	takeProfit := domain.NewMargin(decimal.NewFromFloat(cfg.Rules.TakeProfitMargin))

	return rules.NewSignalProcessor(signalRules), rules.NewTradingProcessor(tradingRules, stopLoss, takeProfit), nil
}

func pairUniverse(cfg *config.Config) ([]domain.TradingPair, error) {
	symbols := cfg.Trading.AllowedPairs
	pairs := make([]domain.TradingPair, 0, len(symbols))
	for _, sym := range symbols {
		p, err := domain.ParseSymbol(sym, cfg.Trading.Market)
		if err != nil {
			return nil, fmt.Errorf("pairUniverse: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func dcaLevels(cfg *config.Config) []orchestrator.DCALevel {
	levels := make([]orchestrator.DCALevel, 0, len(cfg.Trading.DCALevels))
	for _, l := range cfg.Trading.DCALevels {
		levels = append(levels, orchestrator.DCALevel{
			Multiplier: decimal.NewFromFloat(l.Multiplier),
			Margin:     domain.NewMargin(decimal.NewFromFloat(l.Margin)),
		})
	}
	return levels
}

func build(cfg *config.Config, log *slog.Logger, checker *health.Checker, record bool, replayDir string, replaySpeed float64) (*engine, error) {
	pairs, err := pairUniverse(cfg)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewConsole(log, 256)

	tradeLog, err := storage.NewFileTradeLog(cfg.Storage.LogDir)
	if err != nil {
		return nil, fmt.Errorf("build: trade log: %w", err)
	}
	audit, err := storage.NewSQLiteAuditStore(cfg.Storage.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("build: audit store: %w", err)
	}

	initialBalance := domain.MustMoney(decimal.NewFromFloat(cfg.Trading.InitialBalance), cfg.Trading.Market)
	minPositionCost := domain.MustMoney(decimal.NewFromFloat(cfg.Trading.MinPositionCost), cfg.Trading.Market)
	portfolio, err := domain.NewPortfolio(cfg.Core.InstanceName, cfg.Trading.Market, initialBalance, cfg.Trading.MaxPositions, minPositionCost)
	if err != nil {
		return nil, fmt.Errorf("build: portfolio: %w", err)
	}
	book := domain.NewPositionBook()

	var ex ports.Exchange
	var recorder orchestrator.Recorder
	var runner *backtest.Runner
	speedMultiplier := cfg.Core.SpeedMultiplier

	switch {
	case replayDir != "":
		tickerReplayer, err := backtest.NewTickerReplayer(replayDir)
		if err != nil {
			return nil, fmt.Errorf("build: ticker replayer: %w", err)
		}
		ex = backtest.NewReplayExchange(tickerReplayer, decimal.NewFromFloat(cfg.Trading.FeePercent))
		runner = backtest.NewRunner(tickerReplayer, checker, 50*time.Millisecond)
		speedMultiplier = replaySpeed

	case cfg.Trading.Virtual:
		live := exchange.NewClient(os.Getenv("EXCHANGE_BASE_URL"), os.Getenv("EXCHANGE_API_KEY"), 5, log)
		ex = exchange.NewVirtualExchange(live, decimal.NewFromFloat(cfg.Trading.FeePercent))

	default:
		ex = exchange.NewClient(os.Getenv("EXCHANGE_BASE_URL"), os.Getenv("EXCHANGE_API_KEY"), 5, log)
	}

	if record {
		recorder = backtest.NewWriter(cfg.Storage.SnapshotDir)
	}

	var providers []ports.SignalProvider
	if replayDir != "" {
		replayProvider, err := backtest.NewSignalReplayer(replayDir, pairs)
		if err != nil {
			return nil, fmt.Errorf("build: signal replayer: %w", err)
		}
		providers = append(providers, replayProvider)
	} else {
		for _, sc := range cfg.Signals {
			baseURL, _ := sc.Params["base_url"].(string)
			apiKey, _ := sc.Params["api_key"].(string)
			rate := 1.0 / float64(sc.PollingIntervalS)
			providers = append(providers, signal.NewClient(sc.Name, baseURL, apiKey, rate))
		}
	}
	aggregator := signals.New(providers)

	signalProc, tradingProc, err := buildProcessors(cfg)
	if err != nil {
		return nil, fmt.Errorf("build: rules: %w", err)
	}

	validator := executor.TradingConstraintValidator{
		MinBuySellInterval: 10 * time.Second,
		DCACooldown:        time.Duration(cfg.Rules.DCA.MinTimeBetweenS) * time.Second,
		MaxCumulativeCost:  domain.MustMoney(decimal.NewFromFloat(cfg.Rules.DCA.MaxTotalCost), cfg.Trading.Market),
		MinDCAPriceDropPct: decimal.NewFromFloat(cfg.Rules.DCA.MinPriceDropPct),
		MinDCAMarginDrop:   dcaMarginThreshold(cfg),
	}
	history := executor.NewOrderHistory(10_000)
	exec := executor.New(portfolio, book, ex, notifier, audit, tradeLog, validator, history, log)

	trail := trailing.NewManager()

	orcCfg := orchestrator.Config{
		Pairs:           pairs,
		SpeedMultiplier: speedMultiplier,
		BuyMaxCost:      domain.MustMoney(decimal.NewFromFloat(cfg.Trading.BuyMaxCost), cfg.Trading.Market),
		DCALevels:       dcaLevels(cfg),
		MaxDCALevels:    cfg.Rules.DCA.MaxLevels,
		SellFeePercent:  decimal.NewFromFloat(cfg.Trading.FeePercent),
		DCAEnabled:      cfg.Rules.DCA.Enabled,
	}

	orc := orchestrator.New(orcCfg, ex, aggregator, signalProc, tradingProc, trail, exec, book, portfolio, checker, notifier, log, recorder)

	return &engine{orc: orc, notifier: notifier, audit: audit, runner: runner}, nil
}

func dcaMarginThreshold(cfg *config.Config) domain.Margin {
	if len(cfg.Trading.DCALevels) == 0 {
		return domain.ZeroMargin
	}
	return domain.NewMargin(decimal.NewFromFloat(cfg.Trading.DCALevels[0].Margin))
}
