// Example usage of the prediction market SDK
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	predictionmarket "github.com/kaifufi/prediction-market-sdk-go"
	"github.com/kaifufi/prediction-market-sdk-go/chain"
	"github.com/kaifufi/prediction-market-sdk-go/s3catalog"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	betSide := flag.String("bet-side", "", "place a wager on side A or B")
	betAmount := flag.String("bet-amount", "", "wager amount in whole units, e.g. 0.5")
	watch := flag.Bool("watch", false, "keep refreshing until interrupted")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flag.Parse()

	cfg, err := predictionmarket.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		logger.Error("Failed to load deployment catalog", "source", cfg.Catalog.Source, "error", err)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "source", cfg.Catalog.Source, "chains", catalog.Registry.ChainKeys(), "artifacts", catalog.Artifacts.Len())

	provider, err := chain.DialKeyedProvider(ctx, cfg.Network.RPCURL, cfg.Wallet.PrivateKeys)
	if err != nil {
		logger.Error("Failed to connect to node", "rpc_url", cfg.Network.RPCURL, "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	metrics := predictionmarket.NewMetrics()
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	clientCfg := predictionmarket.NewClientConfig(cfg, provider, catalog)
	clientCfg.Metrics = metrics
	clientCfg.Logger = logger
	clientCfg.OnSnapshot = printSnapshot

	client, err := predictionmarket.NewClient(clientCfg)
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		os.Exit(1)
	}

	status, err := client.Connect(ctx)
	if err != nil {
		logger.Error("Failed to connect session", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Session %s on chain %s: %s\n", client.SessionID(), client.ChainKey(), status)
	if status != predictionmarket.StatusReady && status != predictionmarket.StatusNoAccount {
		if h := client.Handle(); h != nil && h.Reason() != nil {
			fmt.Printf("Market unavailable: %v\n", h.Reason())
		}
		os.Exit(2)
	}

	if _, err := client.Refresh(ctx); err != nil {
		logger.Warn("initial refresh failed", "error", err)
	}

	if *betSide != "" {
		side, err := parseSide(*betSide)
		if err != nil {
			logger.Error("invalid side", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nPlacing %s on side %s...\n", *betAmount, side)
		receipt, err := client.PlaceBetString(ctx, side, *betAmount)
		if err != nil {
			logger.Error("wager failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Wager settled in block %s (tx %s)\n", receipt.BlockNumber, receipt.TxHash.Hex())
	}

	if !*watch {
		return
	}

	var events <-chan predictionmarket.WalletEvent
	if cfg.Wallet.BridgeURL != "" {
		bridge := predictionmarket.NewWalletEventsClient(predictionmarket.WalletEventsConfig{
			Endpoint: cfg.Wallet.BridgeURL,
			Logger:   logger,
		})
		if err := bridge.Connect(ctx); err != nil {
			logger.Warn("wallet bridge unavailable, polling only", "error", err)
		} else {
			defer bridge.Disconnect()
			events = bridge.Events()
		}
	}

	if err := client.Watch(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch stopped", "error", err)
		os.Exit(1)
	}
}

func loadCatalog(ctx context.Context, cfg *predictionmarket.Config) (*predictionmarket.Catalog, error) {
	switch cfg.Catalog.Source {
	case predictionmarket.CatalogSourceHTTP:
		return predictionmarket.NewHTTPCatalogSource(cfg.Catalog.BaseURL).Load(ctx)
	case predictionmarket.CatalogSourceS3:
		return s3catalog.Load(ctx, cfg.Catalog.S3)
	default:
		return predictionmarket.LoadCatalogFS(os.DirFS(cfg.Catalog.Dir))
	}
}

func printSnapshot(snap *predictionmarket.MarketSnapshot) {
	fmt.Printf("\nMarket snapshot at %s\n", snap.FetchedAt.Format(time.RFC3339))
	for _, side := range predictionmarket.Sides {
		fmt.Printf("  side %s: pool %s (%s%%), yours %s\n",
			side,
			snap.Pool[side].String(),
			snap.Share(side).Mul(decimal.NewFromInt(100)).StringFixed(2),
			snap.Personal[side].String())
	}
	fmt.Printf("  minimum wager: %s\n", snap.MinimumWager.String())
}

func parseSide(s string) (predictionmarket.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return predictionmarket.SideA, nil
	case "B":
		return predictionmarket.SideB, nil
	}
	return 0, fmt.Errorf("side must be A or B, got %q", s)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
