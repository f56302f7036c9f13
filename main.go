package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-agent/internal/api"
	"trading-agent/internal/control"
	"trading-agent/internal/events"
	"trading-agent/internal/market"
	"trading-agent/internal/monitor"
	"trading-agent/internal/order"
	"trading-agent/internal/store"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/config"
	"trading-agent/pkg/exchanges/binance"
	"trading-agent/pkg/exchanges/coinbase"
	"trading-agent/pkg/exchanges/common"
	"trading-agent/pkg/exchanges/sample"
	"trading-agent/pkg/i18n"
	"trading-agent/pkg/instance"
)

var version = "dev"

func main() {
	issue := flag.String("issue-token", "", "print an operator bearer token for the given name and exit")
	tokenTTL := flag.Duration("token-ttl", 72*time.Hour, "lifetime of -issue-token tokens")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}
	if cfg.Language == "zh" {
		i18n.SetLanguage(i18n.LangZH)
	}

	if *issue != "" {
		token, err := api.IssueToken(*issue, cfg.JWTSecret, *tokenTTL)
		if err != nil {
			log.Fatalf(i18n.Get("TokenIssueFailed"), err)
		}
		fmt.Println(token)
		return
	}

	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port, cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, _ := order.ParseMode(cfg.Mode)
	policy, _ := order.ParsePolicy(cfg.PositionPolicy)
	agentID := instance.ID()

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewMetrics("trading_agent")
	(&monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}).Start(ctx)

	// Market data, in fixed priority order.
	registry, err := market.NewRegistry(buildAdapters(cfg), cfg.PrimaryExchange, bus, metrics)
	if err != nil {
		log.Fatalf(i18n.Get("ExchangeInitFailed"), err)
	}
	registry.ValidateCredentials(ctx)
	if mode == order.ModeLive {
		if venue, ok := registry.Primary(); ok {
			log.Printf(i18n.Get("LiveMode"), venue.Name())
		} else {
			log.Println(i18n.Get("LiveModeNoExchange"))
		}
	} else {
		log.Println(i18n.Get("PaperMode"))
	}

	// Persistence
	ledger := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		DatabaseURL: cfg.DatabaseURL,
		DBPath:      cfg.DBPath,
		Timeout:     cfg.StoreTimeout,
	}, metrics)
	defer ledger.Close()

	// Control state and execution
	state := control.NewState(time.Now())
	executor := order.NewExecutor(order.Config{
		Mode:             mode,
		MaxPositionUSD:   cfg.MaxPositionUSD,
		Policy:           policy,
		SerializeSymbols: cfg.SerializeSymbolOrders,
		PriceTimeframe:   cfg.StrategyTimeframe,
		Instance:         agentID,
	}, state, registry, ledger, bus, metrics)

	// Strategy
	settings := strategy.Settings{
		Symbol:    cfg.StrategySymbol,
		Timeframe: cfg.StrategyTimeframe,
		OrderSize: cfg.OrderSize,
		Params:    strategy.Params{Short: cfg.SMAShort, Long: cfg.SMALong, Buffer: cfg.SMABuffer},
	}
	if overlay, loaded, err := strategy.LoadOverlay(cfg.StrategyConfig, settings); err != nil {
		log.Printf(i18n.Get("StrategyConfigLoadFailed"), err)
	} else if loaded {
		settings = overlay
		log.Printf(i18n.Get("StrategyConfigLoaded"), cfg.StrategyConfig)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf(i18n.Get("StrategyInvalid"), err)
	}
	runner := strategy.NewRunner(settings, registry, executor, bus, metrics)
	log.Printf(i18n.Get("StrategyLoaded"), settings.Symbol, settings.Timeframe,
		settings.Params.Short, settings.Params.Long, settings.OrderSize)

	if cfg.PriceStream {
		go registry.Follow(ctx, binance.NewStreamClient(cfg.ExchangeTestnet), settings.Symbol, time.Minute)
	}

	loop := control.NewLoop(state, runner, cfg.LoopInterval, cfg.FaultInterval, bus, metrics)
	go loop.Run(ctx)

	// API
	server := api.NewServer(api.Deps{
		Bus:       bus,
		Control:   state,
		Orders:    executor,
		Store:     ledger,
		Market:    registry,
		Metrics:   metrics,
		JWTSecret: cfg.JWTSecret,
		Meta: api.SystemMeta{
			Mode:            string(mode),
			Instance:        agentID,
			Symbol:          settings.Symbol,
			Policy:          policy.String(),
			MaxPositionUSD:  cfg.MaxPositionUSD,
			MaxDailyLossPct: cfg.MaxDailyLossPct,
			Version:         version,
		},
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf(i18n.Get("ServerListening"), cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	<-ctx.Done()
	log.Println(i18n.Get("ShuttingDown"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// buildAdapters returns binance, coinbase, then the sample feed. Exchanges
// without keys are still listed for public market data unless disabled.
func buildAdapters(cfg *config.Config) []common.Adapter {
	var adapters []common.Adapter

	if cfg.BinanceAPIKey != "" || cfg.PublicMarketData {
		adapters = append(adapters, binance.New(binance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.ExchangeTestnet,
			Timeout:   cfg.ExchangeTimeout,
		}))
	}
	if cfg.CoinbaseAPIKey != "" || cfg.PublicMarketData {
		adapters = append(adapters, coinbase.New(coinbase.Config{
			APIKey:     cfg.CoinbaseAPIKey,
			APISecret:  cfg.CoinbaseAPISecret,
			Passphrase: cfg.CoinbasePassphrase,
			Sandbox:    cfg.ExchangeTestnet,
			Timeout:    cfg.ExchangeTimeout,
		}))
	}
	if cfg.SampleDataPath != "" {
		adapters = append(adapters, sample.New(cfg.SampleDataPath, cfg.SampleSymbol))
	}

	for _, a := range adapters {
		log.Printf(i18n.Get("ExchangeRegistered"), a.Name(), a.CanTrade())
	}
	return adapters
}
