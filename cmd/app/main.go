package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-virtual-number/internal/application"
	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/infra/adapters/provider"
	tele "telegram-virtual-number/internal/infra/adapters/telegram"
	"telegram-virtual-number/internal/infra/i18n"
	"telegram-virtual-number/internal/infra/logging"
	"telegram-virtual-number/internal/infra/metrics"
	red "telegram-virtual-number/internal/infra/redis"
	"telegram-virtual-number/internal/infra/web"
	"telegram-virtual-number/internal/infra/worker"
	"telegram-virtual-number/internal/usecase"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no secret redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("app stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	walletRepo := red.NewWalletRepo(redisClient, cfg.Wallet.HistoryCap)
	topupRepo := red.NewTopUpRepo(redisClient)
	orderRepo := red.NewOrderRepo(redisClient, cfg.Wallet.OrderHistoryCap)
	ruleRepo := red.NewPricingRuleRepo(redisClient)
	prefRepo := red.NewPreferenceRepo(redisClient)
	stateRepo := red.NewStateRepo(redisClient, 0)
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Providers ----
	providers, err := provider.NewRegistry(cfg.Providers, logger)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	metrics.SetBuildInfo(version, strings.Join(providers.Enabled(), ","))
	for _, key := range providers.Enabled() {
		vc := cfg.Providers.Numberland
		if key == provider.KeyOnlineSim {
			vc = cfg.Providers.OnlineSim
		}
		logger.Info().Str("provider", key).Str("base_url", vc.BaseURL).
			Str("api_key", logging.Redact(vc.APIKey, cfg.Runtime.Dev)).Msg("provider enabled")
	}

	bundle, err := i18n.NewDefaultBundle(cfg.Locale.Default)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Telegram ----
	pool := worker.NewPool(cfg.Bot.Workers, logger)
	var (
		out adapter.TelegramBotAdapter
		bot *tele.RealTelegramBotAdapter
	)
	switch strings.ToLower(cfg.Bot.Mode) {
	case "noop":
		out = tele.NewNoopBotAdapter(logger)
	default:
		if cfg.Bot.Mode != "" && !strings.EqualFold(cfg.Bot.Mode, "polling") {
			logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
		}
		bot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, pool, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		out = bot
	}
	notifier := application.NewNotifier(out, prefRepo, bundle, logger)

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase(ruleRepo, usecase.PricingDefaults{
		MarginPercent: cfg.Pricing.BaseMarkupPercent,
		RoundTo:       cfg.Pricing.RoundTo,
		MinMargin:     cfg.Pricing.MinMargin,
	}, logger)
	walletUC := usecase.NewWalletUseCase(walletRepo, topupRepo, notifier, usecase.WalletSettings{
		AdminIDs:   cfg.Bot.AdminIDs,
		PendingTTL: cfg.Wallet.TopUpPendingTTL,
		DecidedTTL: cfg.Wallet.TopUpDecidedTTL,
		Currency:   cfg.Wallet.Currency,
	}, logger)

	pollers := worker.NewRegistry(ctx, logger)
	defer pollers.Shutdown()
	orderUC := usecase.NewOrderUseCase(providers, pricingUC, walletUC, orderRepo, locker, pollers, notifier,
		usecase.PollSettings{
			Interval:               cfg.Poll.Interval,
			Grace:                  cfg.Poll.Grace,
			MaxConsecutiveFailures: cfg.Poll.MaxConsecutiveFailures,
			NotifyOnExpiry:         *cfg.Poll.NotifyOnExpiry,
		}, logger)

	facade := application.NewBotFacade(orderUC, walletUC, providers, prefRepo, stateRepo, bundle,
		application.FacadeSettings{Currency: cfg.Wallet.Currency}, logger)

	// ---- Processes ----
	g, gctx := errgroup.WithContext(ctx)

	ops := web.NewServer(walletUC, redisClient, web.NewAuthManager(cfg.Admin.JWTSecret, 0), logger)
	g.Go(func() error { return ops.Start(gctx, cfg.Admin.Port) })

	if bot != nil {
		pool.Start(gctx)
		g.Go(func() error {
			defer pool.Stop()
			err := bot.StartPolling(gctx, facade)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	logger.Info().Str("version", version).Str("mode", cfg.Bot.Mode).Msg("app started")
	return g.Wait()
}
