package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"telegram-virtual-number/internal/application"
	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/infra/adapters/provider"
	tele "telegram-virtual-number/internal/infra/adapters/telegram"
	"telegram-virtual-number/internal/infra/i18n"
	"telegram-virtual-number/internal/infra/logging"
	red "telegram-virtual-number/internal/infra/redis"
	"telegram-virtual-number/internal/infra/web"
	"telegram-virtual-number/internal/infra/worker"
	"telegram-virtual-number/internal/usecase"
)

// env is what the subcommands operate on.
type env struct {
	cfg       *config.Config
	providers adapter.ProviderRegistry
	pricing   usecase.PricingUseCase
	wallet    usecase.WalletUseCase
	auth      *web.AuthManager
	close     func()
}

type envLoader func(ctx context.Context, cmd *cobra.Command) (*env, error)

func newRootCmd(load envLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "numctl",
		Short:         "Operate the virtual number bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().Bool("dev", false, "developer mode (console logs)")
	root.PersistentFlags().Bool("json", false, "output JSON")

	root.AddCommand(
		newPriceCmd(load),
		newProviderCmd(load),
		newPricingCmd(load),
		newWalletCmd(load),
		newTopUpCmd(load),
		newTokenCmd(load),
	)
	return root
}

// withEnv loads the environment, runs fn and releases it.
func withEnv(load envLoader, fn func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := load(ctx, cmd)
		if err != nil {
			return err
		}
		if e.close != nil {
			defer e.close()
		}
		return fn(ctx, cmd, e, args)
	}
}

// loadEnv builds the same stores and usecases the bot process uses. Wallet
// notifications go through Telegram when a token is configured.
func loadEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	dev, _ := cmd.Flags().GetBool("dev")
	cfg, err := config.LoadConfig(path, dev)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, dev)
	if !dev {
		l := logger.Level(zerolog.WarnLevel)
		logger = &l
	}

	client, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	providers, err := provider.NewRegistry(cfg.Providers, logger)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("providers: %w", err)
	}
	bundle, err := i18n.NewDefaultBundle(cfg.Locale.Default)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("i18n: %w", err)
	}

	var out adapter.TelegramBotAdapter = tele.NewNoopBotAdapter(logger)
	if cfg.Bot.Token != "" && !strings.EqualFold(cfg.Bot.Mode, "noop") {
		bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, nil, worker.NewPool(1, logger), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram unavailable; notifications are logged only")
		} else {
			out = bot
		}
	}
	notifier := application.NewNotifier(out, red.NewPreferenceRepo(client), bundle, logger)

	return &env{
		cfg:       cfg,
		providers: providers,
		pricing: usecase.NewPricingUseCase(red.NewPricingRuleRepo(client), usecase.PricingDefaults{
			MarginPercent: cfg.Pricing.BaseMarkupPercent,
			RoundTo:       cfg.Pricing.RoundTo,
			MinMargin:     cfg.Pricing.MinMargin,
		}, logger),
		wallet: usecase.NewWalletUseCase(red.NewWalletRepo(client, cfg.Wallet.HistoryCap), red.NewTopUpRepo(client), notifier,
			usecase.WalletSettings{
				AdminIDs:   cfg.Bot.AdminIDs,
				PendingTTL: cfg.Wallet.TopUpPendingTTL,
				DecidedTTL: cfg.Wallet.TopUpDecidedTTL,
				Currency:   cfg.Wallet.Currency,
			}, logger),
		auth:  web.NewAuthManager(cfg.Admin.JWTSecret, 0),
		close: func() { _ = client.Close() },
	}, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
