package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
)

func newPriceCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Preview the sell price for a service/country/operator",
		Long: "Without --base the vendor is asked for a live quote and the pricing\n" +
			"rules are applied to it. With --base only the rules are evaluated.",
		RunE: withEnv(load, runPrice),
	}
	cmd.Flags().String("provider", "", "vendor key (default: first enabled)")
	cmd.Flags().String("service", "", "vendor service id")
	cmd.Flags().String("country", "", "vendor country id")
	cmd.Flags().String("operator", "any", "operator")
	cmd.Flags().Int64("base", 0, "vendor base amount; skips the live quote")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}

func runPrice(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
	service, _ := cmd.Flags().GetString("service")
	country, _ := cmd.Flags().GetString("country")
	operator, _ := cmd.Flags().GetString("operator")
	base, _ := cmd.Flags().GetInt64("base")
	out := cmd.OutOrStdout()

	if base > 0 {
		sell, err := e.pricing.Price(ctx, service, country, operator, base)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(out, map[string]int64{"base": base, "sell": sell})
		}
		fmt.Fprintf(out, "base %d -> sell %d %s\n", base, sell, e.cfg.Wallet.Currency)
		return nil
	}

	p, err := providerFromFlag(cmd, e)
	if err != nil {
		return err
	}
	q, err := p.Quote(ctx, service, country, operator)
	if err != nil {
		return err
	}
	if q.BaseAmount <= 0 {
		return domain.ErrNoQuote
	}
	pq, err := e.pricing.Apply(ctx, p.Key(), service, country, operator, q)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(out, pq)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PROVIDER\t%s\n", p.DisplayName())
	fmt.Fprintf(tw, "AVAILABLE\t%d\n", pq.Available)
	fmt.Fprintf(tw, "BASE\t%d\n", pq.BaseAmount)
	fmt.Fprintf(tw, "SELL\t%d %s\n", pq.SellPrice, e.cfg.Wallet.Currency)
	fmt.Fprintf(tw, "REPEAT\t%t\n", pq.RepeatCapable)
	fmt.Fprintf(tw, "WINDOW\t%s\n", pq.ValidityWindow)
	return tw.Flush()
}

func newProviderCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Inspect vendor accounts and catalogs",
	}
	cmd.PersistentFlags().String("provider", "", "vendor key (default: first enabled)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "balance",
			Short: "Show the vendor account balance (all enabled vendors without --provider)",
			RunE:  withEnv(load, runProviderBalance),
		},
		&cobra.Command{
			Use:   "services",
			Short: "List vendor services",
			RunE:  withEnv(load, runProviderServices),
		},
		&cobra.Command{
			Use:   "countries",
			Short: "List vendor countries",
			RunE:  withEnv(load, runProviderCountries),
		},
	)
	return cmd
}

func providerFromFlag(cmd *cobra.Command, e *env) (adapter.Provider, error) {
	key, _ := cmd.Flags().GetString("provider")
	if key == "" {
		key = e.providers.Default()
	}
	return e.providers.Get(key)
}

func runProviderBalance(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
	keys := e.providers.Enabled()
	if key, _ := cmd.Flags().GetString("provider"); key != "" {
		keys = []string{key}
	}
	type row struct {
		Provider string `json:"provider"`
		Amount   string `json:"amount,omitempty"`
		Currency string `json:"currency,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(keys))
	for _, key := range keys {
		p, err := e.providers.Get(key)
		if err != nil {
			return err
		}
		r := row{Provider: p.Key()}
		if b, err := p.Balance(ctx); err != nil {
			r.Error = err.Error()
		} else {
			r.Amount, r.Currency = b.Amount, b.Currency
		}
		rows = append(rows, r)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), rows)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tBALANCE\tERROR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Provider, strings.TrimSpace(r.Amount+" "+r.Currency), r.Error)
	}
	return tw.Flush()
}

func runProviderServices(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
	p, err := providerFromFlag(cmd, e)
	if err != nil {
		return err
	}
	services, err := p.ListServices(ctx)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), services)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNAME_EN\tACTIVE")
	for _, s := range services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", s.ID, s.Name, s.NameEn, s.Active)
	}
	return tw.Flush()
}

func runProviderCountries(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
	p, err := providerFromFlag(cmd, e)
	if err != nil {
		return err
	}
	countries, err := p.ListCountries(ctx)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), countries)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNAME_EN\tACTIVE")
	for _, c := range countries {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%t\n", c.ID, c.Emoji, c.Name, c.NameEn, c.Active)
	}
	return tw.Flush()
}

func newPricingCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Manage markup rules",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List active rules, most specific first",
		RunE: withEnv(load, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			rules, err := e.pricing.ListRules(ctx)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), rules)
			}
			d := e.pricing.Defaults()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tMARGIN%\tROUND_TO\tMIN_MARGIN")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key(), optFloat(r.MarginPercent), optInt(r.RoundTo), optInt(r.MinMargin))
			}
			fmt.Fprintf(tw, "(defaults)\t%g\t%d\t%d\n", d.MarginPercent, d.RoundTo, d.MinMargin)
			return tw.Flush()
		}),
	}

	set := &cobra.Command{
		Use:   "set <scope>",
		Short: "Create or replace a rule (scope: global|service|country|operator|combo)",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			rule, err := ruleFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			rule.Active = true
			if err := e.pricing.SetRule(ctx, rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s saved\n", rule.Key())
			return nil
		}),
	}
	ruleFlags(set)
	set.Flags().Float64("margin", -1, "margin percent")
	set.Flags().Int64("round-to", -1, "rounding step")
	set.Flags().Int64("min-margin", -1, "minimum absolute margin")

	del := &cobra.Command{
		Use:   "delete <scope>",
		Short: "Delete the rule for a target",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			rule, err := ruleFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			if err := e.pricing.DeleteRule(ctx, rule.Key()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s deleted\n", rule.Key())
			return nil
		}),
	}
	ruleFlags(del)

	cmd.AddCommand(list, set, del)
	return cmd
}

func ruleFlags(cmd *cobra.Command) {
	cmd.Flags().String("service", "", "service id")
	cmd.Flags().String("country", "", "country id")
	cmd.Flags().String("operator", "", "operator")
}

func ruleFromFlags(cmd *cobra.Command, scope string) (model.PricingRule, error) {
	r := model.PricingRule{Scope: model.PricingScope(strings.ToLower(scope))}
	if !model.ValidScope(r.Scope) {
		return r, fmt.Errorf("%w: scope %q", domain.ErrInvalidArgument, scope)
	}
	r.ServiceID, _ = cmd.Flags().GetString("service")
	r.CountryID, _ = cmd.Flags().GetString("country")
	r.Operator, _ = cmd.Flags().GetString("operator")

	if f := cmd.Flags().Lookup("margin"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetFloat64("margin")
		r.MarginPercent = &v
	}
	if f := cmd.Flags().Lookup("round-to"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt64("round-to")
		r.RoundTo = &v
	}
	if f := cmd.Flags().Lookup("min-margin"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt64("min-margin")
		r.MinMargin = &v
	}
	return r, nil
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func optInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func newWalletCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect user wallets",
	}
	balance := &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's balance and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(load, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			uid, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			acc, err := e.wallet.Account(ctx, uid, limit)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), acc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %d balance %d %s\n", acc.UserID, acc.Balance, e.cfg.Wallet.Currency)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, tx := range acc.Transactions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", tx.At.Format(time.DateTime), tx.Type, tx.Amount, tx.Meta)
			}
			return tw.Flush()
		}),
	}
	balance.Flags().Int("limit", 10, "transactions to show")
	cmd.AddCommand(balance)
	return cmd
}

func newTopUpCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topup",
		Short: "Decide pending top-up requests",
	}
	cmd.PersistentFlags().Int64("admin", 0, "acting admin Telegram id (must be in bot.admin_ids)")
	_ = cmd.MarkPersistentFlagRequired("admin")

	decide := func(approve bool) func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
		return func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			actor, _ := cmd.Flags().GetInt64("admin")
			fn := e.wallet.Reject
			if approve {
				fn = e.wallet.Approve
			}
			req, err := fn(ctx, args[0], actor)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), req)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "top-up %s %s: user %d amount %d\n", req.ID, req.Status, req.UserID, req.Amount)
			return nil
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "approve <id>", Short: "Approve and credit the wallet", Args: cobra.ExactArgs(1), RunE: withEnv(load, decide(true))},
		&cobra.Command{Use: "reject <id>", Short: "Reject without crediting", Args: cobra.ExactArgs(1), RunE: withEnv(load, decide(false))},
	)
	return cmd
}

func newTokenCmd(load envLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the ops HTTP server",
		RunE: withEnv(load, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			actor, _ := cmd.Flags().GetInt64("admin")
			if !e.wallet.IsAdmin(actor) {
				return fmt.Errorf("%w: %d is not in bot.admin_ids", domain.ErrPermissionDenied, actor)
			}
			tok, err := e.auth.Mint(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		}),
	}
	cmd.Flags().Int64("admin", 0, "admin Telegram id placed in the token subject")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func parseUserID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscan(s, &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user id %q", domain.ErrInvalidArgument, s)
	}
	return id, nil
}
