package usecase

import (
	"context"
	"errors"
	"time"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// watch (re)starts the poller for o. Any loop already running for the same
// "{provider}:{id}" is stopped before the new one begins.
func (u *orderUC) watch(o *model.Order, budget time.Duration) {
	snapshot := *o
	u.pollers.CancelAndReplace(o.Key(), func(ctx context.Context) {
		u.poll(ctx, &snapshot, budget)
	})
}

// poll checks the vendor at t=0, interval, 2*interval, ... while t <= budget.
// Slots missed behind a slow status call are skipped, and every call runs
// under the window deadline, so the loop never outlives the budget. It stops
// on code_received, on a terminal status, on cancellation, or after more than
// MaxConsecutiveFailures failed checks in a row.
func (u *orderUC) poll(ctx context.Context, o *model.Order, budget time.Duration) {
	log := u.log.With().Int64("user_id", o.UserID).Str("provider", o.Provider).Str("order_id", o.ID).Logger()
	p, err := u.providers.Get(o.Provider)
	if err != nil {
		log.Error().Err(err).Msg("poller: provider gone")
		return
	}
	metrics.IncActivePollers()
	defer metrics.DecActivePollers()

	start := time.Now()
	windowCtx, cancel := context.WithDeadline(ctx, start.Add(budget))
	defer cancel()

	interval := u.settings.Interval
	failures := 0
	for slot := time.Duration(0); slot <= budget; {
		st, err := p.Status(windowCtx, o.ID)
		if ctx.Err() != nil {
			metrics.IncPollOutcome(o.Provider, "canceled")
			return
		}
		if err != nil && windowCtx.Err() != nil {
			log.Debug().Err(err).Msg("poller: window closed during status check")
			break
		}
		if err != nil {
			failures++
			log.Warn().Err(err).Int("failures", failures).Bool("transient", domain.IsTransient(err)).Msg("poller: status check failed")
			if limit := u.settings.MaxConsecutiveFailures; limit > 0 && failures > limit {
				metrics.IncPollOutcome(o.Provider, "unreachable")
				u.notify(ctx, log, o.UserID, "order.vendor_unreachable", o.PhoneNumber)
				return
			}
		} else {
			failures = 0
			if u.applyPolled(ctx, log, o, st) {
				return
			}
		}

		slot += interval
		for elapsed := time.Since(start); slot < elapsed; {
			slot += interval
		}
		if slot > budget {
			break
		}
		select {
		case <-ctx.Done():
			metrics.IncPollOutcome(o.Provider, "canceled")
			return
		case <-time.After(time.Until(start.Add(slot))):
		}
	}

	metrics.IncPollOutcome(o.Provider, "expired")
	log.Info().Str("status", o.Status.String()).Msg("poller: time budget exhausted")
	if !u.settings.NotifyOnExpiry {
		return
	}
	if err := u.orders.RemoveActive(ctx, o.UserID, o.Provider, o.ID); err != nil {
		log.Warn().Err(err).Msg("poller: remove expired order")
	}
	u.notify(ctx, log, o.UserID, "order.expired", o.PhoneNumber)
}

// applyPolled folds a status result into o and reports whether polling is
// over.
func (u *orderUC) applyPolled(ctx context.Context, log zerolog.Logger, o *model.Order, st model.StatusResult) bool {
	prevStatus, prevCode := o.Status, o.LastCode
	if err := o.Apply(st.Status, st.Code); err != nil {
		log.Warn().Err(err).Msg("poller: ignoring backward transition")
		return false
	}

	switch {
	case o.Status.IsTerminal():
		if err := u.orders.RemoveActive(ctx, o.UserID, o.Provider, o.ID); err != nil {
			log.Warn().Err(err).Msg("poller: remove finished order")
		}
		metrics.IncPollOutcome(o.Provider, "terminal")
		u.notify(ctx, log, o.UserID, "order.final."+o.Status.String(), o.PhoneNumber)
		return true

	case o.Status == model.OrderStatusCodeReceived:
		if prevStatus == o.Status && prevCode == o.LastCode {
			// the vendor still shows the code from before a repeat
			return false
		}
		u.update(ctx, log, o)
		metrics.IncPollOutcome(o.Provider, "code_received")
		u.notify(ctx, log, o.UserID, "order.code_received", o.PhoneNumber, o.LastCode)
		return true

	default:
		if prevStatus != o.Status {
			u.update(ctx, log, o)
		}
		return false
	}
}

func (u *orderUC) update(ctx context.Context, log zerolog.Logger, o *model.Order) {
	err := u.orders.UpdateActive(ctx, o)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Msg("poller: active entry already gone")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("poller: update active order")
	}
}

func (u *orderUC) notify(ctx context.Context, log zerolog.Logger, userID int64, key string, args ...any) {
	if err := u.notifier.Notify(context.WithoutCancel(ctx), userID, key, args...); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("poller: notify user")
	}
}
