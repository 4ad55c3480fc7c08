// Package sweeper runs the recurring expiry sweep: it finds memberships past
// their expiry, removes the users from their groups when the bot has the
// privilege to do so, notifies them best-effort, and deletes the records.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/subkeeper/subkeeper/internal/metrics"
	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/subscription"
	"github.com/subkeeper/subkeeper/internal/transport"
)

// Options configure the sweep schedule and messaging.
type Options struct {
	// Interval between sweep ticks (hourly in production, every minute in
	// test mode).
	Interval time.Duration

	// InitialDelay before the first tick, to catch expiries missed while
	// the process was down.
	InitialDelay time.Duration

	// NotifyText is sent to each user whose subscription expired.
	NotifyText string
}

// Sweeper drives membership revocation through the messaging transport.
type Sweeper struct {
	subs    *subscription.Service
	tp      transport.Transport
	metrics *metrics.Metrics
	opts    Options
}

// New creates a Sweeper.
func New(subs *subscription.Service, tp transport.Transport, m *metrics.Metrics, opts Options) *Sweeper {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 5 * time.Second
	}
	return &Sweeper{subs: subs, tp: tp, metrics: m, opts: opts}
}

// Start launches the sweep loop in a goroutine. The returned channel closes
// once the loop has observed ctx cancellation and exited.
func (s *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx)
	}()

	slog.Info("expiry sweeper started",
		"interval", s.opts.Interval,
		"initial_delay", s.opts.InitialDelay,
	)
	return done
}

func (s *Sweeper) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.opts.InitialDelay):
		s.Tick(ctx)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one sweep. A failure on one expired entry never aborts the
// remaining entries.
func (s *Sweeper) Tick(ctx context.Context) {
	s.metrics.SweepTicks.Inc()

	expired, err := s.subs.ListExpired(ctx)
	if err != nil {
		slog.Error("expiry scan failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	slog.Info("processing expired memberships", "count", len(expired))
	for _, e := range expired {
		s.processExpired(ctx, e)
	}
}

func (s *Sweeper) processExpired(ctx context.Context, e models.ExpiredMembership) {
	log := slog.With(
		"group_id", e.GroupID,
		"user_id", e.UserID,
		"username", e.Membership.Username,
		"expired_at", e.Membership.ExpiryDate,
	)

	canKick, err := s.tp.CanRestrictMembers(ctx, e.GroupID)
	if err != nil {
		log.Warn("could not check bot permissions, treating as unprivileged", "error", err)
		canKick = false
	}

	if !canKick {
		// Misconfigured deployment: the record must not linger forever, so
		// clean up without kicking and flag it loudly.
		log.Warn("bot lacks permission to remove members, cleaning up record only")
		s.notify(ctx, e.UserID, log)
		s.revoke(ctx, e, "unprivileged", log)
		return
	}

	if err := s.tp.BanMember(ctx, e.GroupID, e.UserID); err != nil {
		switch {
		case errors.Is(err, transport.ErrNotMember):
			// Already left or removed out of band; the cleanup still counts.
			log.Info("user no longer in group, removing record")
			s.revoke(ctx, e, "already_gone", log)
		case errors.Is(err, transport.ErrForbidden):
			log.Warn("removal denied by permissions, keeping record for next sweep", "error", err)
		default:
			log.Error("failed to remove user, keeping record for next sweep", "error", err)
		}
		return
	}

	// Unban immediately so the user can rejoin after re-subscribing; a ban
	// left in place would block them permanently.
	if err := s.tp.UnbanMember(ctx, e.GroupID, e.UserID); err != nil {
		log.Warn("failed to lift ban after kick", "error", err)
	}

	s.notify(ctx, e.UserID, log)
	s.revoke(ctx, e, "kicked", log)
}

// notify is best-effort: users who blocked the bot stay unnotified and that
// must not block deleting the stale record.
func (s *Sweeper) notify(ctx context.Context, userID int64, log *slog.Logger) {
	if err := s.tp.SendMessage(ctx, userID, s.opts.NotifyText, nil); err != nil {
		s.metrics.NotifyFailures.Inc()
		log.Warn("could not notify user of expiry", "error", err)
	}
}

func (s *Sweeper) revoke(ctx context.Context, e models.ExpiredMembership, outcome string, log *slog.Logger) {
	if err := s.subs.Revoke(ctx, e.GroupID, e.UserID); err != nil {
		log.Error("failed to delete membership record", "error", err)
		return
	}
	s.metrics.Revocations.WithLabelValues(outcome).Inc()
}
