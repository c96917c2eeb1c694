package app

import (
	"context"
	"log"
	"time"

	"live-test-service/internal/domain"
)

// Sweeper retires finished sessions and closes out offline sessions whose
// scheduled window has passed. It acts only through the store's conditional
// update, so concurrent sweeps on multiple processes converge.
type Sweeper struct {
	service   *Service
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(service *Service, interval, retention time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval, retention: retention}
}

// Run sweeps on a ticker until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.SweepOnce(ctx); err != nil {
				log.Printf("session sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce performs a single pass: expire overdue offline sessions, then
// delete terminal sessions older than the retention window.
func (w *Sweeper) SweepOnce(ctx context.Context) error {
	codes, err := w.service.store.Codes(ctx)
	if err != nil {
		return err
	}
	now := w.service.now()

	for _, code := range codes {
		sess, err := w.service.store.Get(ctx, code)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return err
		}

		if sess.Mode == domain.ModeOffline && sess.Status == domain.StatusActive &&
			sess.Schedule != nil && now.After(sess.Schedule.EndTime) {
			w.expire(ctx, code)
			continue
		}

		terminal := sess.Status == domain.StatusCompleted || sess.Status == domain.StatusCancelled
		if terminal && now.Sub(sess.UpdatedAt) > w.retention {
			if err := w.service.store.Delete(ctx, code); err != nil && !domain.IsNotFound(err) {
				return err
			}
			log.Printf("retired session %s after retention window", code)
		}
	}
	return nil
}

// expire cancels an offline session whose window closed without everyone
// finishing. Standings keep whoever did complete.
func (w *Sweeper) expire(ctx context.Context, code string) {
	updated, err := w.service.store.TryUpdate(ctx, code,
		func(cur *domain.Session) error {
			if cur.Mode != domain.ModeOffline || cur.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			return nil
		},
		func(cur *domain.Session) error {
			cur.Status = domain.StatusCancelled
			cur.Standings = ComputeStandings(cur.Participants)
			return nil
		})
	if err != nil {
		if !domain.IsRejection(err) {
			log.Printf("expire session %s failed: %v", code, err)
		}
		return
	}
	log.Printf("session %s expired at window end", code)
	w.service.broker.Publish(Event{Type: EventSessionCancelled, Code: code, Scope: ScopeBroadcast, Payload: snapshotOf(updated)})
}
