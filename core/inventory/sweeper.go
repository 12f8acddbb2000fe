package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultSweepInterval = 60 * time.Second

type expirer interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically releases expired reservations until its context is cancelled.
type Sweeper struct {
	expirer  expirer
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(e expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{expirer: e, interval: interval, now: time.Now}
}

func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("starting reservation sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			log.Info().Msg("reservation sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	released, err := s.expirer.SweepExpired(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Int("released", released).Msg("reservation sweep finished with errors")
	}
}
