package event

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carewatch/carewatch/internal/platform/db"
)

// Sweeper runs the auto-approval pass on a fixed cadence. Proposals whose
// pending window elapsed without a customer decision are applied
// automatically.
type Sweeper struct {
	svc  *Service
	pool *pgxpool.Pool
	log  zerolog.Logger

	// Interval is how often the sweep runs.
	Interval time.Duration
	// BatchSize caps how many expired proposals one sweep processes per tenant.
	BatchSize int
	// Tenants lists the tenant schemas swept each tick. When empty, the sweep
	// runs against whatever connection the context carries.
	Tenants []string
}

func NewSweeper(svc *Service, pool *pgxpool.Pool, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:       svc,
		pool:      pool,
		log:       log,
		Interval:  time.Minute,
		BatchSize: 50,
	}
}

// Start blocks, sweeping every Interval until ctx is cancelled. Run it in a
// goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.Interval).
		Int("batch_size", s.BatchSize).
		Strs("tenants", s.Tenants).
		Msg("auto-approval sweeper started")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("auto-approval sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if s.pool == nil || len(s.Tenants) == 0 {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("auto-approval sweep failed")
		}
		return
	}

	for _, tenant := range s.Tenants {
		err := db.WithTenantConn(ctx, s.pool, tenant, func(ctx context.Context) error {
			_, runErr := s.RunOnce(ctx)
			return runErr
		})
		if err != nil {
			s.log.Error().Err(err).Str("tenant", tenant).Msg("auto-approval sweep failed")
		}
	}
}

// RunOnce performs a single sweep on the context's tenant and returns its
// result.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	res, err := s.svc.AutoApprovePending(ctx, s.BatchSize, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if res.Scanned > 0 {
		s.log.Info().
			Str("tenant", db.TenantFromContext(ctx)).
			Int("scanned", res.Scanned).
			Int("approved", res.Approved).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("auto-approval sweep complete")
	}
	return res, nil
}
