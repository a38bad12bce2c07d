package revocation

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper compacts the store on a cron schedule so records expire even when
// no Revoke arrives for a long time.
type Sweeper struct {
	store    Store
	schedule string
	log      *zap.Logger
	cron     *cron.Cron
}

func NewSweeper(store Store, schedule string, log *zap.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		schedule: schedule,
		log:      log.Named("revocation.sweeper"),
		cron:     cron.New(),
	}
}

func (s *Sweeper) Start(context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a running sweep to finish, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) Sweep() {
	n, err := s.store.Compact(context.Background())
	if err != nil {
		s.log.Error("compaction failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("compacted", zap.Int("removed", n))
	}
}
