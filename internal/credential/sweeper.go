package credential

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically drops expired, unconsumed credentials. Expiry is
// enforced at consume time regardless; this only reclaims memory.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
	onSwept  func(n int)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper but does not start it. onSwept, if non-nil,
// is called after each pass that removed at least one credential.
func NewSweeper(s Store, interval time.Duration, logger *log.Logger, onSwept func(n int)) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		store:    s,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		onSwept:  onSwept,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then repeats every interval until ctx
// is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	s.logger.Printf("credential sweeper started (interval=%s)", s.interval)
}

// Stop signals the sweeper to exit and waits for it.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns how many credentials were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("credential sweep error: %v", err)
		}
		return n
	}
	if n > 0 {
		s.logger.Printf("credential sweep: removed %d expired credentials", n)
		if s.onSwept != nil {
			s.onSwept(n)
		}
	}
	return n
}
