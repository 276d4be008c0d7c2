package service

import (
	"context"
	"time"

	"github.com/sproutmind/sprout/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReflectionInterval = 30 * time.Minute
	// reflectionConcurrency bounds how many children are swept at once.
	reflectionConcurrency = 4
)

// ReflectionService periodically re-checks artifact staleness for every
// child, catching artifacts that went stale without any hypothesis mutation
// to trigger the inline check.
type ReflectionService struct {
	children  domain.ChildStore
	staleness *StalenessService
	interval  time.Duration
	logger    *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewReflectionService(children domain.ChildStore, staleness *StalenessService, interval time.Duration, logger *zap.Logger) *ReflectionService {
	if interval <= 0 {
		interval = DefaultReflectionInterval
	}
	return &ReflectionService{
		children:  children,
		staleness: staleness,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *ReflectionService) Start(ctx context.Context) {
	s.logger.Info("reflection service started", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (s *ReflectionService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("reflection service stopped")
}

func (s *ReflectionService) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("reflection sweep failed", zap.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one staleness pass over every child.
func (s *ReflectionService) Sweep(ctx context.Context) error {
	start := time.Now()

	children, err := s.children.ListAll(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reflectionConcurrency)
	for i := range children {
		child := children[i]
		g.Go(func() error {
			if err := s.staleness.CheckChild(gctx, child.ID, child.FamilyID); err != nil {
				s.logger.Warn("staleness sweep failed for child",
					zap.String("child_id", child.ID.String()),
					zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Debug("reflection sweep complete",
		zap.Int("children", len(children)),
		zap.Duration("took", time.Since(start)))

	return nil
}
