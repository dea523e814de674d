// internal/historian/historian.go
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields finished games, typically from the Redis history queue.
type Source interface {
	PopGames(ctx context.Context, max int, wait time.Duration) ([]models.GameRecord, []error, error)
}

// Sink persists finished games, typically the Postgres store.
type Sink interface {
	RecordGames(ctx context.Context, recs []models.GameRecord) (int, error)
}

// DefaultPopWait bounds each blocking pop so cancellation is noticed.
const DefaultPopWait = 3 * time.Second

// maxPending caps how many records are held while the sink is failing.
const maxPending = 10000

// Service drains the source in batches and writes them to the sink. A batch
// is flushed when it is full or when the flush delay elapses, whichever is
// first. Failed flushes are retried on the next tick.
type Service struct {
	src        Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	popWait    time.Duration
	log        *logrus.Logger

	batchMu sync.Mutex
	batch   []models.GameRecord
}

// New builds a Service. Non-positive sizes fall back to defaults.
func New(src Source, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Service{
		src:        src,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popWait:    DefaultPopWait,
		log:        logger,
		batch:      make([]models.GameRecord, 0, batchSize),
	}
}

// SetPopWait overrides how long each pop blocks.
func (s *Service) SetPopWait(d time.Duration) {
	s.popWait = d
}

// Run reads until ctx is cancelled, then makes a final flush.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	s.log.Info("historian started")

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			s.log.Info("historian shutting down")
			return

		case <-ticker.C:
			s.Flush(ctx)

		default:
			recs, bad, err := s.src.PopGames(ctx, s.batchSize, s.popWait)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Errorf("pop games: %v", err)
					// Back off so a dead Redis does not spin the loop.
					select {
					case <-ctx.Done():
					case <-time.After(s.flushDelay):
					}
				}
				continue
			}
			for _, e := range bad {
				s.log.Warn(e)
			}
			if len(recs) > 0 {
				s.appendToBatch(ctx, recs)
			}
		}
	}
}

// appendToBatch adds records and flushes once the batch is full.
func (s *Service) appendToBatch(ctx context.Context, recs []models.GameRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, recs...)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch. On failure the batch is kept for the next
// attempt, trimmed to the newest maxPending records.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.GameRecord, len(s.batch))
	copy(pending, s.batch)
	n, err := s.sink.RecordGames(ctx, pending)
	if err != nil {
		s.log.Errorf("flush %d games: %v", len(s.batch), err)
		if over := len(s.batch) - maxPending; over > 0 {
			s.log.Warnf("dropping %d oldest games", over)
			s.batch = append(s.batch[:0], s.batch[over:]...)
		}
		return
	}
	s.log.WithFields(logrus.Fields{"received": len(s.batch), "stored": n}).Info("flushed games to DB")
	s.batch = s.batch[:0]
}

// Pending is the number of records waiting to be flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
