package worker

import (
	"context"
	"sync"
	"time"

	"shekkle/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ExpiredBetCloser is the part of the bet service the sweeper drives
type ExpiredBetCloser interface {
	TransitionExpiredBets(ctx context.Context) ([]*models.Bet, error)
}

// DeadlineSweeper periodically closes open bets whose deadline has passed
type DeadlineSweeper struct {
	bets     ExpiredBetCloser
	interval time.Duration
}

// NewDeadlineSweeper creates a sweeper running every interval
func NewDeadlineSweeper(bets ExpiredBetCloser, interval time.Duration) *DeadlineSweeper {
	return &DeadlineSweeper{
		bets:     bets,
		interval: interval,
	}
}

// Sweep runs a single pass and returns the bets it closed
func (s *DeadlineSweeper) Sweep(ctx context.Context) []*models.Bet {
	logger := log.WithFields(log.Fields{
		"worker": "deadline_sweeper",
		"run_id": uuid.NewString(),
	})

	moved, err := s.bets.TransitionExpiredBets(ctx)
	if err != nil {
		logger.WithError(err).Error("Deadline sweep failed")
		return nil
	}

	for _, bet := range moved {
		logger.WithFields(log.Fields{
			"bet_id":   bet.ID,
			"deadline": bet.Deadline,
		}).Info("Bet closed for wagering")
	}

	logger.WithField("closed", len(moved)).Debug("Deadline sweep finished")
	return moved
}

// Start launches the sweep loop. The first pass runs immediately.
// Returns a cleanup function to stop the worker gracefully, safe to call more than once.
func (s *DeadlineSweeper) Start(ctx context.Context) func() {
	ticker := time.NewTicker(s.interval)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithField("interval", s.interval).Info("Deadline sweeper started")

		s.Sweep(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Deadline sweeper shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Deadline sweeper shutting down (stop requested)...")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			ticker.Stop()
			close(stopChan)
		})
		<-done
	}
}
