// Package autosave periodically flushes active game sessions on a cron
// schedule.
package autosave

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dotsetgreg/loreweaver/pkg/logger"
)

const DefaultSchedule = "@5minutes"

// Saver persists every active session and reports how many were written.
type Saver interface {
	SaveAll(ctx context.Context) (int, error)
}

type Scheduler struct {
	saver    Saver
	schedule string
	next     func(time.Time) (time.Time, error)
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

// New validates the schedule, which may be a five-field cron expression or
// a tag such as @hourly or @5minutes.
func New(saver Saver, schedule string) (*Scheduler, error) {
	if saver == nil {
		return nil, fmt.Errorf("autosave: saver is required")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("autosave: invalid schedule %q", schedule)
	}
	return &Scheduler{
		saver:    saver,
		schedule: schedule,
		next: func(t time.Time) (time.Time, error) {
			return gronx.NextTickAfter(schedule, t, false)
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
	}, nil
}

func (s *Scheduler) Schedule() string { return s.schedule }

// Start runs the save loop in the background until Close.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
		logger.InfoCF("autosave", "Auto-save scheduled", map[string]interface{}{
			"schedule": s.schedule,
		})
	})
}

// Close stops the loop and performs a final save.
func (s *Scheduler) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		_, err = s.RunOnce(ctx)
	})
	return err
}

// RunOnce saves immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	started := s.now()
	saved, err := s.saver.SaveAll(ctx)
	fields := map[string]interface{}{
		"saved":       saved,
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.WarnCF("autosave", "Auto-save finished with errors", fields)
		return saved, err
	}
	logger.DebugCF("autosave", "Auto-save finished", fields)
	return saved, nil
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		now := s.now()
		next, err := s.next(now)
		if err != nil {
			logger.ErrorCF("autosave", "Cannot compute next auto-save", map[string]interface{}{
				"schedule": s.schedule,
				"error":    err.Error(),
			})
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			_, _ = s.RunOnce(context.Background())
		}
	}
}
