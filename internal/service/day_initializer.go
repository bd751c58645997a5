package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/pkg/jobs"
)

const dayInitJobType = "day_init"

// DayInitConfig tunes the background day initialization queue.
type DayInitConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

type dayInitPayload struct {
	Date     string
	Students []models.Student
}

// DayInitializer opens each observed calendar day once per process: the
// first non-empty roster seen on a date queues a job that creates the day's
// NOT_MARKED records unless the date already has records.
type DayInitializer struct {
	engine   *AttendanceService
	students rosterStore
	records  attendanceStore
	queue    *jobs.Queue
	logger   *zap.Logger

	mu   sync.Mutex
	done map[string]bool
}

// NewDayInitializer wires the initializer and its job queue.
func NewDayInitializer(engine *AttendanceService, students rosterStore, records attendanceStore, cfg DayInitConfig, logger *zap.Logger) *DayInitializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &DayInitializer{
		engine:   engine,
		students: students,
		records:  records,
		logger:   logger,
		done:     make(map[string]bool),
	}
	d.queue = jobs.NewQueue("day-init", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Run observes the roster and the calendar until ctx is cancelled.
func (d *DayInitializer) Run(ctx context.Context) {
	d.queue.Start(ctx)
	defer d.queue.Stop()

	roster := d.students.WatchActive(ctx)
	ticker := time.NewTicker(d.engine.cfg.RolloverCheck)
	defer ticker.Stop()

	var latest []models.Student
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-roster:
			if !ok {
				return
			}
			if snap.Err != nil {
				d.logger.Warn("roster unavailable for day initialization", zap.Error(snap.Err))
				continue
			}
			latest = snap.Value
		case <-ticker.C:
		}
		d.schedule(d.engine.Today(), latest)
	}
}

// Initialized reports whether date has been opened by this process.
func (d *DayInitializer) Initialized(date string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done[date]
}

func (d *DayInitializer) schedule(date string, students []models.Student) {
	if len(students) == 0 || d.Initialized(date) {
		return
	}
	err := d.queue.Enqueue(jobs.Job{
		Key:     date,
		Type:    dayInitJobType,
		Payload: dayInitPayload{Date: date, Students: students},
	})
	if err != nil && !errors.Is(err, jobs.ErrDuplicate) {
		d.logger.Warn("enqueue day initialization failed", zap.String("date", date), zap.Error(err))
	}
}

func (d *DayInitializer) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dayInitPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	opened, err := d.records.HasAnyRecordForDate(ctx, payload.Date)
	if err != nil {
		return err
	}
	if !opened {
		if _, err := d.engine.EnsureDayInitialized(ctx, payload.Students, payload.Date); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.done[payload.Date] = true
	d.mu.Unlock()
	return nil
}
