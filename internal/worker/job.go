package worker

import (
	"context"
	"sync"
	"time"

	"sms-reminder-service/internal/services"

	"github.com/rs/zerolog/log"
)

type Job struct {
	ticker          *time.Ticker
	quit            chan struct{}
	reminderService services.ReminderService
	isRunning       bool
	mu              sync.Mutex
}

func NewJob(interval time.Duration, reminderService services.ReminderService) *Job {
	return &Job{
		ticker:          time.NewTicker(interval),
		quit:            make(chan struct{}),
		reminderService: reminderService,
	}
}

func (j *Job) Start(ctx context.Context, wg *sync.WaitGroup) {
	log.Info().Msg("Reminder dispatch job started!")
	go func() {
		// run one cycle immediately so restarts pick up overdue reminders
		// without waiting a full interval
		j.processReminders(ctx)

		for {
			select {
			case <-j.ticker.C:
				j.processReminders(ctx)
			case <-j.quit:
				log.Info().Msg("Stopping reminder dispatch job by toggle")
				j.ticker.Stop()
				wg.Done()
				return
			case <-ctx.Done():
				j.ticker.Stop()
				log.Info().Msg("Application shutdown signal received, stopping reminder dispatch job")
				wg.Done()
				return
			}
		}
	}()
}

func (j *Job) Stop() {
	close(j.quit)
	log.Info().Msg("Reminder dispatch job stopped!")
}

func (j *Job) processReminders(ctx context.Context) {
	j.mu.Lock()
	if j.isRunning {
		log.Info().Msg("Previous cycle still running, skipping this tick")
		j.mu.Unlock()
		return
	}

	j.isRunning = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.isRunning = false
		j.mu.Unlock()
	}()

	// A failed cycle is retried on the next tick; it must never take the
	// process down.
	if err := j.reminderService.ProcessDueReminders(ctx); err != nil {
		log.Error().Err(err).Msg("Unexpected error while processing due reminders")
	}
}
