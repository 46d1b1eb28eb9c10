package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"sms-reminder-service/internal/services"
)

type JobManager struct {
	currentJob      *Job
	mu              sync.Mutex
	reminderService services.ReminderService
	interval        time.Duration
	wg              *sync.WaitGroup
}

func NewJobManager(reminderService services.ReminderService, interval time.Duration, wg *sync.WaitGroup) *JobManager {
	return &JobManager{
		reminderService: reminderService,
		interval:        interval,
		wg:              wg,
	}
}

// Starts a new job
func (m *JobManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentJob != nil {
		return errors.New("job is already running")
	}
	m.wg.Add(1)

	m.currentJob = NewJob(m.interval, m.reminderService)
	m.currentJob.Start(ctx, m.wg)

	return nil
}

// Stops the active job
func (m *JobManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentJob == nil {
		return errors.New("actively running job not found")
	}

	m.currentJob.Stop()
	m.currentJob = nil
	return nil
}

// Checks if a job is currently running
func (m *JobManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentJob != nil
}
