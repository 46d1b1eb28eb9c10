package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"sms-reminder-service/internal/domain"
)

type stubService struct {
	mu     sync.Mutex
	cycles int
}

func (s *stubService) ProcessDueReminders(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	return nil
}

func (s *stubService) cycleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func (s *stubService) CreateReminder(ctx context.Context, uuid, content, targetNumber string, fireAt time.Time, recurring bool, intervalMinutes *int) (*domain.Reminder, error) {
	return nil, nil
}

func (s *stubService) CreateScheduledReminder(ctx context.Context, uuid, content, targetNumber, timeOfDay, repeat string) (*domain.Reminder, error) {
	return nil, nil
}

func (s *stubService) GetReminder(ctx context.Context, uuid string) (*domain.Reminder, error) {
	return nil, nil
}

func (s *stubService) DeleteReminder(ctx context.Context, uuid string) error { return nil }

func (s *stubService) GetSentReminders(ctx context.Context, page int, pageSize int) ([]domain.Reminder, int64, error) {
	return nil, 0, nil
}

func TestJobManagerStartStop(t *testing.T) {
	var wg sync.WaitGroup
	manager := NewJobManager(&stubService{}, time.Hour, &wg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if manager.IsRunning() {
		t.Fatal("manager running before start")
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !manager.IsRunning() {
		t.Fatal("manager not running after start")
	}
	if err := manager.Start(ctx); err == nil {
		t.Fatal("second start must fail while a job is running")
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if manager.IsRunning() {
		t.Fatal("manager still running after stop")
	}
	if err := manager.Stop(); err == nil {
		t.Fatal("second stop must fail with no job running")
	}

	wg.Wait()
}

func TestJobRunsCyclesOnCadence(t *testing.T) {
	var wg sync.WaitGroup
	service := &stubService{}
	manager := NewJobManager(service, 10*time.Millisecond, &wg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// one immediate cycle plus at least one tick
	deadline := time.Now().Add(time.Second)
	for service.cycleCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if service.cycleCount() < 2 {
		t.Fatalf("cycles = %d, want at least 2", service.cycleCount())
	}

	cancel()
	wg.Wait()
}

func TestJobRestartAfterToggle(t *testing.T) {
	var wg sync.WaitGroup
	service := &stubService{}
	manager := NewJobManager(service, 10*time.Millisecond, &wg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := manager.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !manager.IsRunning() {
		t.Fatal("manager not running after restart")
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("final stop: %v", err)
	}
	wg.Wait()
}
