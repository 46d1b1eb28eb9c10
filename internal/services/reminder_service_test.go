package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sms-reminder-service/internal/domain"
	"sms-reminder-service/internal/types"
)

// ---- fakes ----

type fakeRepo struct {
	mu        sync.Mutex
	seq       int64
	reminders []*domain.Reminder
	fetchErr  error
	// ids that disappear between fetch and commit
	vanished map[int64]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{vanished: map[int64]bool{}}
}

func (f *fakeRepo) Create(ctx context.Context, reminder *domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.UUID == reminder.UUID {
			return types.ErrDuplicateUUID
		}
	}
	f.seq++
	reminder.ID = f.seq
	reminder.CreatedAt = time.Now()
	stored := *reminder
	f.reminders = append(f.reminders, &stored)
	return nil
}

func (f *fakeRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.UUID == uuid {
			copied := *r
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeRepo) Delete(ctx context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reminders {
		if r.UUID == uuid {
			f.reminders = append(f.reminders[:i], f.reminders[i+1:]...)
			return nil
		}
	}
	return types.ErrNotFound
}

func (f *fakeRepo) GetByUUIDs(ctx context.Context, uuids []string) ([]domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.Reminder, 0, len(uuids))
	for _, uuid := range uuids {
		for _, r := range f.reminders {
			if r.UUID == uuid {
				result = append(result, *r)
			}
		}
	}
	return result, nil
}

func (f *fakeRepo) GetDueCandidates(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	candidates := make([]domain.Reminder, 0)
	for _, r := range f.reminders {
		due := (!r.Sent && !r.FireAt.After(now)) ||
			(r.IsRecurring && (r.LastSentAt == nil || !r.LastSentAt.Add(time.Duration(r.RecurrenceInterval)*time.Minute).After(now)))
		if due {
			candidates = append(candidates, *r)
		}
	}
	return candidates, nil
}

func (f *fakeRepo) CommitSend(ctx context.Context, id int64, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vanished[id] {
		return types.ErrNotFound
	}
	for _, r := range f.reminders {
		if r.ID == id {
			r.Sent = true
			sent := sentAt
			r.LastSentAt = &sent
			if r.IsRecurring {
				r.FireAt = sentAt.Add(time.Duration(r.RecurrenceInterval) * time.Minute)
			}
			return nil
		}
	}
	return types.ErrNotFound
}

func (f *fakeRepo) get(uuid string) *domain.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.UUID == uuid {
			return r
		}
	}
	return nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	err   error
	sends int
}

func (d *fakeDispatcher) Send(ctx context.Context, targetNumber, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends++
	return d.err
}

func (d *fakeDispatcher) sendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends
}

type fakeCache struct {
	mu    sync.Mutex
	uuids []string
}

func (c *fakeCache) AddSentReminder(ctx context.Context, uuid string, sentAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uuids = append(c.uuids, uuid)
	return nil
}

func (c *fakeCache) GetSentReminderUUIDs(ctx context.Context, page int, pageSize int) ([]string, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.uuids...), int64(len(c.uuids)), nil
}

func (c *fakeCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.uuids)
}

// ---- helpers ----

var baseTime = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, disp *fakeDispatcher, c *fakeCache) *reminderService {
	svc := NewReminderService(repo, c, disp).(*reminderService)
	svc.now = func() time.Time { return baseTime }
	return svc
}

func intPtr(n int) *int { return &n }

// ---- tests ----

func TestProcessDueRemindersSendsOneShotExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(-time.Minute), false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1", disp.sendCount())
	}

	stored := repo.get("r1")
	if !stored.Sent {
		t.Error("sent flag not set after successful dispatch")
	}
	if stored.LastSentAt == nil || !stored.LastSentAt.Equal(baseTime) {
		t.Errorf("lastSentAt = %v, want %v", stored.LastSentAt, baseTime)
	}

	// a second cycle with no time advance must be a no-op
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if disp.sendCount() != 1 {
		t.Fatalf("sends after idempotent cycle = %d, want 1", disp.sendCount())
	}
}

func TestProcessDueRemindersSkipsFutureOneShot(t *testing.T) {
	repo := newFakeRepo()
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(time.Hour), false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 0 {
		t.Fatalf("sends = %d, want 0", disp.sendCount())
	}
}

func TestRecurringReminderEligibilityBoundary(t *testing.T) {
	repo := newFakeRepo()
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(-time.Minute), true, intPtr(60)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// first fire at baseTime
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1", disp.sendCount())
	}
	stored := repo.get("r1")
	wantFireAt := baseTime.Add(60 * time.Minute)
	if !stored.FireAt.Equal(wantFireAt) {
		t.Fatalf("fireAt advanced to %v, want %v", stored.FireAt, wantFireAt)
	}

	// just before the interval elapses: ineligible
	svc.now = func() time.Time { return baseTime.Add(59 * time.Minute) }
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 1 {
		t.Fatalf("sends before interval = %d, want 1", disp.sendCount())
	}

	// at the interval boundary: eligible again
	svc.now = func() time.Time { return baseTime.Add(60 * time.Minute) }
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 2 {
		t.Fatalf("sends at interval = %d, want 2", disp.sendCount())
	}
}

func TestDispatchFailureLeavesStateUntouched(t *testing.T) {
	repo := newFakeRepo()
	disp := &fakeDispatcher{err: errors.New("gateway unreachable")}
	svc := newTestService(repo, disp, &fakeCache{})

	fireAt := baseTime.Add(-time.Minute)
	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", fireAt, false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	// several cycles: every one retries, none mutates state
	for i := 0; i < 3; i++ {
		if err := svc.ProcessDueReminders(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if disp.sendCount() != 3 {
		t.Fatalf("sends = %d, want 3", disp.sendCount())
	}

	stored := repo.get("r1")
	if stored.Sent || stored.LastSentAt != nil || !stored.FireAt.Equal(fireAt) {
		t.Fatalf("dispatch failure mutated state: %+v", stored)
	}

	// once the gateway recovers the reminder goes out
	disp.mu.Lock()
	disp.err = nil
	disp.mu.Unlock()
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("recovery cycle: %v", err)
	}
	if !repo.get("r1").Sent {
		t.Error("reminder not sent after gateway recovery")
	}
}

func TestVanishedReminderIsBenign(t *testing.T) {
	repo := newFakeRepo()
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	reminder, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(-time.Minute), false, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.vanished[reminder.ID] = true

	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle must not fail on a vanished reminder: %v", err)
	}
}

func TestFetchErrorAbortsCycle(t *testing.T) {
	repo := newFakeRepo()
	repo.fetchErr = errors.New("store unreachable")
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	if err := svc.ProcessDueReminders(context.Background()); err == nil {
		t.Fatal("expected error when the store is unreachable")
	}
	if disp.sendCount() != 0 {
		t.Fatalf("sends = %d, want 0", disp.sendCount())
	}
}

func TestCreateReminderDuplicateUUID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeDispatcher{}, &fakeCache{})

	if _, err := svc.CreateReminder(context.Background(), "r1", "first", "13800138000", baseTime, false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.CreateReminder(context.Background(), "r1", "second", "13900139000", baseTime, false, nil)
	if !errors.Is(err, types.ErrDuplicateUUID) {
		t.Fatalf("err = %v, want ErrDuplicateUUID", err)
	}

	stored := repo.get("r1")
	if stored.Content != "first" {
		t.Errorf("existing record was modified: %+v", stored)
	}
}

func TestCreateReminderRequiresInterval(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeDispatcher{}, &fakeCache{})

	_, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime, true, nil)
	if !errors.Is(err, types.ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
	_, err = svc.CreateReminder(context.Background(), "r2", "hi", "13800138000", baseTime, true, intPtr(0))
	if !errors.Is(err, types.ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
}

func TestCreateScheduledReminder(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeDispatcher{}, &fakeCache{})

	reminder, err := svc.CreateScheduledReminder(context.Background(), "r1", "hi", "13800138000", "10:30", "60")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !reminder.IsRecurring || reminder.RecurrenceInterval != 60 {
		t.Fatalf("unexpected reminder: %+v", reminder)
	}
	want := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	if !reminder.FireAt.Equal(want) {
		t.Fatalf("fireAt = %v, want %v", reminder.FireAt, want)
	}

	_, err = svc.CreateScheduledReminder(context.Background(), "r2", "hi", "13800138000", "half past ten", "")
	if !errors.Is(err, types.ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
}

func TestSuccessfulSendReachesCache(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{}
	svc := newTestService(repo, &fakeDispatcher{}, c)

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(-time.Minute), false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// the cache write is asynchronous
	deadline := time.Now().Add(time.Second)
	for c.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.count() != 1 {
		t.Fatalf("cache entries = %d, want 1", c.count())
	}

	reminders, total, err := svc.GetSentReminders(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("get sent: %v", err)
	}
	if total != 1 || len(reminders) != 1 || reminders[0].UUID != "r1" {
		t.Fatalf("unexpected sent listing: total=%d reminders=%+v", total, reminders)
	}
}

// shutdownDispatcher accepts the send and then cancels the app context, as
// if a shutdown signal landed while the candidate was mid-flight.
type shutdownDispatcher struct {
	cancel context.CancelFunc
}

func (d *shutdownDispatcher) Send(ctx context.Context, targetNumber, content string) error {
	d.cancel()
	return nil
}

func TestCommitLandsWhenShutdownInterruptsCycle(t *testing.T) {
	repo := newFakeRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewReminderService(repo, &fakeCache{}, &shutdownDispatcher{cancel: cancel}).(*reminderService)
	svc.now = func() time.Time { return baseTime }

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(-time.Minute), false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ProcessDueReminders(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	stored := repo.get("r1")
	if !stored.Sent || stored.LastSentAt == nil {
		t.Fatalf("dispatched send was not committed after cancellation: %+v", stored)
	}
}

func TestRecurringNeverSentFiresImmediately(t *testing.T) {
	// a recurring reminder with no send history is eligible as soon as the
	// loop sees it, matching the store-side candidate filter
	repo := newFakeRepo()
	disp := &fakeDispatcher{}
	svc := newTestService(repo, disp, &fakeCache{})

	if _, err := svc.CreateReminder(context.Background(), "r1", "hi", "13800138000", baseTime.Add(time.Hour), true, intPtr(60)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if disp.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1", disp.sendCount())
	}
}
