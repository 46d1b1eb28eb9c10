package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sms-reminder-service/internal/cache"
	"sms-reminder-service/internal/dispatch"
	"sms-reminder-service/internal/domain"
	"sms-reminder-service/internal/repository"
	"sms-reminder-service/internal/schedule"
	"sms-reminder-service/internal/types"

	"github.com/rs/zerolog/log"
)

type ReminderService interface {
	// Saves a new reminder with an explicit absolute fire instant.
	CreateReminder(ctx context.Context, uuid, content, targetNumber string, fireAt time.Time, recurring bool, intervalMinutes *int) (*domain.Reminder, error)
	// Saves a new reminder from a symbolic schedule (HH:MM time-of-day plus
	// an optional free-text recurrence token).
	CreateScheduledReminder(ctx context.Context, uuid, content, targetNumber, timeOfDay, repeat string) (*domain.Reminder, error)
	GetReminder(ctx context.Context, uuid string) (*domain.Reminder, error)
	DeleteReminder(ctx context.Context, uuid string) error
	GetSentReminders(ctx context.Context, page int, pageSize int) ([]domain.Reminder, int64, error)
	// Runs one scheduling cycle: fetch due candidates, re-check eligibility,
	// dispatch, and commit successful sends.
	ProcessDueReminders(ctx context.Context) error
}

type reminderService struct {
	repo       repository.ReminderRepository
	cache      cache.ReminderCache
	dispatcher dispatch.Client
	now        func() time.Time
}

func NewReminderService(repo repository.ReminderRepository, cache cache.ReminderCache, dispatcher dispatch.Client) ReminderService {
	return &reminderService{
		repo:       repo,
		cache:      cache,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *reminderService) CreateReminder(ctx context.Context, uuid, content, targetNumber string, fireAt time.Time, recurring bool, intervalMinutes *int) (*domain.Reminder, error) {
	reminder := &domain.Reminder{
		UUID:         uuid,
		Content:      content,
		TargetNumber: targetNumber,
		FireAt:       fireAt,
		IsRecurring:  recurring,
	}

	if recurring {
		if intervalMinutes == nil || *intervalMinutes <= 0 {
			return nil, fmt.Errorf("%w: circulation_interval must be a positive minute count", types.ErrInvalidSchedule)
		}
		reminder.RecurrenceInterval = *intervalMinutes
	}

	if err := s.repo.Create(ctx, reminder); err != nil {
		if errors.Is(err, types.ErrDuplicateUUID) {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected error occurred while saving reminder to repository: %w", err)
	}

	return reminder, nil
}

func (s *reminderService) CreateScheduledReminder(ctx context.Context, uuid, content, targetNumber, timeOfDay, repeat string) (*domain.Reminder, error) {
	hour, minute, err := schedule.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSchedule, err)
	}

	resolution := schedule.Resolve(repeat, hour, minute, s.now())

	var interval *int
	if resolution.Recurring {
		interval = &resolution.IntervalMinutes
	}
	return s.CreateReminder(ctx, uuid, content, targetNumber, resolution.FireAt, resolution.Recurring, interval)
}

func (s *reminderService) GetReminder(ctx context.Context, uuid string) (*domain.Reminder, error) {
	return s.repo.GetByUUID(ctx, uuid)
}

func (s *reminderService) DeleteReminder(ctx context.Context, uuid string) error {
	return s.repo.Delete(ctx, uuid)
}

// retrieves sent reminders, newest first, from the cache.
func (s *reminderService) GetSentReminders(ctx context.Context, page int, pageSize int) ([]domain.Reminder, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	uuids, total, err := s.cache.GetSentReminderUUIDs(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	if len(uuids) == 0 {
		return []domain.Reminder{}, total, nil
	}

	reminders, err := s.repo.GetByUUIDs(ctx, uuids)
	if err != nil {
		return nil, 0, err
	}

	return reminders, total, nil
}

// ProcessDueReminders runs one poll cycle. The instant captured at the top is
// the authoritative "now" for every eligibility check and commit in the
// cycle. One candidate failing never aborts the rest.
func (s *reminderService) ProcessDueReminders(ctx context.Context) error {
	now := s.now()

	candidates, err := s.repo.GetDueCandidates(ctx, now)
	if err != nil {
		return fmt.Errorf("unexpected error while fetching due reminders: %w", err)
	}

	for i := range candidates {
		reminder := &candidates[i]

		// The store filter is only a narrowing step; eligibility is
		// re-derived here from the reminder's own fields.
		if !reminder.DueAt(now) {
			continue
		}

		if err := s.dispatcher.Send(ctx, reminder.TargetNumber, reminder.Content); err != nil {
			// State stays untouched so the reminder is retried next cycle.
			log.Error().Err(err).Str("uuid", reminder.UUID).Msg("Failed to dispatch reminder")
			continue
		}

		// Shutdown can cancel ctx while this candidate is mid-flight; once
		// the gateway has accepted the message the commit must still land,
		// or the reminder re-fires on restart.
		commitCtx := context.WithoutCancel(ctx)
		if err := s.repo.CommitSend(commitCtx, reminder.ID, now); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				// Deleted between fetch and commit, nothing left to update.
				log.Warn().Str("uuid", reminder.UUID).Msg("Reminder vanished before commit, skipping")
				continue
			}
			log.Error().Err(err).Str("uuid", reminder.UUID).Msg("Failed to commit sent reminder")
			continue
		}

		go s.cacheSentReminder(commitCtx, reminder.UUID, now)

		log.Info().Str("uuid", reminder.UUID).Str("target", reminder.TargetNumber).Msg("Reminder dispatched")
	}

	return nil
}

// caches the sent reminder uuid and its sent date.
func (s *reminderService) cacheSentReminder(ctx context.Context, uuid string, sentAt time.Time) {
	if err := s.cache.AddSentReminder(ctx, uuid, sentAt); err != nil {
		log.Error().Err(err).Str("uuid", uuid).Msg("Failed to add sent reminder to cache")
	}
}
