package repository

import (
	"context"
	"errors"
	"time"

	"sms-reminder-service/internal/domain"
	"sms-reminder-service/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReminderRepository interface {
	// Creates a new reminder. A duplicate uuid fails with types.ErrDuplicateUUID.
	Create(ctx context.Context, reminder *domain.Reminder) error
	GetByUUID(ctx context.Context, uuid string) (*domain.Reminder, error)
	Delete(ctx context.Context, uuid string) error
	GetByUUIDs(ctx context.Context, uuids []string) ([]domain.Reminder, error)
	// Returns every reminder that might be due at now. This is a superset
	// query; final eligibility is re-derived by the caller.
	GetDueCandidates(ctx context.Context, now time.Time) ([]domain.Reminder, error)
	// Atomically records a successful send and, for recurring reminders,
	// advances fire_at by the recurrence interval. Returns types.ErrNotFound
	// if the row no longer exists.
	CommitSend(ctx context.Context, id int64, sentAt time.Time) error
}

type reminderRepository struct {
	db *pgxpool.Pool
}

func NewReminderRepository(db *pgxpool.Pool) ReminderRepository {
	return &reminderRepository{db: db}
}

const reminderColumns = `id, uuid, sms_content, target_number, fire_at, is_recurring, recurrence_interval, sent, last_sent_at, created_at`

func scanReminder(row pgx.Row, r *domain.Reminder) error {
	var interval *int
	err := row.Scan(&r.ID, &r.UUID, &r.Content, &r.TargetNumber, &r.FireAt,
		&r.IsRecurring, &interval, &r.Sent, &r.LastSentAt, &r.CreatedAt)
	if err != nil {
		return err
	}
	if interval != nil {
		r.RecurrenceInterval = *interval
	}
	return nil
}

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	sql := `
        INSERT INTO sms_reminders (uuid, sms_content, target_number, fire_at, is_recurring, recurrence_interval)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	var interval *int
	if reminder.IsRecurring {
		interval = &reminder.RecurrenceInterval
	}

	err := r.db.QueryRow(ctx, sql,
		reminder.UUID, reminder.Content, reminder.TargetNumber,
		reminder.FireAt, reminder.IsRecurring, interval,
	).Scan(&reminder.ID, &reminder.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return types.ErrDuplicateUUID
	}
	return err
}

func (r *reminderRepository) GetByUUID(ctx context.Context, uuid string) (*domain.Reminder, error) {
	sql := `SELECT ` + reminderColumns + ` FROM sms_reminders WHERE uuid = $1`

	var reminder domain.Reminder
	err := scanReminder(r.db.QueryRow(ctx, sql, uuid), &reminder)
	if err == pgx.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (r *reminderRepository) Delete(ctx context.Context, uuid string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM sms_reminders WHERE uuid = $1`, uuid)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *reminderRepository) GetByUUIDs(ctx context.Context, uuids []string) ([]domain.Reminder, error) {
	if len(uuids) == 0 {
		return []domain.Reminder{}, nil
	}

	sql := `SELECT ` + reminderColumns + ` FROM sms_reminders WHERE uuid = ANY($1)`

	rows, err := r.db.Query(ctx, sql, uuids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	remindersMap := make(map[string]domain.Reminder)
	for rows.Next() {
		var reminder domain.Reminder
		if err := scanReminder(rows, &reminder); err != nil {
			return nil, err
		}
		remindersMap[reminder.UUID] = reminder
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orderByUUIDs(remindersMap, uuids), nil
}

// orderByUUIDs preserves the order the cache returned the uuids in. Uuids
// whose rows have been deleted since they were cached are dropped.
func orderByUUIDs(remindersMap map[string]domain.Reminder, uuids []string) []domain.Reminder {
	result := make([]domain.Reminder, 0, len(uuids))
	for _, uuid := range uuids {
		if reminder, ok := remindersMap[uuid]; ok {
			result = append(result, reminder)
		}
	}
	return result
}

// The WHERE clause mirrors the in-memory eligibility rules but only narrows
// the candidate set; the scheduling loop re-checks every row it gets back.
func (r *reminderRepository) GetDueCandidates(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	sql := `SELECT ` + reminderColumns + `
             FROM sms_reminders
             WHERE (sent = FALSE AND fire_at <= $1)
                OR (is_recurring = TRUE AND (
                        last_sent_at IS NULL
                        OR last_sent_at + make_interval(mins => recurrence_interval) <= $1))
             ORDER BY fire_at ASC`

	rows, err := r.db.Query(ctx, sql, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]domain.Reminder, 0)
	for rows.Next() {
		var reminder domain.Reminder
		if err := scanReminder(rows, &reminder); err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reminders, nil
}

func (r *reminderRepository) CommitSend(ctx context.Context, id int64, sentAt time.Time) error {
	sql := `
        UPDATE sms_reminders
        SET sent = TRUE,
            last_sent_at = $2,
            fire_at = CASE WHEN is_recurring
                           THEN $2 + make_interval(mins => recurrence_interval)
                           ELSE fire_at END
        WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, sql, id, sentAt)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
