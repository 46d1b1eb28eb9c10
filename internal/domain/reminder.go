package domain

import "time"

// Reminder is a stored notification task. FireAt always holds the next
// instant the task should be evaluated for sending; for recurring tasks it
// is advanced by the interval after every successful send.
type Reminder struct {
	ID                 int64      `json:"id" db:"id"`
	UUID               string     `json:"uuid" db:"uuid"`
	Content            string     `json:"sms_content" db:"sms_content"`
	TargetNumber       string     `json:"target_number" db:"target_number"`
	FireAt             time.Time  `json:"time" db:"fire_at"`
	IsRecurring        bool       `json:"is_circulation" db:"is_recurring"`
	RecurrenceInterval int        `json:"circulation_interval" db:"recurrence_interval"` // minutes
	Sent               bool       `json:"is_sent" db:"sent"`
	LastSentAt         *time.Time `json:"last_sent_time" db:"last_sent_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// DueAt reports whether the reminder is eligible to fire at now. Eligibility
// is always derived from the row's own fields, never from store-side filters.
func (r *Reminder) DueAt(now time.Time) bool {
	if !r.Sent && !r.FireAt.After(now) {
		return true
	}
	if r.IsRecurring {
		if r.LastSentAt == nil {
			return true
		}
		return !now.Before(r.NextEligibleAt())
	}
	return false
}

// NextEligibleAt returns the earliest instant a recurring reminder may fire
// again after its last send. Meaningless for reminders never sent.
func (r *Reminder) NextEligibleAt() time.Time {
	if r.LastSentAt == nil {
		return r.FireAt
	}
	return r.LastSentAt.Add(time.Duration(r.RecurrenceInterval) * time.Minute)
}
