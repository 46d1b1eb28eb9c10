package dto

import "time"

type CreateReminderRequest struct {
	UUID                string `json:"uuid" binding:"required,max=100"`
	Content             string `json:"sms_content" binding:"required,max=500"`
	TargetNumber        string `json:"target_number" binding:"required,max=20"`
	Time                string `json:"time" binding:"required"`
	IsCirculation       bool   `json:"is_circulation"`
	CirculationInterval *int   `json:"circulation_interval"`
}

type CreateReminderResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UUID          string `json:"uuid"`
	ScheduledTime string `json:"scheduled_time"`
}

type AgentCreateResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	UUID                string `json:"uuid"`
	ScheduledTime       string `json:"scheduled_time"`
	IsCirculation       bool   `json:"is_circulation"`
	CirculationInterval *int   `json:"circulation_interval,omitempty"`
	NextTrigger         string `json:"next_trigger"`
}

type ReminderData struct {
	UUID                string  `json:"uuid"`
	Content             string  `json:"sms_content"`
	TargetNumber        string  `json:"target_number"`
	Time                string  `json:"time"`
	IsCirculation       bool    `json:"is_circulation"`
	CirculationInterval *int    `json:"circulation_interval,omitempty"`
	IsSent              bool    `json:"is_sent"`
	LastSentTime        *string `json:"last_sent_time"`
}

type ReminderResponse struct {
	Success bool         `json:"success"`
	Data    ReminderData `json:"data"`
}

type SentRemindersResponse struct {
	Reminders []ReminderData `json:"reminders"`
	Total     int64          `json:"total"`
}

type JobResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
