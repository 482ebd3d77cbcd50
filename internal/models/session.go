package models

import "time"

const (
	SessionStatusPending   = "pending"
	SessionStatusConfirmed = "confirmed"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type Session struct {
	ID              int64     `json:"id"`
	TutorID         int64     `json:"tutor_id"`
	StudentID       int64     `json:"student_id"`
	Course          string    `json:"course"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EndsAt is the exclusive end of the session interval [ScheduledAt, EndsAt).
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusCancelled
}

type Payment struct {
	ID                   int64     `json:"id"`
	SessionID            int64     `json:"session_id"`
	StudentID            int64     `json:"student_id"`
	TutorID              int64     `json:"tutor_id"`
	AmountMicro          int64     `json:"amount_micro"`
	Currency             string    `json:"currency"`
	TxHash               *string   `json:"tx_hash"`
	Status               string    `json:"status"`
	VerificationAttempts int       `json:"verification_attempts"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type SessionDetail struct {
	Session
	Payment *Payment `json:"payment,omitempty"`
}
