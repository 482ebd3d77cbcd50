package models

import "time"

type StudentProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	DisplayName        *string   `json:"display_name"`
	Bio                *string   `json:"bio"`
	CoursesTaken       *[]string `json:"courses_taken"`
	MaxRateMicro       *int64    `json:"max_rate_micro"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
