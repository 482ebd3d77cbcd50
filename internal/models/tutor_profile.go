package models

import "time"

type TutorProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	DisplayName        *string   `json:"display_name"`
	Bio                *string   `json:"bio"`
	Courses            *[]string `json:"courses"`
	Specialties        *[]string `json:"specialties"`
	RateMicro          *int64    `json:"rate_micro"`
	PayoutAddress      *string   `json:"payout_address"`
	Rating             *float64  `json:"rating"`
	TotalSessions      int       `json:"total_sessions"`
	IsVerified         bool      `json:"is_verified"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TutorWithScore struct {
	TutorProfile
	MatchScore int `json:"match_score"`
}

type TutorListResponse struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	Courses       []string `json:"courses"`
	Specialties   []string `json:"specialties"`
	RateUSDC      string   `json:"rate_usdc"`
	Rating        float64  `json:"rating"`
	TotalSessions int      `json:"total_sessions"`
	IsVerified    bool     `json:"is_verified"`
	MatchScore    int      `json:"match_score,omitempty"`
}

type TutorDetailResponse struct {
	TutorListResponse
	Bio                string `json:"bio"`
	PayoutAddress      string `json:"payout_address"`
	OnboardingComplete bool   `json:"onboarding_complete"`
}
