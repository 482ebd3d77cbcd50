package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type TutorProfileRepository struct {
	db DBTX
}

func NewTutorProfileRepository(db DBTX) *TutorProfileRepository {
	return &TutorProfileRepository{db: db}
}

const tutorProfileColumns = `id, user_id, display_name, bio, courses, specialties, rate_micro,
	payout_address, rating, total_sessions, is_verified, onboarding_complete, created_at, updated_at`

func (r *TutorProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `INSERT INTO tutor_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *TutorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tutor_profiles
		WHERE user_id = $1
	`, tutorProfileColumns)
	var profile models.TutorProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.Courses,
		&profile.Specialties,
		&profile.RateMicro,
		&profile.PayoutAddress,
		&profile.Rating,
		&profile.TotalSessions,
		&profile.IsVerified,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type TutorOnboardingInput struct {
	DisplayName   string
	Bio           *string
	Courses       []string
	Specialties   []string
	RateMicro     int64
	PayoutAddress string
}

func (r *TutorProfileRepository) UpdateOnboarding(
	ctx context.Context,
	userID int64,
	input TutorOnboardingInput,
) (*models.TutorProfile, error) {
	query := fmt.Sprintf(`
		UPDATE tutor_profiles
		SET display_name = $1,
			bio = $2,
			courses = $3,
			specialties = $4,
			rate_micro = $5,
			payout_address = $6,
			onboarding_complete = TRUE,
			updated_at = NOW()
		WHERE user_id = $7
		RETURNING %s
	`, tutorProfileColumns)
	var profile models.TutorProfile
	err := r.db.QueryRow(
		ctx,
		query,
		input.DisplayName,
		input.Bio,
		input.Courses,
		input.Specialties,
		input.RateMicro,
		input.PayoutAddress,
		userID,
	).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.Courses,
		&profile.Specialties,
		&profile.RateMicro,
		&profile.PayoutAddress,
		&profile.Rating,
		&profile.TotalSessions,
		&profile.IsVerified,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type TutorListFilter struct {
	Course       string
	MaxRateMicro int64
	MinRating    float64
	Limit        int
	Offset       int
}

func (r *TutorProfileRepository) List(
	ctx context.Context,
	filter TutorListFilter,
) ([]models.TutorProfile, int, error) {
	args := []any{}
	whereParts := []string{"onboarding_complete = TRUE"}

	if course := strings.TrimSpace(filter.Course); course != "" {
		args = append(args, course)
		whereParts = append(whereParts, fmt.Sprintf("$%d = ANY(courses)", len(args)))
	}
	if filter.MaxRateMicro > 0 {
		args = append(args, filter.MaxRateMicro)
		whereParts = append(whereParts, fmt.Sprintf("rate_micro <= $%d", len(args)))
	}
	if filter.MinRating > 0 {
		args = append(args, filter.MinRating)
		whereParts = append(whereParts, fmt.Sprintf("rating >= $%d", len(args)))
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tutor_profiles WHERE %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM tutor_profiles
		WHERE %s
		ORDER BY rating DESC NULLS LAST, total_sessions DESC, id ASC
		LIMIT $%d OFFSET $%d
	`, tutorProfileColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]models.TutorProfile, 0)
	for rows.Next() {
		var profile models.TutorProfile
		if err := rows.Scan(
			&profile.ID,
			&profile.UserID,
			&profile.DisplayName,
			&profile.Bio,
			&profile.Courses,
			&profile.Specialties,
			&profile.RateMicro,
			&profile.PayoutAddress,
			&profile.Rating,
			&profile.TotalSessions,
			&profile.IsVerified,
			&profile.OnboardingComplete,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *TutorProfileRepository) ListAll(ctx context.Context) ([]models.TutorProfile, error) {
	profiles, _, err := r.List(ctx, TutorListFilter{Limit: 500})
	return profiles, err
}

// IncrementTotalSessions bumps the lifetime counter. Callers must only invoke
// it on the confirmed->completed edge, inside the same transaction as the
// status update, so the increment applies exactly once per session.
func (r *TutorProfileRepository) IncrementTotalSessions(ctx context.Context, tutorUserID int64) error {
	query := `
		UPDATE tutor_profiles
		SET total_sessions = total_sessions + 1, updated_at = NOW()
		WHERE user_id = $1
	`
	_, err := r.db.Exec(ctx, query, tutorUserID)
	return err
}
