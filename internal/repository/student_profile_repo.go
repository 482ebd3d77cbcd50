package repository

import (
	"context"
	"fmt"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type StudentProfileRepository struct {
	db DBTX
}

func NewStudentProfileRepository(db DBTX) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

const studentProfileColumns = `id, user_id, display_name, bio, courses_taken, max_rate_micro,
	onboarding_complete, created_at, updated_at`

func (r *StudentProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `INSERT INTO student_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *StudentProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM student_profiles
		WHERE user_id = $1
	`, studentProfileColumns)
	var profile models.StudentProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.CoursesTaken,
		&profile.MaxRateMicro,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type StudentOnboardingInput struct {
	DisplayName  string
	Bio          *string
	CoursesTaken []string
	MaxRateMicro *int64
}

func (r *StudentProfileRepository) UpdateOnboarding(
	ctx context.Context,
	userID int64,
	input StudentOnboardingInput,
) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`
		UPDATE student_profiles
		SET display_name = $1,
			bio = $2,
			courses_taken = $3,
			max_rate_micro = $4,
			onboarding_complete = TRUE,
			updated_at = NOW()
		WHERE user_id = $5
		RETURNING %s
	`, studentProfileColumns)
	var profile models.StudentProfile
	err := r.db.QueryRow(
		ctx,
		query,
		input.DisplayName,
		input.Bio,
		input.CoursesTaken,
		input.MaxRateMicro,
		userID,
	).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.CoursesTaken,
		&profile.MaxRateMicro,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
