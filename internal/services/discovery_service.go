package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

type tutorLister interface {
	List(ctx context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, int, error)
	ListAll(ctx context.Context) ([]models.TutorProfile, error)
}

type studentProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error)
}

type DiscoveryService struct {
	tutorProfileRepo   tutorLister
	studentProfileRepo studentProfileReader
}

func NewDiscoveryService(tutorProfileRepo tutorLister, studentProfileRepo studentProfileReader) *DiscoveryService {
	return &DiscoveryService{
		tutorProfileRepo:   tutorProfileRepo,
		studentProfileRepo: studentProfileRepo,
	}
}

func (s *DiscoveryService) ListTutors(
	ctx context.Context,
	filter repository.TutorListFilter,
) ([]models.TutorProfile, int, error) {
	return s.tutorProfileRepo.List(ctx, filter)
}

// MatchTutors ranks every onboarded tutor against the student's profile.
// Tutors the student cannot afford are still returned, just without the
// budget points, so the student sees the full field.
func (s *DiscoveryService) MatchTutors(ctx context.Context, studentID int64) ([]models.TutorWithScore, error) {
	profile, err := s.studentProfileRepo.GetByUserID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	tutors, err := s.tutorProfileRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]models.TutorWithScore, 0, len(tutors))
	for _, tutor := range tutors {
		scored = append(scored, models.TutorWithScore{
			TutorProfile: tutor,
			MatchScore:   matchScore(profile, &tutor),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return ratingOf(&scored[i].TutorProfile) > ratingOf(&scored[j].TutorProfile)
	})

	return scored, nil
}

func matchScore(student *models.StudentProfile, tutor *models.TutorProfile) int {
	score := 0

	if student.CoursesTaken != nil && tutor.Courses != nil {
		taught := make(map[string]bool, len(*tutor.Courses))
		for _, course := range *tutor.Courses {
			taught[normalizeCourse(course)] = true
		}
		for _, course := range *student.CoursesTaken {
			if taught[normalizeCourse(course)] {
				score += 40
			}
		}
	}

	if ratingOf(tutor) > 4.0 {
		score += 20
	}
	if tutor.IsVerified {
		score += 15
	}
	if tutor.TotalSessions > 10 {
		score += 10
	}
	if student.MaxRateMicro != nil && tutor.RateMicro != nil && *tutor.RateMicro <= *student.MaxRateMicro {
		score += 15
	}

	return score
}

func ratingOf(tutor *models.TutorProfile) float64 {
	if tutor.Rating == nil {
		return 0
	}
	return *tutor.Rating
}

func normalizeCourse(course string) string {
	return strings.ToLower(strings.TrimSpace(course))
}
