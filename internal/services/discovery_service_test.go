package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

type stubTutorLister struct {
	tutors []models.TutorProfile
}

func (s *stubTutorLister) List(_ context.Context, _ repository.TutorListFilter) ([]models.TutorProfile, int, error) {
	return s.tutors, len(s.tutors), nil
}

func (s *stubTutorLister) ListAll(_ context.Context) ([]models.TutorProfile, error) {
	return s.tutors, nil
}

type stubStudentProfileReader struct {
	profile *models.StudentProfile
}

func (s *stubStudentProfileReader) GetByUserID(_ context.Context, _ int64) (*models.StudentProfile, error) {
	if s.profile == nil {
		return nil, pgx.ErrNoRows
	}
	return s.profile, nil
}

func strPtr(s string) *string       { return &s }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestMatchScore(t *testing.T) {
	student := &models.StudentProfile{
		CoursesTaken: &[]string{"CS 101", "MATH 221"},
		MaxRateMicro: int64Ptr(20_000_000),
	}

	cases := []struct {
		name  string
		tutor models.TutorProfile
		want  int
	}{
		{
			name: "full match",
			tutor: models.TutorProfile{
				Courses:       &[]string{"cs 101", "math 221"},
				Rating:        float64Ptr(4.8),
				IsVerified:    true,
				TotalSessions: 25,
				RateMicro:     int64Ptr(15_000_000),
			},
			want: 40 + 40 + 20 + 15 + 10 + 15,
		},
		{
			name: "one course over budget",
			tutor: models.TutorProfile{
				Courses:   &[]string{"CS 101"},
				Rating:    float64Ptr(3.5),
				RateMicro: int64Ptr(30_000_000),
			},
			want: 40,
		},
		{
			name: "rating exactly four earns nothing",
			tutor: models.TutorProfile{
				Rating: float64Ptr(4.0),
			},
			want: 0,
		},
		{
			name:  "empty tutor",
			tutor: models.TutorProfile{},
			want:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchScore(student, &tc.tutor); got != tc.want {
				t.Errorf("matchScore = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMatchTutorsOrdering(t *testing.T) {
	student := &models.StudentProfile{
		CoursesTaken: &[]string{"CS 101"},
	}
	tutors := []models.TutorProfile{
		{UserID: 1, DisplayName: strPtr("low"), Rating: float64Ptr(3.0)},
		{UserID: 2, DisplayName: strPtr("match"), Courses: &[]string{"CS 101"}, Rating: float64Ptr(3.0)},
		{UserID: 3, DisplayName: strPtr("rated"), Rating: float64Ptr(4.9)},
	}

	svc := NewDiscoveryService(&stubTutorLister{tutors: tutors}, &stubStudentProfileReader{profile: student})

	scored, err := svc.MatchTutors(context.Background(), 99)
	if err != nil {
		t.Fatalf("MatchTutors: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 tutors, got %d", len(scored))
	}
	if scored[0].UserID != 2 {
		t.Errorf("expected course match first, got user %d", scored[0].UserID)
	}
	if scored[1].UserID != 3 {
		t.Errorf("expected high rating second, got user %d", scored[1].UserID)
	}
}

func TestMatchTutorsNoProfile(t *testing.T) {
	svc := NewDiscoveryService(&stubTutorLister{}, &stubStudentProfileReader{})
	if _, err := svc.MatchTutors(context.Background(), 1); err != ErrStudentNotFound {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}
