package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

type stubDiscoveryService struct {
	tutors     []models.TutorProfile
	total      int
	matched    []models.TutorWithScore
	matchErr   error
	lastFilter repository.TutorListFilter
}

func (s *stubDiscoveryService) ListTutors(_ context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, int, error) {
	s.lastFilter = filter
	return s.tutors, s.total, nil
}

func (s *stubDiscoveryService) MatchTutors(_ context.Context, _ int64) ([]models.TutorWithScore, error) {
	return s.matched, s.matchErr
}

type stubTutorProfileGetter struct {
	profile *models.TutorProfile
}

func (s *stubTutorProfileGetter) GetByUserID(_ context.Context, _ int64) (*models.TutorProfile, error) {
	if s.profile == nil {
		return nil, pgx.ErrNoRows
	}
	return s.profile, nil
}

func tutorName(s string) *string { return &s }

func TestListTutorsParsesRateFilter(t *testing.T) {
	rate := int64(12_500_000)
	service := &stubDiscoveryService{
		tutors: []models.TutorProfile{
			{UserID: 7, DisplayName: tutorName("Ada"), RateMicro: &rate, TotalSessions: 3},
		},
		total: 1,
	}
	handler := &TutorDiscoveryHandler{discovery: service, tutorProfileRepo: &stubTutorProfileGetter{}}

	app := fiber.New()
	app.Get("/api/tutors", handler.ListTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/tutors?course=CS+101&max_rate_usdc=15.50&min_rating=4", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.Course != "CS 101" {
		t.Fatalf("expected course filter, got %q", service.lastFilter.Course)
	}
	if service.lastFilter.MaxRateMicro != 15_500_000 {
		t.Fatalf("expected 15_500_000 micro, got %d", service.lastFilter.MaxRateMicro)
	}
	if service.lastFilter.MinRating != 4 {
		t.Fatalf("expected min rating 4, got %f", service.lastFilter.MinRating)
	}

	var body struct {
		Tutors []models.TutorListResponse `json:"tutors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Tutors) != 1 || body.Tutors[0].RateUSDC != "12.500000" {
		t.Fatalf("unexpected tutors payload: %+v", body.Tutors)
	}
}

func TestListTutorsRejectsBadRate(t *testing.T) {
	handler := &TutorDiscoveryHandler{discovery: &stubDiscoveryService{}, tutorProfileRepo: &stubTutorProfileGetter{}}

	app := fiber.New()
	app.Get("/api/tutors", handler.ListTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/tutors?max_rate_usdc=12.3456789", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetRecommendedTutorsAppliesLimit(t *testing.T) {
	matched := make([]models.TutorWithScore, 0, 3)
	for i := int64(1); i <= 3; i++ {
		matched = append(matched, models.TutorWithScore{
			TutorProfile: models.TutorProfile{UserID: i},
			MatchScore:   int(100 - i),
		})
	}
	handler := &TutorDiscoveryHandler{
		discovery:        &stubDiscoveryService{matched: matched},
		tutorProfileRepo: &stubTutorProfileGetter{},
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", "student")
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Get("/api/tutors/recommended", handler.GetRecommendedTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/tutors/recommended?limit=2", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Tutors []models.TutorListResponse `json:"tutors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Tutors) != 2 {
		t.Fatalf("expected 2 tutors, got %d", len(body.Tutors))
	}
	if body.Tutors[0].ID != "1" || body.Tutors[0].MatchScore != 99 {
		t.Fatalf("unexpected first tutor: %+v", body.Tutors[0])
	}
}

func TestGetRecommendedTutorsForbiddenForTutors(t *testing.T) {
	handler := &TutorDiscoveryHandler{discovery: &stubDiscoveryService{}, tutorProfileRepo: &stubTutorProfileGetter{}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", "tutor")
		c.Locals("user_id", "7")
		return c.Next()
	})
	app.Get("/api/tutors/recommended", handler.GetRecommendedTutors)

	req := httptest.NewRequest(http.MethodGet, "/api/tutors/recommended", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetTutorDetailNotFound(t *testing.T) {
	handler := &TutorDiscoveryHandler{discovery: &stubDiscoveryService{}, tutorProfileRepo: &stubTutorProfileGetter{}}

	app := fiber.New()
	app.Get("/api/tutors/:id", handler.GetTutorDetail)

	req := httptest.NewRequest(http.MethodGet, "/api/tutors/404", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
