package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/internal/services"
)

type tutorDiscoveryService interface {
	ListTutors(ctx context.Context, filter repository.TutorListFilter) ([]models.TutorProfile, int, error)
	MatchTutors(ctx context.Context, studentID int64) ([]models.TutorWithScore, error)
}

type tutorProfileGetter interface {
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
}

type TutorDiscoveryHandler struct {
	discovery        tutorDiscoveryService
	tutorProfileRepo tutorProfileGetter
}

func NewTutorDiscoveryHandler(discovery *services.DiscoveryService, tutorProfileRepo *repository.TutorProfileRepository) *TutorDiscoveryHandler {
	return &TutorDiscoveryHandler{discovery: discovery, tutorProfileRepo: tutorProfileRepo}
}

func (h *TutorDiscoveryHandler) ListTutors(c *fiber.Ctx) error {
	page, limit := parsePageAndLimit(c)

	minRating, err := parseNonNegativeFloat(c.Query("min_rating"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "min_rating must be a valid non-negative number"})
	}

	var maxRateMicro int64
	if raw := strings.TrimSpace(c.Query("max_rate_usdc")); raw != "" {
		maxRateMicro, err = chain.ParseUSDC(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_rate_usdc must be a valid USDC amount"})
		}
	}

	tutors, total, err := h.discovery.ListTutors(c.Context(), repository.TutorListFilter{
		Course:       strings.TrimSpace(c.Query("course")),
		MaxRateMicro: maxRateMicro,
		MinRating:    minRating,
		Offset:       (page - 1) * limit,
		Limit:        limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutors"})
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor, 0))
	}

	return c.JSON(fiber.Map{
		"tutors":     response,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *TutorDiscoveryHandler) GetRecommendedTutors(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	tutors, err := h.discovery.MatchTutors(c.Context(), studentID)
	if err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch recommended tutors"})
	}
	if len(tutors) > limit {
		tutors = tutors[:limit]
	}

	response := make([]models.TutorListResponse, 0, len(tutors))
	for _, tutor := range tutors {
		response = append(response, buildTutorListResponse(tutor.TutorProfile, tutor.MatchScore))
	}

	return c.JSON(fiber.Map{"tutors": response})
}

func (h *TutorDiscoveryHandler) GetTutorDetail(c *fiber.Ctx) error {
	tutorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tutorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	tutor, err := h.tutorProfileRepo.GetByUserID(c.Context(), tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tutor"})
	}

	return c.JSON(fiber.Map{"tutor": buildTutorDetailResponse(*tutor)})
}

func buildTutorListResponse(tutor models.TutorProfile, matchScore int) models.TutorListResponse {
	response := models.TutorListResponse{
		ID:            strconv.FormatInt(tutor.UserID, 10),
		DisplayName:   stringValue(tutor.DisplayName),
		Courses:       stringSliceValue(tutor.Courses),
		Specialties:   stringSliceValue(tutor.Specialties),
		RateUSDC:      rateResponse(tutor.RateMicro),
		Rating:        floatValueResponse(tutor.Rating),
		TotalSessions: tutor.TotalSessions,
		IsVerified:    tutor.IsVerified,
	}
	if matchScore > 0 {
		response.MatchScore = matchScore
	}
	return response
}

func buildTutorDetailResponse(tutor models.TutorProfile) models.TutorDetailResponse {
	return models.TutorDetailResponse{
		TutorListResponse:  buildTutorListResponse(tutor, 0),
		Bio:                stringValue(tutor.Bio),
		PayoutAddress:      stringValue(tutor.PayoutAddress),
		OnboardingComplete: tutor.OnboardingComplete,
	}
}

func rateResponse(rateMicro *int64) string {
	if rateMicro == nil {
		return ""
	}
	return chain.FormatUSDC(*rateMicro)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringSliceValue(value *[]string) []string {
	if value == nil {
		return []string{}
	}
	return *value
}

func floatValueResponse(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
