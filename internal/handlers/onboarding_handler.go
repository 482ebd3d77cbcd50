package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

type studentOnboardingStore interface {
	UpdateOnboarding(ctx context.Context, userID int64, input repository.StudentOnboardingInput) (*models.StudentProfile, error)
}

type tutorOnboardingStore interface {
	UpdateOnboarding(ctx context.Context, userID int64, input repository.TutorOnboardingInput) (*models.TutorProfile, error)
}

type OnboardingHandler struct {
	studentProfileRepo studentOnboardingStore
	tutorProfileRepo   tutorOnboardingStore
}

func NewOnboardingHandler(studentProfileRepo studentOnboardingStore, tutorProfileRepo tutorOnboardingStore) *OnboardingHandler {
	return &OnboardingHandler{
		studentProfileRepo: studentProfileRepo,
		tutorProfileRepo:   tutorProfileRepo,
	}
}

type studentOnboardingRequest struct {
	DisplayName  string   `json:"display_name"`
	Bio          *string  `json:"bio"`
	CoursesTaken []string `json:"courses_taken"`
	MaxRateUSDC  string   `json:"max_rate_usdc"`
}

type tutorOnboardingRequest struct {
	DisplayName   string   `json:"display_name"`
	Bio           *string  `json:"bio"`
	Courses       []string `json:"courses"`
	Specialties   []string `json:"specialties"`
	RateUSDC      string   `json:"rate_usdc"`
	PayoutAddress string   `json:"payout_address"`
}

func (h *OnboardingHandler) StudentOnboarding(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req studentOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name must not be empty"})
	}
	if len(req.CoursesTaken) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "courses_taken must not be empty"})
	}

	var maxRateMicro *int64
	if strings.TrimSpace(req.MaxRateUSDC) != "" {
		micro, err := chain.ParseUSDC(req.MaxRateUSDC)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_rate_usdc must be a valid USDC amount"})
		}
		maxRateMicro = &micro
	}

	profile, err := h.studentProfileRepo.UpdateOnboarding(c.Context(), userID, repository.StudentOnboardingInput{
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Bio:          req.Bio,
		CoursesTaken: req.CoursesTaken,
		MaxRateMicro: maxRateMicro,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *OnboardingHandler) TutorOnboarding(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "tutor" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req tutorOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name must not be empty"})
	}
	if len(req.Courses) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "courses must not be empty"})
	}
	if !chain.ValidAddress(req.PayoutAddress) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payout_address must be a valid 0x address"})
	}

	rateMicro, err := chain.ParseUSDC(req.RateUSDC)
	if err != nil || rateMicro <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rate_usdc must be a positive USDC amount per 30-minute unit"})
	}

	profile, err := h.tutorProfileRepo.UpdateOnboarding(c.Context(), userID, repository.TutorOnboardingInput{
		DisplayName:   strings.TrimSpace(req.DisplayName),
		Bio:           req.Bio,
		Courses:       req.Courses,
		Specialties:   req.Specialties,
		RateMicro:     rateMicro,
		PayoutAddress: req.PayoutAddress,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}
