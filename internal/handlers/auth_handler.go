package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/pkg/utils"
)

// signInMaxSkew bounds how stale (or future-dated) a sign-in message may be.
const signInMaxSkew = 10 * time.Minute

type AuthHandler struct {
	db                 *pgxpool.Pool
	userRepo           *repository.UserRepository
	studentProfileRepo *repository.StudentProfileRepository
	tutorProfileRepo   *repository.TutorProfileRepository
	jwtSecret          string
}

func NewAuthHandler(
	db *pgxpool.Pool,
	userRepo *repository.UserRepository,
	studentProfileRepo *repository.StudentProfileRepository,
	tutorProfileRepo *repository.TutorProfileRepository,
	jwtSecret string,
) *AuthHandler {
	return &AuthHandler{
		db:                 db,
		userRepo:           userRepo,
		studentProfileRepo: studentProfileRepo,
		tutorProfileRepo:   tutorProfileRepo,
		jwtSecret:          jwtSecret,
	}
}

type signInRequest struct {
	Fid         int64  `json:"fid"`
	Address     string `json:"address"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`
}

// SignInMessage is the exact text the wallet signs. Both sides must produce
// it byte for byte.
func SignInMessage(fid int64, address, issuedAt string) string {
	return fmt.Sprintf("eduniche sign-in\nfid:%d\naddress:%s\nissued-at:%s", fid, address, issuedAt)
}

// SignIn verifies a Farcaster wallet signature and issues a JWT. First
// sign-in creates the user with the requested role plus an empty profile;
// later sign-ins refresh the custody address and display name.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Fid <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fid must be a positive integer"})
	}
	if !chain.ValidAddress(req.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address must be a valid 0x address"})
	}
	if req.Role != "student" && req.Role != "tutor" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be student or tutor"})
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name must not be empty"})
	}

	issuedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.IssuedAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "issued_at must be a valid RFC3339 timestamp"})
	}
	skew := time.Since(issuedAt)
	if skew < -signInMaxSkew || skew > signInMaxSkew {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sign-in message expired"})
	}

	message := SignInMessage(req.Fid, req.Address, strings.TrimSpace(req.IssuedAt))
	ok, err := chain.VerifyPersonalSign(message, req.Signature, req.Address)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed signature"})
	}
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Signature does not match address"})
	}

	// The role is pinned at first sign-in; a returning user keeps theirs.
	existing, err := h.userRepo.GetByFid(c.Context(), req.Fid)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to look up user"})
	}
	role := req.Role
	if existing != nil {
		role = existing.Role
	}

	tx, err := h.db.Begin(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start sign-in transaction"})
	}
	defer func() {
		_ = tx.Rollback(c.Context())
	}()

	txUserRepo := repository.NewUserRepository(tx)
	user, err := txUserRepo.UpsertByFid(c.Context(), repository.UpsertUserInput{
		Fid:           req.Fid,
		WalletAddress: req.Address,
		DisplayName:   displayName,
		Role:          role,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upsert user"})
	}

	if user.Role == "student" {
		if err := repository.NewStudentProfileRepository(tx).CreateEmpty(c.Context(), user.ID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create student profile"})
		}
	} else {
		if err := repository.NewTutorProfileRepository(tx).CreateEmpty(c.Context(), user.ID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create tutor profile"})
		}
	}

	if err := tx.Commit(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to finalize sign-in"})
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}

	if role == "student" {
		profile, err := h.studentProfileRepo.GetByUserID(c.Context(), userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
		}
		return c.JSON(fiber.Map{
			"user":                user,
			"profile":             profile,
			"onboarding_complete": profile.OnboardingComplete,
		})
	}

	profile, err := h.tutorProfileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}
	return c.JSON(fiber.Map{
		"user":                user,
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}
