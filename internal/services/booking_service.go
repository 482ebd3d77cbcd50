package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/metrics"
	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("scheduling conflict")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTutorNotFound          = errors.New("tutor not found")
	ErrStudentNotFound        = errors.New("student not found")
	ErrPaymentRequired        = errors.New("payment not completed")
)

// Sessions come in 30-minute units; the tutor rate is quoted per unit.
const sessionUnitMinutes = 30

type tutorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type BookingService struct {
	db               *pgxpool.Pool
	sessionRepo      *repository.SessionRepository
	paymentRepo      *repository.PaymentRepository
	userRepo         userReader
	tutorProfileRepo tutorProfileReader
}

func NewBookingService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	userRepo userReader,
	tutorProfileRepo tutorProfileReader,
) *BookingService {
	return &BookingService{
		db:               db,
		sessionRepo:      sessionRepo,
		paymentRepo:      paymentRepo,
		userRepo:         userRepo,
		tutorProfileRepo: tutorProfileRepo,
	}
}

type BookSessionInput struct {
	TutorID         int64
	Course          string
	ScheduledAt     time.Time
	DurationMinutes int
	FeeMicro        int64
	Notes           *string
}

func (s *BookingService) BookSession(
	ctx context.Context,
	studentID int64,
	input BookSessionInput,
) (*models.SessionDetail, error) {
	course := strings.TrimSpace(input.Course)
	if input.TutorID <= 0 || course == "" {
		return nil, ErrInvalidInput
	}
	if input.DurationMinutes <= 0 || input.DurationMinutes%sessionUnitMinutes != 0 {
		return nil, ErrInvalidInput
	}
	if input.ScheduledAt.Before(time.Now().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}
	if studentID == input.TutorID {
		return nil, ErrInvalidInput
	}

	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if student.Role != "student" {
		return nil, ErrForbidden
	}

	profile, err := s.tutorProfileRepo.GetByUserID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if !profile.OnboardingComplete || profile.RateMicro == nil || *profile.RateMicro <= 0 {
		return nil, ErrInvalidInput
	}
	if profile.PayoutAddress == nil || !chain.ValidAddress(*profile.PayoutAddress) {
		return nil, ErrInvalidInput
	}

	feeMicro := SessionFeeMicro(*profile.RateMicro, input.DurationMinutes)
	if input.FeeMicro != 0 && input.FeeMicro != feeMicro {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)

	// Serialize the conflict check and insert per tutor: without this two
	// overlapping proposals could both pass HasConflict before either row
	// lands.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(1, $1)", input.TutorID); err != nil {
		return nil, err
	}

	hasConflict, err := txSessionRepo.HasConflict(
		ctx,
		input.TutorID,
		input.ScheduledAt.UTC(),
		input.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		metrics.BookingConflicts.Inc()
		return nil, ErrConflict
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		TutorID:         input.TutorID,
		StudentID:       studentID,
		Course:          course,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		Notes:           input.Notes,
	})
	if err != nil {
		return nil, err
	}

	payment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID:   session.ID,
		StudentID:   studentID,
		TutorID:     input.TutorID,
		AmountMicro: feeMicro,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.SessionsBooked.Inc()

	return &models.SessionDetail{
		Session: *session,
		Payment: payment,
	}, nil
}

// SessionFeeMicro computes the fee in micro-USDC for a duration at the given
// per-unit rate.
func SessionFeeMicro(rateMicro int64, durationMinutes int) int64 {
	return rateMicro * int64(durationMinutes/sessionUnitMinutes)
}

func (s *BookingService) CheckAvailability(
	ctx context.Context,
	tutorID int64,
	requestedTime time.Time,
	durationMins int,
) (bool, error) {
	hasConflict, err := s.sessionRepo.HasConflict(ctx, tutorID, requestedTime.UTC(), durationMins)
	if err != nil {
		return false, err
	}
	return !hasConflict, nil
}

func (s *BookingService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.SessionDetail, error) {
	sessions, err := s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
	if err != nil {
		return nil, err
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	paymentsBySession, err := s.paymentRepo.ListBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail := models.SessionDetail{Session: session}
		if payment, ok := paymentsBySession[session.ID]; ok {
			paymentCopy := payment
			detail.Payment = &paymentCopy
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *BookingService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	detail := &models.SessionDetail{Session: *session}
	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Payment = payment
	}
	return detail, nil
}

func (s *BookingService) UpdateStatus(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	requestedStatus string,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	nextStatus, err := normalizeRequestedStatus(requestedStatus)
	if err != nil {
		return nil, err
	}
	if err := validateStatusTransition(role, actorID, session, nextStatus); err != nil {
		return nil, err
	}
	if nextStatus == models.SessionStatusConfirmed {
		payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrPaymentRequired
			}
			return nil, err
		}
		if payment.Status != models.PaymentStatusCompleted {
			return nil, ErrPaymentRequired
		}
	}

	if nextStatus == models.SessionStatusCompleted {
		if err := s.completeSession(ctx, session); err != nil {
			return nil, err
		}
		return s.GetSession(ctx, actorID, role, sessionID)
	}

	if _, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, nextStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return s.GetSession(ctx, actorID, role, sessionID)
}

// completeSession applies confirmed->completed and bumps the tutor's lifetime
// counter in one transaction. The compare-and-set guards the increment: a
// duplicate call finds the session already completed and changes nothing.
func (s *BookingService) completeSession(ctx context.Context, session *models.Session) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txTutorProfileRepo := repository.NewTutorProfileRepository(tx)

	if _, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx,
		session.ID,
		models.SessionStatusConfirmed,
		models.SessionStatusCompleted,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidStateTransition
		}
		return err
	}
	if err := txTutorProfileRepo.IncrementTotalSessions(ctx, session.TutorID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == "student" {
		return session.StudentID == actorID
	}
	if role == "tutor" {
		return session.TutorID == actorID
	}
	return false
}

func normalizeRequestedStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "confirm", "confirmed":
		return models.SessionStatusConfirmed, nil
	case "complete", "completed":
		return models.SessionStatusCompleted, nil
	case "cancel", "cancelled", "canceled":
		return models.SessionStatusCancelled, nil
	default:
		return "", ErrInvalidStatus
	}
}

func validateStatusTransition(
	role string,
	actorID int64,
	session *models.Session,
	nextStatus string,
) error {
	switch role {
	case "student":
		if session.StudentID != actorID || nextStatus != models.SessionStatusCancelled {
			return ErrForbidden
		}
		if session.IsTerminal() {
			return ErrInvalidStateTransition
		}
		return nil
	case "tutor":
		if session.TutorID != actorID {
			return ErrForbidden
		}
		switch nextStatus {
		case models.SessionStatusConfirmed:
			if session.Status != models.SessionStatusPending {
				return ErrInvalidStateTransition
			}
		case models.SessionStatusCompleted:
			if session.Status != models.SessionStatusConfirmed {
				return ErrInvalidStateTransition
			}
			if session.EndsAt().After(time.Now().UTC()) {
				return ErrInvalidStateTransition
			}
		case models.SessionStatusCancelled:
			if session.IsTerminal() {
				return ErrInvalidStateTransition
			}
		default:
			return ErrInvalidStatus
		}
		return nil
	default:
		return ErrForbidden
	}
}
