package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/internal/services"
)

type stubBookingService struct {
	bookResult         *models.SessionDetail
	bookErr            error
	listResult         []models.SessionDetail
	listErr            error
	getResult          *models.SessionDetail
	getErr             error
	updateStatusResult *models.SessionDetail
	updateStatusErr    error
	lastBookInput      services.BookSessionInput
	lastActorID        int64
	lastRole           string
	lastSessionID      int64
	lastStatus         string
	lastListFilter     repository.SessionListFilter
}

func (s *stubBookingService) BookSession(_ context.Context, studentID int64, input services.BookSessionInput) (*models.SessionDetail, error) {
	s.lastActorID = studentID
	s.lastBookInput = input
	return s.bookResult, s.bookErr
}

func (s *stubBookingService) ListSessions(_ context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastListFilter = filter
	return s.listResult, s.listErr
}

func (s *stubBookingService) GetSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubBookingService) UpdateStatus(_ context.Context, actorID int64, role string, sessionID int64, requestedStatus string) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastStatus = requestedStatus
	return s.updateStatusResult, s.updateStatusErr
}

type stubPaymentService struct {
	initiateResult *models.SessionDetail
	initiateErr    error
	confirmResult  *models.SessionDetail
	confirmErr     error
	lastActorID    int64
	lastRole       string
	lastSessionID  int64
	lastTxHash     string
}

func (s *stubPaymentService) InitiateTransfer(_ context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.initiateResult, s.initiateErr
}

func (s *stubPaymentService) ConfirmTransfer(_ context.Context, actorID int64, role string, sessionID int64, txHash string) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastTxHash = txHash
	return s.confirmResult, s.confirmErr
}

func newSessionTestApp(handler *SessionHandler, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/sessions", handler.BookSession)
	app.Get("/api/sessions", handler.ListSessions)
	app.Get("/api/sessions/:id", handler.GetSession)
	app.Put("/api/sessions/:id/status", handler.UpdateStatus)
	app.Post("/api/sessions/:id/pay", handler.PayForSession)
	app.Post("/api/sessions/:id/confirm", handler.ConfirmPayment)
	return app
}

func TestBookSessionReturnsCreatedSession(t *testing.T) {
	service := &stubBookingService{
		bookResult: &models.SessionDetail{
			Session: models.Session{
				ID:              91,
				StudentID:       42,
				TutorID:         7,
				Course:          "CS 101",
				Status:          "pending",
				DurationMinutes: 60,
			},
			Payment: &models.Payment{Status: "pending", AmountMicro: 25_000_000},
		},
	}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{
		"tutor_id": 7,
		"course": "CS 101",
		"scheduled_at": "2030-03-15T09:00:00Z",
		"duration_minutes": 60,
		"fee_usdc": "25"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", service.lastActorID)
	}
	if service.lastBookInput.TutorID != 7 {
		t.Fatalf("expected tutor id 7, got %d", service.lastBookInput.TutorID)
	}
	if service.lastBookInput.FeeMicro != 25_000_000 {
		t.Fatalf("expected fee 25_000_000 micro, got %d", service.lastBookInput.FeeMicro)
	}
}

func TestBookSessionForbiddenForTutors(t *testing.T) {
	handler := &SessionHandler{bookings: &stubBookingService{}, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "tutor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionReturnsConflictForOverlap(t *testing.T) {
	service := &stubBookingService{bookErr: services.ErrConflict}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{
		"tutor_id": 7,
		"course": "CS 101",
		"scheduled_at": "2030-03-15T09:00:00Z",
		"duration_minutes": 60
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesStatusAndTimeframe(t *testing.T) {
	service := &stubBookingService{
		listResult: []models.SessionDetail{{Session: models.Session{ID: 5, Status: "confirmed"}}},
	}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "tutor", "9")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?status=confirmed&timeframe=upcoming", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != "tutor" {
		t.Fatalf("expected tutor role, got %q", service.lastRole)
	}
	if service.lastListFilter.Status != "confirmed" || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubBookingService{getErr: pgx.ErrNoRows}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusPreconditionFailedWithoutPayment(t *testing.T) {
	service := &stubBookingService{updateStatusErr: services.ErrPaymentRequired}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "tutor", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/55/status", strings.NewReader(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}
	if service.lastStatus != "confirmed" {
		t.Fatalf("expected forwarded status, got %q", service.lastStatus)
	}
}

func TestUpdateStatusUnprocessableForInvalidTransition(t *testing.T) {
	service := &stubBookingService{updateStatusErr: services.ErrInvalidStateTransition}
	handler := &SessionHandler{bookings: service, payments: &stubPaymentService{}}
	app := newSessionTestApp(handler, "tutor", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/55/status", strings.NewReader(`{"status":"complete"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPayForSessionReturnsSubmittedTransfer(t *testing.T) {
	txHash := "0x1111111111111111111111111111111111111111111111111111111111111111"
	payments := &stubPaymentService{
		initiateResult: &models.SessionDetail{
			Session: models.Session{ID: 88, StudentID: 42, TutorID: 7, Status: "pending"},
			Payment: &models.Payment{ID: 11, SessionID: 88, Status: "pending", TxHash: &txHash},
		},
	}
	handler := &SessionHandler{bookings: &stubBookingService{}, payments: payments}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/88/pay", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payments.lastSessionID != 88 {
		t.Fatalf("expected session 88, got %d", payments.lastSessionID)
	}

	var body struct {
		Session models.SessionDetail `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.Payment == nil || body.Session.Payment.TxHash == nil || *body.Session.Payment.TxHash != txHash {
		t.Fatalf("expected tx hash in payment, got %+v", body.Session.Payment)
	}
}

func TestPayForSessionWalletUnavailable(t *testing.T) {
	payments := &stubPaymentService{initiateErr: services.ErrWalletUnavailable}
	handler := &SessionHandler{bookings: &stubBookingService{}, payments: payments}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/88/pay", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestConfirmPaymentForwardsTxHash(t *testing.T) {
	payments := &stubPaymentService{
		confirmResult: &models.SessionDetail{
			Session: models.Session{ID: 88, Status: "confirmed"},
			Payment: &models.Payment{Status: "completed"},
		},
	}
	handler := &SessionHandler{bookings: &stubBookingService{}, payments: payments}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/88/confirm", strings.NewReader(`{
		"tx_hash": "0x2222222222222222222222222222222222222222222222222222222222222222"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payments.lastTxHash != "0x2222222222222222222222222222222222222222222222222222222222222222" {
		t.Fatalf("expected forwarded tx hash, got %q", payments.lastTxHash)
	}
}

func TestConfirmPaymentPendingTransaction(t *testing.T) {
	payments := &stubPaymentService{confirmErr: services.ErrTransactionPending}
	handler := &SessionHandler{bookings: &stubBookingService{}, payments: payments}
	app := newSessionTestApp(handler, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/88/confirm", strings.NewReader(`{"tx_hash":"0x1234"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
}

func TestConfirmPaymentMismatchUnprocessable(t *testing.T) {
	for _, failure := range []error{
		services.ErrAmountMismatch,
		services.ErrRecipientMismatch,
		services.ErrNoTransferEvent,
		services.ErrTransferReverted,
	} {
		payments := &stubPaymentService{confirmErr: failure}
		handler := &SessionHandler{bookings: &stubBookingService{}, payments: payments}
		app := newSessionTestApp(handler, "student", "42")

		req := httptest.NewRequest(http.MethodPost, "/api/sessions/88/confirm", strings.NewReader(`{"tx_hash":"0xdead"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("%v: expected 422, got %d", failure, resp.StatusCode)
		}
	}
}

func TestMapSessionErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
