package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/metrics"
	"github.com/eduniche/eduniche-backend/internal/models"
	"github.com/eduniche/eduniche-backend/internal/repository"
)

var (
	ErrWalletUnavailable   = errors.New("platform wallet is not configured")
	ErrPaymentSubmission   = errors.New("payment submission failed")
	ErrPaymentNotPending   = errors.New("payment is not pending")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionPending  = errors.New("transaction not yet confirmed")
	ErrTransferReverted    = errors.New("transfer transaction reverted")
	ErrNoTransferEvent     = errors.New("no usdc transfer in transaction")
	ErrAmountMismatch      = errors.New("transferred amount below session fee")
	ErrRecipientMismatch   = errors.New("transfer recipient does not match tutor payout address")
	ErrTransferReused      = errors.New("transfer already credited to another payment")
)

// A payment that fails verification this many times is marked failed.
const maxVerificationAttempts = 3

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

type PaymentService struct {
	db               *pgxpool.Pool
	sessionRepo      *repository.SessionRepository
	paymentRepo      *repository.PaymentRepository
	tutorProfileRepo tutorProfileReader
	txReader         chain.TxReader
	wallet           chain.Wallet
	usdcToken        common.Address
}

func NewPaymentService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	tutorProfileRepo tutorProfileReader,
	txReader chain.TxReader,
	wallet chain.Wallet,
	usdcToken common.Address,
) *PaymentService {
	return &PaymentService{
		db:               db,
		sessionRepo:      sessionRepo,
		paymentRepo:      paymentRepo,
		tutorProfileRepo: tutorProfileRepo,
		txReader:         txReader,
		wallet:           wallet,
		usdcToken:        usdcToken,
	}
}

// InitiateTransfer submits the USDC transfer for a pending session through
// the platform wallet. The chain call runs outside any database transaction
// so a slow RPC never blocks another tutor's booking flow.
func (s *PaymentService) InitiateTransfer(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if role != "student" || session.StudentID != actorID {
		return nil, ErrForbidden
	}

	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusCompleted {
		return s.sessionDetail(ctx, session.ID)
	}
	// A submission failure never reaches the chain, so the booking stays
	// payable: such payments (failed, no tx hash) may be re-attempted.
	// Failures after submission stay failed.
	resubmit := payment.Status == models.PaymentStatusFailed && payment.TxHash == nil
	if payment.Status != models.PaymentStatusPending && !resubmit {
		return nil, ErrPaymentNotPending
	}
	if session.Status != models.SessionStatusPending {
		return nil, ErrInvalidStateTransition
	}
	if !session.ScheduledAt.After(time.Now().UTC()) {
		return nil, ErrInvalidStateTransition
	}
	if s.wallet == nil {
		return nil, ErrWalletUnavailable
	}

	payout, err := s.tutorPayoutAddress(ctx, session.TutorID)
	if err != nil {
		return nil, err
	}

	txHash, err := s.wallet.Transfer(ctx, payout, payment.AmountMicro)
	if err != nil {
		log.Printf("usdc transfer submission for session %d: %v", sessionID, err)
		if !resubmit {
			if _, failErr := s.paymentRepo.UpdateStatusIfCurrent(
				ctx,
				payment.ID,
				models.PaymentStatusPending,
				models.PaymentStatusFailed,
			); failErr != nil && !errors.Is(failErr, pgx.ErrNoRows) {
				return nil, failErr
			}
		}
		return nil, ErrPaymentSubmission
	}

	if resubmit {
		if _, err := s.paymentRepo.ReopenWithTxHash(ctx, payment.ID, txHash.Hex()); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrPaymentNotPending
			}
			return nil, err
		}
	} else if _, err := s.paymentRepo.SetTxHash(ctx, payment.ID, txHash.Hex()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, err
	}

	return s.sessionDetail(ctx, session.ID)
}

// ConfirmTransfer re-derives the transfer facts from the ledger and, when
// they match, completes the payment and confirms the session. A client claim
// that the transfer succeeded is never trusted on its own.
//
// Calling it again for an already completed payment is a no-op returning the
// current state.
func (s *PaymentService) ConfirmTransfer(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	txHash string,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusCompleted {
		return s.sessionDetail(ctx, session.ID)
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	if session.IsTerminal() {
		// A transfer confirming against a dead session must not complete:
		// reconcile the payment to failed so the funds loss is visible.
		if _, err := s.paymentRepo.UpdateStatusIfCurrent(
			ctx,
			payment.ID,
			models.PaymentStatusPending,
			models.PaymentStatusFailed,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, ErrInvalidStateTransition
	}

	if !txHashPattern.MatchString(txHash) {
		return nil, ErrInvalidInput
	}
	if s.txReader == nil {
		return nil, ErrWalletUnavailable
	}
	hash := common.HexToHash(txHash)

	_, isPending, err := s.txReader.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if isPending {
		return nil, ErrTransactionPending
	}

	receipt, err := s.txReader.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			// Mined between the two calls but the receipt is not yet
			// queryable; the caller retries.
			return nil, ErrTransactionPending
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		if _, err := s.paymentRepo.UpdateStatusIfCurrent(
			ctx,
			payment.ID,
			models.PaymentStatusPending,
			models.PaymentStatusFailed,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, ErrTransferReverted
	}

	payout, err := s.tutorPayoutAddress(ctx, session.TutorID)
	if err != nil {
		return nil, err
	}

	if err := verifyTransfer(receipt, s.usdcToken, payout, payment.AmountMicro); err != nil {
		if recordErr := s.recordVerificationFailure(ctx, payment.ID); recordErr != nil {
			return nil, recordErr
		}
		return nil, err
	}

	if err := s.acceptPayment(ctx, session.ID, payment.ID, hash.Hex()); err != nil {
		return nil, err
	}
	metrics.PaymentsConfirmed.Inc()

	return s.sessionDetail(ctx, session.ID)
}

// verifyTransfer checks the receipt against the expected recipient and fee.
// The transferred amount may exceed the fee (client-side rounding up) but
// never undercut it.
func verifyTransfer(
	receipt *types.Receipt,
	token common.Address,
	expectedRecipient common.Address,
	expectedMicro int64,
) error {
	event, err := chain.FindTransfer(receipt, token)
	if err != nil {
		if errors.Is(err, chain.ErrNoTransfer) {
			return ErrNoTransferEvent
		}
		return err
	}
	if event.To != expectedRecipient {
		return ErrRecipientMismatch
	}
	if !event.Amount.IsInt64() {
		// Amounts beyond int64 micro-USDC always cover the fee.
		return nil
	}
	if event.Amount.Int64() < expectedMicro {
		return ErrAmountMismatch
	}
	return nil
}

// acceptPayment flips session and payment together. The session CAS is the
// gate: if the session left pending in the meantime (cancelled mid-flight)
// the payment is reconciled to failed instead.
func (s *PaymentService) acceptPayment(ctx context.Context, sessionID, paymentID int64, txHash string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)

	if _, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx,
		sessionID,
		models.SessionStatusPending,
		models.SessionStatusConfirmed,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = tx.Rollback(ctx)
			if _, failErr := s.paymentRepo.UpdateStatusIfCurrent(
				ctx,
				paymentID,
				models.PaymentStatusPending,
				models.PaymentStatusFailed,
			); failErr != nil && !errors.Is(failErr, pgx.ErrNoRows) {
				return failErr
			}
			return ErrInvalidStateTransition
		}
		return err
	}

	if _, err := txPaymentRepo.CompleteWithTxHash(ctx, paymentID, txHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotPending
		}
		// Unique index over completed tx hashes: the same on-chain transfer
		// cannot settle two payments.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTransferReused
		}
		return err
	}

	return tx.Commit(ctx)
}

func (s *PaymentService) recordVerificationFailure(ctx context.Context, paymentID int64) error {
	metrics.PaymentVerificationFailures.Inc()
	attempts, err := s.paymentRepo.RecordVerificationFailure(ctx, paymentID)
	if err != nil {
		return err
	}
	if attempts < maxVerificationAttempts {
		return nil
	}
	if _, err := s.paymentRepo.UpdateStatusIfCurrent(
		ctx,
		paymentID,
		models.PaymentStatusPending,
		models.PaymentStatusFailed,
	); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func (s *PaymentService) tutorPayoutAddress(ctx context.Context, tutorID int64) (common.Address, error) {
	profile, err := s.tutorProfileRepo.GetByUserID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, ErrTutorNotFound
		}
		return common.Address{}, err
	}
	if profile.PayoutAddress == nil || !chain.ValidAddress(*profile.PayoutAddress) {
		return common.Address{}, ErrInvalidInput
	}
	return common.HexToAddress(*profile.PayoutAddress), nil
}

func (s *PaymentService) sessionDetail(ctx context.Context, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
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
