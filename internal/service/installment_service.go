package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/config"
	"github.com/wicaksn/koperasi-engine/internal/domain"
	"github.com/wicaksn/koperasi-engine/internal/repository"
	"github.com/wicaksn/koperasi-engine/internal/schedule"
	customError "github.com/wicaksn/koperasi-engine/pkg/errors"
)

// InstallmentService owns the loan lifecycle: schedule generation,
// payments, proofs, and outstanding balance.
type InstallmentService struct {
	loanRepo repository.LoanRepository
	cache    repository.Cache
	config   *config.Config
	logger   *zap.Logger
}

func NewInstallmentService(
	loanRepo repository.LoanRepository,
	cache repository.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *InstallmentService {
	return &InstallmentService{
		loanRepo: loanRepo,
		cache:    cache,
		config:   cfg,
		logger:   logger,
	}
}

// CreateLoan validates the request, generates the full installment schedule,
// and persists loan plus schedule. The schedule is created in one batch;
// regeneration always replaces the entire set.
func (s *InstallmentService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.Installment, error) {
	existing, err := s.loanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existing != nil {
		return nil, nil, customError.WrapLoanAlreadyExists(request.LoanID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	loan := &domain.Loan{
		ID:           uuid.New(),
		LoanID:       request.LoanID,
		Principal:    request.Principal,
		InterestRate: request.InterestRate,
		TenorMonths:  request.TenorMonths,
		StartDate:    request.StartDate,
		Status:       domain.LoanStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	installments, err := schedule.Generate(loan)
	if err != nil {
		return nil, nil, err
	}
	loan.InstallmentAmount = installments[0].Amount

	if err = s.loanRepo.Create(ctx, loan); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}
	if err = s.loanRepo.ReplaceSchedule(ctx, loan.LoanID, installments); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info("loan created",
		zap.String("loan_id", loan.LoanID),
		zap.Int("tenor_months", loan.TenorMonths),
		zap.String("installment_amount", loan.InstallmentAmount.String()))

	return loan, installments, nil
}

// GetSchedule returns the stored schedule with statuses projected at `now`
// (pending rows past their due date present as overdue) plus the summary.
// The projection is computed fresh on every call, never stored.
func (s *InstallmentService) GetSchedule(ctx context.Context, loanID string, now time.Time) ([]*domain.Installment, schedule.Summary, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, schedule.Summary{}, err
	}

	installments, err := s.loanRepo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, schedule.Summary{}, customError.WrapDatabaseError(err)
	}

	summary := schedule.Summarize(loan, installments, now)

	projected := make([]*domain.Installment, 0, len(installments))
	for _, inst := range installments {
		view := *inst
		view.Status = schedule.EffectiveStatus(*inst, now)
		projected = append(projected, &view)
	}

	return projected, summary, nil
}

// MarkPaid records a payment against one installment. Paying an already-paid
// installment surfaces the conflict to the caller instead of silently
// overwriting it.
func (s *InstallmentService) MarkPaid(ctx context.Context, loanID string, sequence int, paidAt *time.Time) (*domain.Installment, error) {
	inst, err := s.getInstallment(ctx, loanID, sequence)
	if err != nil {
		return nil, err
	}

	when := time.Now()
	if paidAt != nil {
		when = *paidAt
	}

	paid, err := schedule.MarkPaid(*inst, when)
	if err != nil {
		return nil, err
	}

	if err = s.loanRepo.UpdateInstallment(ctx, &paid); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateOutstanding(ctx, loanID)

	if err = s.closeLoanIfSettled(ctx, loanID); err != nil {
		return nil, err
	}

	return &paid, nil
}

// AttachProof stores a payment proof reference on an installment without
// changing its status; confirmation still requires MarkPaid.
func (s *InstallmentService) AttachProof(ctx context.Context, loanID string, sequence int, proofRef string) (*domain.Installment, error) {
	inst, err := s.getInstallment(ctx, loanID, sequence)
	if err != nil {
		return nil, err
	}

	updated := schedule.AttachProof(*inst, proofRef)
	if err = s.loanRepo.UpdateInstallment(ctx, &updated); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &updated, nil
}

// Outstanding returns principal + interest minus everything paid so far,
// cached in redis under a short TTL.
func (s *InstallmentService) Outstanding(ctx context.Context, loanID string) (decimal.Decimal, error) {
	cacheKey := outstandingKey(loanID)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		if value, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return value, nil
		}
	}

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	paidStr, err := s.loanRepo.SumPaid(ctx, loanID)
	if err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}
	paid, err := decimal.NewFromString(paidStr)
	if err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}

	tenor := decimal.NewFromInt(int64(loan.TenorMonths))
	totalInterest := loan.Principal.Mul(loan.InterestRate).Mul(tenor).Div(decimal.NewFromInt(100))
	outstanding := loan.Principal.Add(totalInterest).Sub(paid)

	if err := s.cache.Set(ctx, cacheKey, outstanding.String(), s.config.Cache.OutstandingTTL); err != nil {
		s.logger.Warn("failed to cache outstanding balance",
			zap.String("loan_id", loanID), zap.Error(err))
	}

	return outstanding, nil
}

// DueBetween lists pending installments falling due inside the window.
// Used by the reminder job.
func (s *InstallmentService) DueBetween(ctx context.Context, from, to time.Time) ([]*domain.Installment, error) {
	installments, err := s.loanRepo.ListDueBetween(ctx, from, to)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return installments, nil
}

// OverdueReport projects every active loan's schedule at `now` and returns
// the loans with at least one overdue installment. Nothing is written:
// overdue is a derived status.
func (s *InstallmentService) OverdueReport(ctx context.Context, now time.Time) (map[string]schedule.Summary, error) {
	loans, err := s.loanRepo.ListActive(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	report := make(map[string]schedule.Summary)
	for _, loan := range loans {
		installments, err := s.loanRepo.GetScheduleByLoanID(ctx, loan.LoanID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		summary := schedule.Summarize(loan, installments, now)
		if summary.OverdueCount > 0 {
			report[loan.LoanID] = summary
		}
	}

	return report, nil
}

func (s *InstallmentService) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *InstallmentService) getInstallment(ctx context.Context, loanID string, sequence int) (*domain.Installment, error) {
	inst, err := s.loanRepo.GetInstallment(ctx, loanID, sequence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInstallmentNotFound(loanID, sequence)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return inst, nil
}

func (s *InstallmentService) closeLoanIfSettled(ctx context.Context, loanID string) error {
	installments, err := s.loanRepo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			return nil
		}
	}

	if err := s.loanRepo.UpdateStatus(ctx, loanID, domain.LoanStatusClosed); err != nil {
		return customError.WrapDatabaseError(err)
	}

	s.logger.Info("loan fully settled", zap.String("loan_id", loanID))
	return nil
}

func (s *InstallmentService) invalidateOutstanding(ctx context.Context, loanID string) {
	if err := s.cache.Del(ctx, outstandingKey(loanID)); err != nil {
		s.logger.Warn("failed to invalidate outstanding cache",
			zap.String("loan_id", loanID), zap.Error(err))
	}
}

func outstandingKey(loanID string) string {
	return fmt.Sprintf("outstanding:%s", loanID)
}
