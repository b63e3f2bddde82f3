package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/config"
	"github.com/wicaksn/koperasi-engine/internal/domain"
	customError "github.com/wicaksn/koperasi-engine/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		Chat:  config.ChatConfig{PageSize: 20, ChannelPrefix: "chat:", PushBufferSize: 8},
		Cache: config.CacheConfig{OutstandingTTL: 5 * time.Minute},
	}
}

func newTestService(loanRepo *MockLoanRepository, cache *MockCache) *InstallmentService {
	return NewInstallmentService(loanRepo, cache, testConfig(), zap.NewNop())
}

func TestCreateLoan(t *testing.T) {
	startDate := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		request        *domain.CreateLoanRequest
		setupMocks     func(*MockLoanRepository)
		expectedError  bool
		errorIs        error
		validateResult func(*testing.T, *domain.Loan, []*domain.Installment)
	}{
		{
			name: "Success - create loan with schedule",
			request: &domain.CreateLoanRequest{
				LoanID:       "LOAN123",
				Principal:    decimal.NewFromInt(1_200_000),
				InterestRate: decimal.NewFromInt(2),
				TenorMonths:  12,
				StartDate:    startDate,
			},
			setupMocks: func(loanRepo *MockLoanRepository) {
				loanRepo.On("GetByLoanID", mock.Anything, "LOAN123").Return(nil, sql.ErrNoRows)
				loanRepo.On("Create", mock.Anything, mock.MatchedBy(func(loan *domain.Loan) bool {
					return loan.LoanID == "LOAN123" && loan.Status == domain.LoanStatusActive
				})).Return(nil)
				loanRepo.On("ReplaceSchedule", mock.Anything, "LOAN123", mock.MatchedBy(func(installments []*domain.Installment) bool {
					return len(installments) == 12
				})).Return(nil)
			},
			validateResult: func(t *testing.T, loan *domain.Loan, schedule []*domain.Installment) {
				require.Len(t, schedule, 12)
				assert.True(t, loan.InstallmentAmount.Equal(decimal.NewFromInt(124_000)))
				assert.Equal(t, startDate.AddDate(0, 1, 0), schedule[0].DueDate)
			},
		},
		{
			name: "Failure - loan already exists",
			request: &domain.CreateLoanRequest{
				LoanID:      "LOAN456",
				Principal:   decimal.NewFromInt(100_000),
				TenorMonths: 10,
				StartDate:   startDate,
			},
			setupMocks: func(loanRepo *MockLoanRepository) {
				loanRepo.On("GetByLoanID", mock.Anything, "LOAN456").
					Return(&domain.Loan{LoanID: "LOAN456"}, nil)
			},
			expectedError: true,
			errorIs:       customError.ErrLoanAlreadyExists,
		},
		{
			name: "Failure - invalid tenor fails before any write",
			request: &domain.CreateLoanRequest{
				LoanID:      "LOAN789",
				Principal:   decimal.NewFromInt(100_000),
				TenorMonths: 0,
				StartDate:   startDate,
			},
			setupMocks: func(loanRepo *MockLoanRepository) {
				loanRepo.On("GetByLoanID", mock.Anything, "LOAN789").Return(nil, sql.ErrNoRows)
			},
			expectedError: true,
			errorIs:       customError.ErrInvalidSchedule,
		},
		{
			name: "Failure - database error on lookup",
			request: &domain.CreateLoanRequest{
				LoanID:      "LOAN101",
				Principal:   decimal.NewFromInt(100_000),
				TenorMonths: 10,
				StartDate:   startDate,
			},
			setupMocks: func(loanRepo *MockLoanRepository) {
				loanRepo.On("GetByLoanID", mock.Anything, "LOAN101").
					Return(nil, errors.New("database connection error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loanRepo := &MockLoanRepository{}
			cache := &MockCache{}
			tt.setupMocks(loanRepo)

			svc := newTestService(loanRepo, cache)
			loan, schedule, err := svc.CreateLoan(context.Background(), tt.request)

			if tt.expectedError {
				require.Error(t, err)
				if tt.errorIs != nil {
					assert.True(t, errors.Is(err, tt.errorIs))
				}
				assert.Nil(t, loan)
				assert.Nil(t, schedule)
			} else {
				require.NoError(t, err)
				tt.validateResult(t, loan, schedule)
			}

			loanRepo.AssertExpectations(t)
		})
	}
}

func TestMarkPaid(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	t.Run("pending installment becomes paid and cache is invalidated", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		pending := &domain.Installment{
			LoanID:   "LOAN123",
			Sequence: 1,
			Amount:   decimal.NewFromInt(124_000),
			Status:   domain.InstallmentStatusPending,
			Origin:   domain.OriginPersisted,
		}
		remaining := &domain.Installment{
			LoanID:   "LOAN123",
			Sequence: 2,
			Status:   domain.InstallmentStatusPending,
		}

		loanRepo.On("GetInstallment", mock.Anything, "LOAN123", 1).Return(pending, nil)
		loanRepo.On("UpdateInstallment", mock.Anything, mock.MatchedBy(func(inst *domain.Installment) bool {
			return inst.Status == domain.InstallmentStatusPaid && inst.PaidAt != nil && inst.PaidAt.Equal(now)
		})).Return(nil)
		loanRepo.On("GetScheduleByLoanID", mock.Anything, "LOAN123").
			Return([]*domain.Installment{pending, remaining}, nil)
		cache.On("Del", mock.Anything, "outstanding:LOAN123").Return(nil)

		svc := newTestService(loanRepo, cache)
		paid, err := svc.MarkPaid(context.Background(), "LOAN123", 1, &now)

		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusPaid, paid.Status)

		loanRepo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("already paid surfaces conflict and writes nothing", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		paidAt := now.AddDate(0, 0, -7)
		loanRepo.On("GetInstallment", mock.Anything, "LOAN123", 1).Return(&domain.Installment{
			LoanID:   "LOAN123",
			Sequence: 1,
			Status:   domain.InstallmentStatusPaid,
			PaidAt:   &paidAt,
		}, nil)

		svc := newTestService(loanRepo, cache)
		result, err := svc.MarkPaid(context.Background(), "LOAN123", 1, &now)

		require.Error(t, err)
		assert.True(t, errors.Is(err, customError.ErrPaymentConflict))
		assert.Nil(t, result)

		loanRepo.AssertNotCalled(t, "UpdateInstallment", mock.Anything, mock.Anything)
		cache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})

	t.Run("last payment closes the loan", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		last := &domain.Installment{
			LoanID:   "LOAN123",
			Sequence: 2,
			Status:   domain.InstallmentStatusPending,
		}
		first := &domain.Installment{
			LoanID:   "LOAN123",
			Sequence: 1,
			Status:   domain.InstallmentStatusPaid,
		}
		lastPaid := *last
		lastPaid.Status = domain.InstallmentStatusPaid
		lastPaid.PaidAt = &now

		loanRepo.On("GetInstallment", mock.Anything, "LOAN123", 2).Return(last, nil)
		loanRepo.On("UpdateInstallment", mock.Anything, mock.Anything).Return(nil)
		loanRepo.On("GetScheduleByLoanID", mock.Anything, "LOAN123").
			Return([]*domain.Installment{first, &lastPaid}, nil)
		loanRepo.On("UpdateStatus", mock.Anything, "LOAN123", domain.LoanStatusClosed).Return(nil)
		cache.On("Del", mock.Anything, "outstanding:LOAN123").Return(nil)

		svc := newTestService(loanRepo, cache)
		_, err := svc.MarkPaid(context.Background(), "LOAN123", 2, &now)

		require.NoError(t, err)
		loanRepo.AssertExpectations(t)
	})

	t.Run("unknown installment", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		loanRepo.On("GetInstallment", mock.Anything, "LOAN123", 99).Return(nil, sql.ErrNoRows)

		svc := newTestService(loanRepo, cache)
		_, err := svc.MarkPaid(context.Background(), "LOAN123", 99, &now)

		require.Error(t, err)
		assert.True(t, errors.Is(err, customError.ErrInstallmentNotFound))
	})
}

func TestAttachProof(t *testing.T) {
	loanRepo := &MockLoanRepository{}
	cache := &MockCache{}

	loanRepo.On("GetInstallment", mock.Anything, "LOAN123", 3).Return(&domain.Installment{
		LoanID:   "LOAN123",
		Sequence: 3,
		Status:   domain.InstallmentStatusPending,
	}, nil)
	loanRepo.On("UpdateInstallment", mock.Anything, mock.MatchedBy(func(inst *domain.Installment) bool {
		return inst.ProofRef != nil && *inst.ProofRef == "uploads/proof.jpg" &&
			inst.Status == domain.InstallmentStatusPending
	})).Return(nil)

	svc := newTestService(loanRepo, cache)
	updated, err := svc.AttachProof(context.Background(), "LOAN123", 3, "uploads/proof.jpg")

	require.NoError(t, err)
	require.NotNil(t, updated.ProofRef)
	assert.Equal(t, domain.InstallmentStatusPending, updated.Status)

	loanRepo.AssertExpectations(t)
}

func TestOutstanding(t *testing.T) {
	loan := &domain.Loan{
		LoanID:       "LOAN123",
		Principal:    decimal.NewFromInt(1_200_000),
		InterestRate: decimal.NewFromInt(2),
		TenorMonths:  12,
	}

	t.Run("computes and caches on miss", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		cache.On("Get", mock.Anything, "outstanding:LOAN123").Return("", errors.New("cache miss"))
		loanRepo.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
		loanRepo.On("SumPaid", mock.Anything, "LOAN123").Return("248000", nil)
		// 1,200,000 + 288,000 interest - 248,000 paid = 1,240,000
		cache.On("Set", mock.Anything, "outstanding:LOAN123", "1240000", 5*time.Minute).Return(nil)

		svc := newTestService(loanRepo, cache)
		outstanding, err := svc.Outstanding(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, outstanding.Equal(decimal.NewFromInt(1_240_000)))

		loanRepo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("serves from cache on hit", func(t *testing.T) {
		loanRepo := &MockLoanRepository{}
		cache := &MockCache{}

		cache.On("Get", mock.Anything, "outstanding:LOAN123").Return("1240000", nil)

		svc := newTestService(loanRepo, cache)
		outstanding, err := svc.Outstanding(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, outstanding.Equal(decimal.NewFromInt(1_240_000)))

		loanRepo.AssertNotCalled(t, "GetByLoanID", mock.Anything, mock.Anything)
	})
}

func TestGetSchedule_ProjectsOverdue(t *testing.T) {
	now := time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)

	loan := &domain.Loan{
		LoanID:      "LOAN123",
		Principal:   decimal.NewFromInt(200_000),
		TenorMonths: 2,
		StartDate:   time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
	stored := []*domain.Installment{
		{LoanID: "LOAN123", Sequence: 1, Amount: decimal.NewFromInt(100_000),
			DueDate: loan.StartDate.AddDate(0, 1, 0), Status: domain.InstallmentStatusPending},
		{LoanID: "LOAN123", Sequence: 2, Amount: decimal.NewFromInt(100_000),
			DueDate: loan.StartDate.AddDate(0, 2, 0), Status: domain.InstallmentStatusPending},
	}

	loanRepo := &MockLoanRepository{}
	cache := &MockCache{}
	loanRepo.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
	loanRepo.On("GetScheduleByLoanID", mock.Anything, "LOAN123").Return(stored, nil)

	svc := newTestService(loanRepo, cache)
	projected, summary, err := svc.GetSchedule(context.Background(), "LOAN123", now)

	require.NoError(t, err)
	require.Len(t, projected, 2)
	assert.Equal(t, domain.InstallmentStatusOverdue, projected[0].Status)
	assert.Equal(t, domain.InstallmentStatusOverdue, projected[1].Status)
	assert.Equal(t, 2, summary.OverdueCount)

	// The projection must not touch the stored rows.
	assert.Equal(t, domain.InstallmentStatusPending, stored[0].Status)
	assert.Equal(t, domain.InstallmentStatusPending, stored[1].Status)
}

func TestOverdueReport(t *testing.T) {
	now := time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)

	current := &domain.Loan{LoanID: "LOAN-OK", Principal: decimal.NewFromInt(100_000),
		TenorMonths: 1, StartDate: now}
	late := &domain.Loan{LoanID: "LOAN-LATE", Principal: decimal.NewFromInt(100_000),
		TenorMonths: 1, StartDate: now.AddDate(0, -3, 0)}

	loanRepo := &MockLoanRepository{}
	cache := &MockCache{}
	loanRepo.On("ListActive", mock.Anything).Return([]*domain.Loan{current, late}, nil)
	loanRepo.On("GetScheduleByLoanID", mock.Anything, "LOAN-OK").Return([]*domain.Installment{
		{LoanID: "LOAN-OK", Sequence: 1, Amount: decimal.NewFromInt(100_000),
			DueDate: now.AddDate(0, 1, 0), Status: domain.InstallmentStatusPending},
	}, nil)
	loanRepo.On("GetScheduleByLoanID", mock.Anything, "LOAN-LATE").Return([]*domain.Installment{
		{LoanID: "LOAN-LATE", Sequence: 1, Amount: decimal.NewFromInt(100_000),
			DueDate: now.AddDate(0, -2, 0), Status: domain.InstallmentStatusPending},
	}, nil)

	svc := newTestService(loanRepo, cache)
	report, err := svc.OverdueReport(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 1, report["LOAN-LATE"].OverdueCount)
}
